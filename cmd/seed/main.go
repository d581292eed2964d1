package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/clock"
	"github.com/hackgods/clinicflow-scheduling/internal/config"
	"github.com/hackgods/clinicflow-scheduling/internal/db"
	"github.com/hackgods/clinicflow-scheduling/internal/identity"
	"github.com/hackgods/clinicflow-scheduling/internal/logging"
	redisclient "github.com/hackgods/clinicflow-scheduling/internal/redis"
)

var catalog = []struct {
	name     string
	duration int
}{
	{"General Consultation", 30},
	{"Follow-up", 20},
	{"Vaccination", 15},
}

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// Working day split around a lunch break.
var dailyBlocks = [][2]string{
	{"09:00", "12:00"},
	{"13:00", "17:00"},
}

func main() {
	providers := flag.Int("providers", 5, "number of providers to create")
	days := flag.Int("days", 14, "days of availability to open, starting today")
	migrate := flag.Bool("migrate", true, "apply schema migrations first")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.Init("clinicflow-seed", cfg.Env, cfg.LogLevel)
	log.Info().Int("providers", *providers).Int("days", *days).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if *migrate {
		if err := db.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	svc := appointment.NewService(appointment.NewPgRepository(pool), redisclient.NoopLocker{}, nil, cfg, log)

	if err := seedServices(ctx, svc, log); err != nil {
		log.Fatal().Err(err).Msg("seed services")
	}

	staff, err := seedProviders(ctx, svc, *providers, *days, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed providers")
	}

	if cfg.JWTSecret != "" {
		printTokens(identity.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer), staff)
	}

	log.Info().Msg("seed complete")
}

func seedServices(ctx context.Context, svc *appointment.Service, log zerolog.Logger) error {
	for _, c := range catalog {
		_, err := svc.CreateService(ctx, c.name, c.duration)
		if errors.Is(err, appointment.ErrServiceExists) {
			log.Debug().Str("name", c.name).Msg("service already exists")
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

func seedProviders(ctx context.Context, svc *appointment.Service, count, days int, log zerolog.Logger) ([]uuid.UUID, error) {
	today := clock.StartOfDay(time.Now().UTC())
	userIDs := make([]uuid.UUID, 0, count)

	for i := 0; i < count; i++ {
		userID := uuid.New()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]

		p, err := svc.CreateProvider(ctx, userID, &specialty)
		if err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)

		for d := 0; d < days; d++ {
			date := today.AddDate(0, 0, d)
			for _, b := range dailyBlocks {
				if _, err := svc.AddAvailability(ctx, p.ID, date, b[0], b[1]); err != nil {
					return nil, fmt.Errorf("provider %s on %s: %w", p.ID, clock.FormatDate(date), err)
				}
			}
		}
	}

	log.Info().Int("providers", len(userIDs)).Int("blocks", len(userIDs)*days*len(dailyBlocks)).Msg("providers seeded")
	return userIDs, nil
}

// printTokens mints demo credentials so the API can be exercised right away.
func printTokens(issuer *identity.JWTResolver, staff []uuid.UUID) {
	users := []identity.User{
		{ID: uuid.New(), Email: "admin@" + gofakeit.DomainName(), Role: string(appointment.RoleAdmin)},
		{ID: uuid.New(), Email: gofakeit.Email(), Role: string(appointment.RolePatient)},
	}
	if len(staff) > 0 {
		users = append(users, identity.User{ID: staff[0], Email: gofakeit.Email(), Role: string(appointment.RoleStaff)})
	}

	for _, u := range users {
		token, err := issuer.Issue(u, 24*time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token for %s: %v\n", u.Role, err)
			continue
		}
		fmt.Printf("%-8s %s\n%s\n\n", u.Role, u.Email, token)
	}
}
