package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinicflow-scheduling/internal/clock"
)

var (
	ErrInvalidBlock     = errors.New("availability block must start before it ends")
	ErrInactiveProvider = errors.New("provider is not active")
	ErrInvalidDuration  = errors.New("duration must be a positive number of minutes")
)

func (s *Service) ListServices(ctx context.Context) ([]ClinicService, error) {
	svcs, err := s.repo.ListActiveServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return svcs, nil
}

func (s *Service) CreateService(ctx context.Context, name string, durationMinutes int) (*ClinicService, error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	svc, err := s.repo.CreateService(ctx, strings.TrimSpace(name), durationMinutes)
	if err != nil {
		if errors.Is(err, ErrServiceExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create service: %w", err)
	}

	s.log.Info().Str("service_id", svc.ID.String()).Str("name", svc.Name).Msg("service created")
	return svc, nil
}

func (s *Service) SetServiceActive(ctx context.Context, id uuid.UUID, active bool) (*ClinicService, error) {
	svc, err := s.repo.SetServiceActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update service: %w", err)
	}
	return svc, nil
}

func (s *Service) ListProviders(ctx context.Context) ([]Provider, error) {
	providers, err := s.repo.ListActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

// CreateProvider registers a provider for a user. Registration time fixes the
// provider's position in allocation order.
func (s *Service) CreateProvider(ctx context.Context, userID uuid.UUID, specialty *string) (*Provider, error) {
	if specialty != nil {
		trimmed := strings.TrimSpace(*specialty)
		if trimmed == "" {
			specialty = nil
		} else {
			specialty = &trimmed
		}
	}

	p, err := s.repo.CreateProvider(ctx, userID, specialty)
	if err != nil {
		if errors.Is(err, ErrProviderExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create provider: %w", err)
	}

	s.log.Info().Str("provider_id", p.ID.String()).Str("user_id", userID.String()).Msg("provider created")
	return p, nil
}

func (s *Service) SetProviderActive(ctx context.Context, id uuid.UUID, active bool) (*Provider, error) {
	p, err := s.repo.SetProviderActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update provider: %w", err)
	}
	return p, nil
}

// AddAvailability opens a block for an active provider on date.
func (s *Service) AddAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, startTime, endTime string) (*AvailabilityBlock, error) {
	if !clock.ValidHHMM(startTime) || !clock.ValidHHMM(endTime) {
		return nil, clock.ErrInvalidTime
	}
	// Fixed-width HH:MM compares chronologically.
	if startTime >= endTime {
		return nil, ErrInvalidBlock
	}

	p, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !p.Active {
		return nil, ErrInactiveProvider
	}

	block, err := s.repo.CreateAvailabilityBlock(ctx, p.ID, clock.StartOfDay(date), startTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("create availability block: %w", err)
	}

	s.log.Info().
		Str("provider_id", p.ID.String()).
		Str("date", clock.FormatDate(date)).
		Str("start_time", startTime).
		Str("end_time", endTime).
		Msg("availability added")

	return block, nil
}

// AddOwnAvailability is AddAvailability for the provider owned by userID.
func (s *Service) AddOwnAvailability(ctx context.Context, userID uuid.UUID, date time.Time, startTime, endTime string) (*AvailabilityBlock, error) {
	p, err := s.repo.GetProviderByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	return s.AddAvailability(ctx, p.ID, date, startTime, endTime)
}
