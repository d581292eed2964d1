package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"

	constraintNoOverlap      = "appointments_no_overlap"
	constraintProviderStart  = "appointments_provider_start_key"
	constraintProviderUserID = "providers_user_id_key"
	constraintServiceNameKey = "clinic_services_name_key"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, db: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if r.pool == nil {
		return errors.New("nested InTx is not supported")
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &PgRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isSlotConflict(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Helpers

func pgErrorIs(err error, code string, constraints ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if pgErr.ConstraintName == c {
			return true
		}
	}
	return false
}

func isSlotConflict(err error) bool {
	return pgErrorIs(err, pgExclusionViolation, constraintNoOverlap) ||
		pgErrorIs(err, pgUniqueViolation, constraintProviderStart)
}

func scanService(row pgx.Row) (*ClinicService, error) {
	var s ClinicService

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.DurationMinutes,
		&s.Active,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&specialty,
		&p.Active,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var rescheduledTo *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.PatientUserID,
		&a.ProviderID,
		&a.ServiceID,
		&a.StartAt,
		&a.EndAt,
		&a.Status,
		&rescheduledTo,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartAt = a.StartAt.UTC()
	a.EndAt = a.EndAt.UTC()
	a.RescheduledTo = rescheduledTo
	return &a, nil
}

const appointmentColumns = `id, patient_user_id, provider_id, service_id, start_at, end_at, status, rescheduled_to, created_at, updated_at`

// Services

func (r *PgRepository) GetService(ctx context.Context, id uuid.UUID) (*ClinicService, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, duration_minutes, active, created_at
		FROM clinic_services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) ListActiveServices(ctx context.Context) ([]ClinicService, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, duration_minutes, active, created_at
		FROM clinic_services
		WHERE active
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ClinicService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateService(ctx context.Context, name string, durationMinutes int) (*ClinicService, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO clinic_services (id, name, duration_minutes, active, created_at)
		VALUES ($1, $2, $3, true, now())
		RETURNING id, name, duration_minutes, active, created_at
	`, uuid.New(), name, durationMinutes)

	s, err := scanService(row)
	if err != nil {
		if pgErrorIs(err, pgUniqueViolation, constraintServiceNameKey) {
			return nil, ErrServiceExists
		}
		return nil, err
	}
	return s, nil
}

func (r *PgRepository) SetServiceActive(ctx context.Context, id uuid.UUID, active bool) (*ClinicService, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE clinic_services
		SET active = $2
		WHERE id = $1
		RETURNING id, name, duration_minutes, active, created_at
	`, id, active)
	return scanService(row)
}

// Providers

func (r *PgRepository) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, specialty, active, created_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetProviderByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, specialty, active, created_at
		FROM providers
		WHERE user_id = $1
	`, userID)
	return scanProvider(row)
}

func (r *PgRepository) ListActiveProviders(ctx context.Context) ([]Provider, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, specialty, active, created_at
		FROM providers
		WHERE active
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateProvider(ctx context.Context, userID uuid.UUID, specialty *string) (*Provider, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO providers (id, user_id, specialty, active, created_at)
		VALUES ($1, $2, $3, true, clock_timestamp())
		RETURNING id, user_id, specialty, active, created_at
	`, uuid.New(), userID, specialty)

	p, err := scanProvider(row)
	if err != nil {
		if pgErrorIs(err, pgUniqueViolation, constraintProviderUserID) {
			return nil, ErrProviderExists
		}
		return nil, err
	}
	return p, nil
}

func (r *PgRepository) SetProviderActive(ctx context.Context, id uuid.UUID, active bool) (*Provider, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE providers
		SET active = $2
		WHERE id = $1
		RETURNING id, user_id, specialty, active, created_at
	`, id, active)
	return scanProvider(row)
}

// Availability

func (r *PgRepository) CreateAvailabilityBlock(ctx context.Context, providerID uuid.UUID, date time.Time, startTime, endTime string) (*AvailabilityBlock, error) {
	var b AvailabilityBlock
	err := r.db.QueryRow(ctx, `
		INSERT INTO availability_blocks (id, provider_id, date, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, clock_timestamp())
		RETURNING id, provider_id, date, start_time, end_time, created_at
	`, uuid.New(), providerID, date, startTime, endTime).Scan(
		&b.ID,
		&b.ProviderID,
		&b.Date,
		&b.StartTime,
		&b.EndTime,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert availability block: %w", err)
	}
	return &b, nil
}

func (r *PgRepository) ListBookableProviders(ctx context.Context, date time.Time) ([]ProviderDay, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.user_id, p.specialty, p.active, p.created_at,
		       b.id, b.date, b.start_time, b.end_time, b.created_at
		FROM providers p
		JOIN availability_blocks b ON b.provider_id = p.id
		WHERE p.active
		  AND b.date = $1
		ORDER BY p.created_at ASC, p.id ASC, b.created_at ASC, b.id ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ProviderDay
	for rows.Next() {
		var p Provider
		var b AvailabilityBlock
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Specialty, &p.Active, &p.CreatedAt,
			&b.ID, &b.Date, &b.StartTime, &b.EndTime, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		b.ProviderID = p.ID

		n := len(result)
		if n == 0 || result[n-1].Provider.ID != p.ID {
			result = append(result, ProviderDay{Provider: p})
			n++
		}
		result[n-1].Blocks = append(result[n-1].Blocks, b)
	}
	return result, rows.Err()
}

// Appointments

func (r *PgRepository) ListOccupyingAppointments(ctx context.Context, providerID *uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status <> 'CANCELLED'
		  AND start_at >= $1
		  AND start_at <= $2
		  AND ($3::uuid IS NULL OR provider_id = $3)
		ORDER BY start_at ASC
	`, from, to, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

// InsertAppointment writes the row under a savepoint so a constraint
// violation leaves the surrounding transaction usable for another attempt.
func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	sp, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := sp.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_user_id, provider_id, service_id, start_at, end_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+appointmentColumns, id, a.PatientUserID, a.ProviderID, a.ServiceID, a.StartAt, a.EndAt, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		if isSlotConflict(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := sp.Commit(ctx); err != nil {
		if isSlotConflict(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("release savepoint: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) SetRescheduledTo(ctx context.Context, id, successor uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET rescheduled_to = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, successor)
	if err != nil {
		return fmt.Errorf("link successor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) FindElapsedBooked(ctx context.Context, before time.Time, limit int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'BOOKED'
		  AND end_at <= $1
		ORDER BY end_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListPatientAppointments(ctx context.Context, patientUserID uuid.UUID) ([]PatientAppointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, s.name, a.provider_id, p.user_id, p.specialty, a.start_at, a.end_at, a.status
		FROM appointments a
		JOIN clinic_services s ON s.id = a.service_id
		JOIN providers p ON p.id = a.provider_id
		WHERE a.patient_user_id = $1
		ORDER BY a.start_at ASC
	`, patientUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PatientAppointment
	for rows.Next() {
		var pa PatientAppointment
		if err := rows.Scan(
			&pa.ID, &pa.Service, &pa.ProviderID, &pa.ProviderUserID, &pa.Specialty,
			&pa.StartAt, &pa.EndAt, &pa.Status,
		); err != nil {
			return nil, err
		}
		pa.StartAt = pa.StartAt.UTC()
		pa.EndAt = pa.EndAt.UTC()
		result = append(result, pa)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListProviderSchedule(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]ScheduleEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.patient_user_id, s.name, a.start_at, a.end_at, a.status
		FROM appointments a
		JOIN clinic_services s ON s.id = a.service_id
		WHERE a.provider_id = $1
		  AND a.status <> 'CANCELLED'
		  AND a.start_at >= $2
		  AND a.start_at <= $3
		ORDER BY a.start_at ASC
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleEntry
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.ID, &e.PatientUserID, &e.Service, &e.StartAt, &e.EndAt, &e.Status); err != nil {
			return nil, err
		}
		e.StartAt = e.StartAt.UTC()
		e.EndAt = e.EndAt.UTC()
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
