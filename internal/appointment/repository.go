package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrServiceNotFound     = errors.New("service not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrProviderExists      = errors.New("provider already exists for this user")
	ErrServiceExists       = errors.New("service with this name already exists")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned by InsertAppointment when the storage layer
	// rejects the row because it overlaps a committed appointment.
	ErrSlotTaken = errors.New("slot taken by a concurrent booking")
)

// Store is the set of queries the engine runs. The same methods run either
// against the pool or against an open transaction handed out by InTx.
type Store interface {
	GetService(ctx context.Context, id uuid.UUID) (*ClinicService, error)
	ListActiveServices(ctx context.Context) ([]ClinicService, error)
	CreateService(ctx context.Context, name string, durationMinutes int) (*ClinicService, error)
	SetServiceActive(ctx context.Context, id uuid.UUID, active bool) (*ClinicService, error)

	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetProviderByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error)
	ListActiveProviders(ctx context.Context) ([]Provider, error)
	CreateProvider(ctx context.Context, userID uuid.UUID, specialty *string) (*Provider, error)
	SetProviderActive(ctx context.Context, id uuid.UUID, active bool) (*Provider, error)

	CreateAvailabilityBlock(ctx context.Context, providerID uuid.UUID, date time.Time, startTime, endTime string) (*AvailabilityBlock, error)

	// ListBookableProviders returns active providers with at least one block on
	// date, in registration order, each with its blocks for that date.
	ListBookableProviders(ctx context.Context, date time.Time) ([]ProviderDay, error)

	// ListOccupyingAppointments returns non-cancelled appointments whose start
	// falls in [from, to]. A nil providerID selects every provider.
	ListOccupyingAppointments(ctx context.Context, providerID *uuid.UUID, from, to time.Time) ([]Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetAppointmentForUpdate reads the row and holds it for the rest of the transaction.
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	InsertAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	// UpdateAppointmentStatus moves id from -> to; ErrAppointmentNotFound when
	// the row does not exist or is not in status from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	SetRescheduledTo(ctx context.Context, id, successor uuid.UUID) error
	// FindElapsedBooked returns up to limit BOOKED appointments that ended at
	// or before the given instant, oldest first.
	FindElapsedBooked(ctx context.Context, before time.Time, limit int) ([]Appointment, error)

	ListPatientAppointments(ctx context.Context, patientUserID uuid.UUID) ([]PatientAppointment, error)
	ListProviderSchedule(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]ScheduleEntry, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Repository is a Store that can also open transactions.
type Repository interface {
	Store
	// InTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
