package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusBooked      AppointmentStatus = "BOOKED"
	StatusRescheduled AppointmentStatus = "RESCHEDULED"
	StatusCancelled   AppointmentStatus = "CANCELLED"
	StatusCompleted   AppointmentStatus = "COMPLETED"
)

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// ClinicService is a bookable, fixed-duration service.
type ClinicService struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
	Active          bool
	CreatedAt       time.Time
}

type Provider struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Specialty *string
	Active    bool
	CreatedAt time.Time
}

// AvailabilityBlock is a window in which a provider can be booked on one date.
// StartTime and EndTime are HH:MM on the canonical clock.
type AvailabilityBlock struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Date       time.Time
	StartTime  string
	EndTime    string
	CreatedAt  time.Time
}

// ProviderDay is a bookable provider together with its blocks for one date,
// in the order they were stored.
type ProviderDay struct {
	Provider Provider
	Blocks   []AvailabilityBlock
}

type Appointment struct {
	ID            uuid.UUID
	PatientUserID uuid.UUID
	ProviderID    uuid.UUID
	ServiceID     uuid.UUID
	StartAt       time.Time
	EndAt         time.Time
	Status        AppointmentStatus
	RescheduledTo *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Occupies reports whether the appointment still holds its provider's time.
func (a Appointment) Occupies() bool {
	return a.Status != StatusCancelled
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// PatientAppointment is the patient-facing view of an appointment.
type PatientAppointment struct {
	ID             uuid.UUID
	Service        string
	ProviderID     uuid.UUID
	ProviderUserID uuid.UUID
	Specialty      *string
	StartAt        time.Time
	EndAt          time.Time
	Status         AppointmentStatus
}

// ScheduleEntry is one row of a provider's daily schedule.
type ScheduleEntry struct {
	ID            uuid.UUID
	PatientUserID uuid.UUID
	Service       string
	StartAt       time.Time
	EndAt         time.Time
	Status        AppointmentStatus
}

// FreeSlot is one start time offered by at least one provider.
type FreeSlot struct {
	StartTime              string
	EndTime                string
	AvailableProviderCount int
}

// RescheduleResult pairs the historized appointment with its successor.
type RescheduleResult struct {
	OldAppointmentID uuid.UUID
	NewAppointmentID uuid.UUID
	NewAppointment   *Appointment
}

// Caller is an already authenticated identity.
type Caller struct {
	ID    uuid.UUID
	Email string
	Role  Role
}
