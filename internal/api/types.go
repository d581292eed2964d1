package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
)

type BookAppointmentRequest struct {
	ServiceID    string `json:"serviceId" validate:"required,uuid"`
	Date         string `json:"date" validate:"required,date"`
	StartTime    string `json:"startTime" validate:"omitempty,hhmm"`
	PatientEmail string `json:"patientEmail" validate:"omitempty,email"`
	PatientName  string `json:"patientName" validate:"omitempty,max=120"`
}

type RescheduleAppointmentRequest struct {
	Date         string `json:"date" validate:"required,date"`
	StartTime    string `json:"startTime" validate:"omitempty,hhmm"`
	PatientEmail string `json:"patientEmail" validate:"omitempty,email"`
	PatientName  string `json:"patientName" validate:"omitempty,max=120"`
}

type CreateServiceRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,gt=0,lte=480"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type CreateProviderRequest struct {
	UserID    string  `json:"userId" validate:"required,uuid"`
	Specialty *string `json:"specialty" validate:"omitempty,max=100"`
}

type AddAvailabilityRequest struct {
	ProviderID string `json:"providerId" validate:"required,uuid"`
	Date       string `json:"date" validate:"required,date"`
	StartTime  string `json:"startTime" validate:"required,hhmm"`
	EndTime    string `json:"endTime" validate:"required,hhmm"`
}

type AddOwnAvailabilityRequest struct {
	Date      string `json:"date" validate:"required,date"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
}

type BookingResponse struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	ProviderID    uuid.UUID `json:"providerId"`
	StartAt       time.Time `json:"startAt"`
	EndAt         time.Time `json:"endAt"`
	Status        string    `json:"status"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientUserID uuid.UUID  `json:"patientUserId"`
	ProviderID    uuid.UUID  `json:"providerId"`
	ServiceID     uuid.UUID  `json:"serviceId"`
	StartAt       time.Time  `json:"startAt"`
	EndAt         time.Time  `json:"endAt"`
	Status        string     `json:"status"`
	RescheduledTo *uuid.UUID `json:"rescheduledTo,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type PatientAppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	Service        string    `json:"service"`
	ProviderID     uuid.UUID `json:"providerId"`
	ProviderUserID uuid.UUID `json:"providerUserId"`
	Specialty      *string   `json:"specialty"`
	StartAt        time.Time `json:"startAt"`
	EndAt          time.Time `json:"endAt"`
	Status         string    `json:"status"`
}

type ScheduleEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	PatientUserID uuid.UUID `json:"patientUserId"`
	Service       string    `json:"service"`
	StartAt       time.Time `json:"startAt"`
	EndAt         time.Time `json:"endAt"`
	Status        string    `json:"status"`
}

type FreeSlotResponse struct {
	StartTime              string `json:"startTime"`
	EndTime                string `json:"endTime"`
	AvailableProviderCount int    `json:"availableProviderCount"`
}

type RescheduleResponse struct {
	OldAppointmentID uuid.UUID           `json:"oldAppointmentId"`
	NewAppointmentID uuid.UUID           `json:"newAppointmentId"`
	NewAppt          AppointmentResponse `json:"newAppt"`
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"durationMinutes"`
	Active          bool      `json:"active"`
}

type ProviderResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Specialty *string   `json:"specialty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type AvailabilityBlockResponse struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"providerId"`
	Date       string    `json:"date"`
	StartTime  string    `json:"startTime"`
	EndTime    string    `json:"endTime"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		PatientUserID: a.PatientUserID,
		ProviderID:    a.ProviderID,
		ServiceID:     a.ServiceID,
		StartAt:       a.StartAt,
		EndAt:         a.EndAt,
		Status:        string(a.Status),
		RescheduledTo: a.RescheduledTo,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toServiceResponse(s *appointment.ClinicService) ServiceResponse {
	return ServiceResponse{ID: s.ID, Name: s.Name, DurationMinutes: s.DurationMinutes, Active: s.Active}
}

func toProviderResponse(p *appointment.Provider) ProviderResponse {
	return ProviderResponse{ID: p.ID, UserID: p.UserID, Specialty: p.Specialty, Active: p.Active, CreatedAt: p.CreatedAt}
}
