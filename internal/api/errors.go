package api

import (
	"errors"
	"net/http"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/clock"
	"github.com/hackgods/clinicflow-scheduling/internal/logging"
)

// handleServiceError maps domain errors to status codes. Anything unknown is
// logged and reported as internal_error without details.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrInvalidService):
		writeError(w, http.StatusBadRequest, "invalid_service", err.Error())
	case errors.Is(err, appointment.ErrNoProvidersAvailable):
		writeError(w, http.StatusConflict, "no_providers_available", err.Error())
	case errors.Is(err, appointment.ErrNoAvailableSlot):
		writeError(w, http.StatusConflict, "no_available_slot", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, appointment.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrProviderExists):
		writeError(w, http.StatusConflict, "provider_exists", err.Error())
	case errors.Is(err, appointment.ErrServiceExists):
		writeError(w, http.StatusConflict, "service_exists", err.Error())
	case errors.Is(err, appointment.ErrInvalidBlock),
		errors.Is(err, appointment.ErrInactiveProvider),
		errors.Is(err, appointment.ErrInvalidDuration),
		errors.Is(err, clock.ErrInvalidTime),
		errors.Is(err, clock.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		logging.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
