package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/clock"
)

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseDateQuery(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := clock.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func mustCaller(r *http.Request) appointment.Caller {
	c, _ := CallerFrom(r.Context())
	return c
}

// Appointments

func listFreeSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID, err := uuid.Parse(r.URL.Query().Get("serviceId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "serviceId must be a valid UUID")
			return
		}
		date, ok := parseDateQuery(w, r)
		if !ok {
			return
		}

		slots, err := svc.ListFreeSlots(r.Context(), serviceID, date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]FreeSlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, FreeSlotResponse{
				StartTime:              s.StartTime,
				EndTime:                s.EndTime,
				AvailableProviderCount: s.AvailableProviderCount,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bookAppointmentHandler(svc *appointment.Service, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeAndValidate(w, r, v, &req) {
			return
		}

		// Both already validated.
		serviceID := uuid.MustParse(req.ServiceID)
		date, _ := clock.ParseDate(req.Date)

		appt, err := svc.Book(r.Context(), mustCaller(r), appointment.BookRequest{
			ServiceID: serviceID,
			Date:      date,
			StartTime: req.StartTime,
			Contact:   appointment.Contact{Email: req.PatientEmail, Name: req.PatientName},
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{
			AppointmentID: appt.ID,
			ProviderID:    appt.ProviderID,
			StartAt:       appt.StartAt,
			EndAt:         appt.EndAt,
			Status:        string(appt.Status),
		})
	}
}

func listMyAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListMyAppointments(r.Context(), mustCaller(r).ID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]PatientAppointmentResponse, 0, len(rows))
		for _, a := range rows {
			resp = append(resp, PatientAppointmentResponse{
				ID:             a.ID,
				Service:        a.Service,
				ProviderID:     a.ProviderID,
				ProviderUserID: a.ProviderUserID,
				Specialty:      a.Specialty,
				StartAt:        a.StartAt,
				EndAt:          a.EndAt,
				Status:         string(a.Status),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func providerScheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateQuery(w, r)
		if !ok {
			return
		}

		rows, err := svc.ProviderSchedule(r.Context(), mustCaller(r).ID, date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]ScheduleEntryResponse, 0, len(rows))
		for _, e := range rows {
			resp = append(resp, ScheduleEntryResponse{
				ID:            e.ID,
				PatientUserID: e.PatientUserID,
				Service:       e.Service,
				StartAt:       e.StartAt,
				EndAt:         e.EndAt,
				Status:        string(e.Status),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), mustCaller(r).ID, id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req RescheduleAppointmentRequest
		if !decodeAndValidate(w, r, v, &req) {
			return
		}
		date, _ := clock.ParseDate(req.Date)

		res, err := svc.Reschedule(r.Context(), mustCaller(r), appointment.RescheduleRequest{
			AppointmentID: id,
			Date:          date,
			StartTime:     req.StartTime,
			Contact:       appointment.Contact{Email: req.PatientEmail, Name: req.PatientName},
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, RescheduleResponse{
			OldAppointmentID: res.OldAppointmentID,
			NewAppointmentID: res.NewAppointmentID,
			NewAppt:          toAppointmentResponse(res.NewAppointment),
		})
	}
}

// Catalog

func listServicesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svcs, err := svc.ListServices(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		resp := make([]ServiceResponse, 0, len(svcs))
		for i := range svcs {
			resp = append(resp, toServiceResponse(&svcs[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createServiceHandler(svc *appointment.Service, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateServiceRequest
		if !decodeAndValidate(w, r, v, &req) {
			return
		}
		created, err := svc.CreateService(r.Context(), strings.TrimSpace(req.Name), req.DurationMinutes)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toServiceResponse(created))
	}
}

func setServiceActiveHandler(svc *appointment.Service, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		var req SetActiveRequest
		if !decodeAndValidate(w, r, v, &req) {
			return
		}
		updated, err := svc.SetServiceActive(r.Context(), id, *req.Active)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceResponse(updated))
	}
}

func listProvidersHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := svc.ListProviders(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		resp := make([]ProviderResponse, 0, len(providers))
		for i := range providers {
			resp = append(resp, toProviderResponse(&providers[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createProviderHandler(svc *appointment.Service, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProviderRequest
		if !decodeAndValidate(w, r, v, &req) {
			return
		}
		p, err := svc.CreateProvider(r.Context(), uuid.MustParse(req.UserID), req.Specialty)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toProviderResponse(p))
	}
}

func setProviderActiveHandler(svc *appointment.Service, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		var req SetActiveRequest
		if !decodeAndValidate(w, r, v, &req) {
			return
		}
		p, err := svc.SetProviderActive(r.Context(), id, *req.Active)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toProviderResponse(p))
	}
}

func addAvailabilityHandler(svc *appointment.Service, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddAvailabilityRequest
		if !decodeAndValidate(w, r, v, &req) {
			return
		}
		date, _ := clock.ParseDate(req.Date)

		block, err := svc.AddAvailability(r.Context(), uuid.MustParse(req.ProviderID), date, req.StartTime, req.EndTime)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponse(block))
	}
}

func addOwnAvailabilityHandler(svc *appointment.Service, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddOwnAvailabilityRequest
		if !decodeAndValidate(w, r, v, &req) {
			return
		}
		date, _ := clock.ParseDate(req.Date)

		block, err := svc.AddOwnAvailability(r.Context(), mustCaller(r).ID, date, req.StartTime, req.EndTime)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponse(block))
	}
}

func toBlockResponse(b *appointment.AvailabilityBlock) AvailabilityBlockResponse {
	return AvailabilityBlockResponse{
		ID:         b.ID,
		ProviderID: b.ProviderID,
		Date:       clock.FormatDate(b.Date),
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
	}
}
