package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/appointment/memstore"
	"github.com/hackgods/clinicflow-scheduling/internal/config"
	"github.com/hackgods/clinicflow-scheduling/internal/identity"
	"github.com/hackgods/clinicflow-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinicflow-scheduling/internal/redis"
)

type nopNotifier struct{}

func (nopNotifier) Dispatch(notify.BookingConfirmation) {}

type testServer struct {
	t       *testing.T
	handler http.Handler
	tokens  *identity.JWTResolver
	svc     *appointment.Service
}

func newTestServer(t *testing.T) *testServer {
	store := memstore.New()
	svc := appointment.NewService(store, redisclient.NoopLocker{}, nopNotifier{}, config.Config{ClinicName: "Test"}, zerolog.Nop())
	tokens := identity.NewJWTResolver("test-secret", "")

	health := NewHealthHandler(
		func(context.Context) error { return nil },
		func(context.Context) error { return errors.New("connection refused") },
		"test", "v0",
	)

	return &testServer{
		t:      t,
		tokens: tokens,
		svc:    svc,
		handler: NewRouter(RouterConfig{
			Service:     svc,
			Resolver:    tokens,
			Health:      health,
			Log:         zerolog.Nop(),
			CORSOrigins: []string{"http://localhost:3000"},
		}),
	}
}

func (s *testServer) user(role appointment.Role) (identity.User, string) {
	u := identity.User{ID: uuid.New(), Email: "jane.doe@example.com", Role: string(role)}
	tok, err := s.tokens.Issue(u, time.Hour)
	require.NoError(s.t, err)
	return u, tok
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seed creates a 20 minute service and one provider open 09:00-09:40.
func (s *testServer) seed(adminToken string) (ServiceResponse, ProviderResponse) {
	rec := s.do(http.MethodPost, "/services", adminToken, CreateServiceRequest{Name: "Follow-up", DurationMinutes: 20})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	svc := decode[ServiceResponse](s.t, rec)

	rec = s.do(http.MethodPost, "/providers", adminToken, CreateProviderRequest{UserID: uuid.NewString()})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[ProviderResponse](s.t, rec)

	rec = s.do(http.MethodPost, "/availability", adminToken, AddAvailabilityRequest{
		ProviderID: p.ID.String(), Date: "2026-01-05", StartTime: "09:00", EndTime: "09:40",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	return svc, p
}

func TestRouter_Authentication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/appointments/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/appointments/mine", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, staffTok := s.user(appointment.RoleStaff)
	rec = s.do(http.MethodGet, "/appointments/mine", staffTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, patientTok := s.user(appointment.RolePatient)
	rec = s.do(http.MethodPost, "/services", patientTok, CreateServiceRequest{Name: "X", DurationMinutes: 10})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_BookingFlow(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := s.user(appointment.RoleAdmin)
	svc, provider := s.seed(adminTok)
	_, patientTok := s.user(appointment.RolePatient)

	rec := s.do(http.MethodGet, "/availability?serviceId="+svc.ID.String()+"&date=2026-01-05", patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []FreeSlotResponse{
		{StartTime: "09:00", EndTime: "09:20", AvailableProviderCount: 1},
		{StartTime: "09:20", EndTime: "09:40", AvailableProviderCount: 1},
	}, decode[[]FreeSlotResponse](t, rec))

	rec = s.do(http.MethodPost, "/appointments", patientTok, BookAppointmentRequest{ServiceID: svc.ID.String(), Date: "2026-01-05"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booked := decode[BookingResponse](t, rec)
	assert.Equal(t, provider.ID, booked.ProviderID)
	assert.Equal(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), booked.StartAt)
	assert.Equal(t, "BOOKED", booked.Status)

	rec = s.do(http.MethodPost, "/appointments", patientTok, BookAppointmentRequest{ServiceID: svc.ID.String(), Date: "2026-01-05", StartTime: "09:10"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_available_slot", decode[ErrorResponse](t, rec).Error)

	rec = s.do(http.MethodGet, "/appointments/mine", patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]PatientAppointmentResponse](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, "Follow-up", mine[0].Service)

	rec = s.do(http.MethodPatch, "/appointments/"+booked.AppointmentID.String()+"/reschedule", patientTok,
		RescheduleAppointmentRequest{Date: "2026-01-05", StartTime: "09:20"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[RescheduleResponse](t, rec)
	assert.Equal(t, booked.AppointmentID, res.OldAppointmentID)
	assert.Equal(t, time.Date(2026, 1, 5, 9, 20, 0, 0, time.UTC), res.NewAppt.StartAt)

	rec = s.do(http.MethodGet, "/appointments/"+booked.AppointmentID.String(), patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	old := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "RESCHEDULED", old.Status)
	require.NotNil(t, old.RescheduledTo)
	assert.Equal(t, res.NewAppointmentID, *old.RescheduledTo)

	rec = s.do(http.MethodDelete, "/appointments/"+res.NewAppointmentID.String(), patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(http.MethodDelete, "/appointments/"+res.NewAppointmentID.String(), patientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, "/appointments/"+res.NewAppointmentID.String()+"/reschedule", patientTok,
		RescheduleAppointmentRequest{Date: "2026-01-05"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_cancelled", decode[ErrorResponse](t, rec).Error)
}

func TestRouter_CancelOtherPatientsAppointment(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := s.user(appointment.RoleAdmin)
	svc, _ := s.seed(adminTok)
	_, ownerTok := s.user(appointment.RolePatient)
	_, otherTok := s.user(appointment.RolePatient)

	rec := s.do(http.MethodPost, "/appointments", ownerTok, BookAppointmentRequest{ServiceID: svc.ID.String(), Date: "2026-01-05"})
	require.Equal(t, http.StatusCreated, rec.Code)
	booked := decode[BookingResponse](t, rec)

	rec = s.do(http.MethodDelete, "/appointments/"+booked.AppointmentID.String(), otherTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, "/appointments/"+uuid.NewString(), ownerTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/appointments/not-a-uuid", ownerTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ValidationErrors(t *testing.T) {
	s := newTestServer(t)
	_, patientTok := s.user(appointment.RolePatient)
	_, adminTok := s.user(appointment.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		code   string
	}{
		{"bad service id", http.MethodPost, "/appointments", patientTok, BookAppointmentRequest{ServiceID: "x", Date: "2026-01-05"}, "validation_failed"},
		{"bad date", http.MethodPost, "/appointments", patientTok, BookAppointmentRequest{ServiceID: uuid.NewString(), Date: "05/01/2026"}, "validation_failed"},
		{"bad start time", http.MethodPost, "/appointments", patientTok, BookAppointmentRequest{ServiceID: uuid.NewString(), Date: "2026-01-05", StartTime: "25:00"}, "validation_failed"},
		{"unknown service", http.MethodPost, "/appointments", patientTok, BookAppointmentRequest{ServiceID: uuid.NewString(), Date: "2026-01-05"}, "invalid_service"},
		{"block end before start", http.MethodPost, "/availability", adminTok, AddAvailabilityRequest{ProviderID: uuid.NewString(), Date: "2026-01-05", StartTime: "10:00", EndTime: "09:00"}, "validation_failed"},
		{"missing active flag", http.MethodPatch, "/services/" + uuid.NewString(), adminTok, map[string]string{}, "validation_failed"},
		{"availability without date", http.MethodGet, "/availability?serviceId=" + uuid.NewString(), patientTok, nil, "validation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+patientTok)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, rec).Error)
}

func TestRouter_StaffSchedule(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := s.user(appointment.RoleAdmin)
	staff, staffTok := s.user(appointment.RoleStaff)

	rec := s.do(http.MethodPost, "/availability/self", staffTok, AddOwnAvailabilityRequest{Date: "2026-01-05", StartTime: "09:00", EndTime: "10:00"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "provider_not_found", decode[ErrorResponse](t, rec).Error)

	rec = s.do(http.MethodPost, "/providers", adminTok, CreateProviderRequest{UserID: staff.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/providers", adminTok, CreateProviderRequest{UserID: staff.ID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/availability/self", staffTok, AddOwnAvailabilityRequest{Date: "2026-01-05", StartTime: "09:00", EndTime: "10:00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2026-01-05", decode[AvailabilityBlockResponse](t, rec).Date)

	rec = s.do(http.MethodPost, "/services", adminTok, CreateServiceRequest{Name: "General Consultation", DurationMinutes: 30})
	require.Equal(t, http.StatusCreated, rec.Code)
	svc := decode[ServiceResponse](t, rec)

	patient, patientTok := s.user(appointment.RolePatient)
	rec = s.do(http.MethodPost, "/appointments", patientTok, BookAppointmentRequest{ServiceID: svc.ID.String(), Date: "2026-01-05", StartTime: "09:30"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/appointments/provider/mine?date=2026-01-05", staffTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	schedule := decode[[]ScheduleEntryResponse](t, rec)
	require.Len(t, schedule, 1)
	assert.Equal(t, patient.ID, schedule[0].PatientUserID)
	assert.Equal(t, "General Consultation", schedule[0].Service)

	rec = s.do(http.MethodGet, "/appointments/provider/mine?date=2026-01-06", staffTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["redis"])
	assert.Equal(t, "ok", ready.Dependencies["postgres"])
}

func TestRouter_CORSAndRequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/appointments", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
