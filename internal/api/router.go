package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/identity"
)

type RouterConfig struct {
	Service     *appointment.Service
	Resolver    identity.Resolver
	Health      *HealthHandler
	Log         zerolog.Logger
	CORSOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	v := NewValidator()
	svc := cfg.Service

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigins))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Resolver))

		anyRole := RequireRoles(appointment.RolePatient, appointment.RoleStaff, appointment.RoleAdmin)
		patient := RequireRoles(appointment.RolePatient)
		staff := RequireRoles(appointment.RoleStaff)
		admin := RequireRoles(appointment.RoleAdmin)

		r.With(anyRole).Get("/availability", listFreeSlotsHandler(svc))
		r.With(admin).Post("/availability", addAvailabilityHandler(svc, v))
		r.With(staff).Post("/availability/self", addOwnAvailabilityHandler(svc, v))

		r.Get("/services", listServicesHandler(svc))
		r.With(admin).Post("/services", createServiceHandler(svc, v))
		r.With(admin).Patch("/services/{id}", setServiceActiveHandler(svc, v))

		r.With(admin).Get("/providers", listProvidersHandler(svc))
		r.With(admin).Post("/providers", createProviderHandler(svc, v))
		r.With(admin).Patch("/providers/{id}", setProviderActiveHandler(svc, v))

		r.Route("/appointments", func(r chi.Router) {
			r.With(patient).Post("/", bookAppointmentHandler(svc, v))
			r.With(patient).Get("/mine", listMyAppointmentsHandler(svc))
			r.With(staff).Get("/provider/mine", providerScheduleHandler(svc))
			r.Get("/{id}", getAppointmentHandler(svc))
			r.With(patient).Delete("/{id}", cancelAppointmentHandler(svc))
			r.With(patient).Patch("/{id}/reschedule", rescheduleAppointmentHandler(svc, v))
		})
	})

	return r
}
