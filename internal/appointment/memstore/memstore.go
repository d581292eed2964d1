// Package memstore is an in-memory appointment.Repository.
//
// Transactions are serialised: InTx holds a single mutex for the whole
// callback and works on a copy of the data that replaces the original only on
// success. Overlapping appointments for one provider are rejected the way the
// database exclusion constraint rejects them.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/clock"
)

type state struct {
	services     map[uuid.UUID]appointment.ClinicService
	providers    map[uuid.UUID]appointment.Provider
	blocks       []appointment.AvailabilityBlock
	appointments map[uuid.UUID]appointment.Appointment
	events       []appointment.EventLog
	tick         int64
}

func newState() *state {
	return &state{
		services:     make(map[uuid.UUID]appointment.ClinicService),
		providers:    make(map[uuid.UUID]appointment.Provider),
		appointments: make(map[uuid.UUID]appointment.Appointment),
	}
}

func (s *state) clone() *state {
	c := &state{
		services:     make(map[uuid.UUID]appointment.ClinicService, len(s.services)),
		providers:    make(map[uuid.UUID]appointment.Provider, len(s.providers)),
		blocks:       append([]appointment.AvailabilityBlock(nil), s.blocks...),
		appointments: make(map[uuid.UUID]appointment.Appointment, len(s.appointments)),
		events:       append([]appointment.EventLog(nil), s.events...),
		tick:         s.tick,
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.providers {
		c.providers[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	return c
}

// Store implements appointment.Repository.
type Store struct {
	mu    sync.Mutex
	epoch time.Time
	st    *state
}

func New() *Store {
	return &Store{
		epoch: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		st:    newState(),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx appointment.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &view{st: work, epoch: s.epoch}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Events returns a copy of the committed event log.
func (s *Store) Events() []appointment.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]appointment.EventLog(nil), s.st.events...)
}

// Appointments returns every committed appointment ordered by start.
func (s *Store) Appointments() []appointment.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]appointment.Appointment, 0, len(s.st.appointments))
	for _, a := range s.st.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].StartAt.Before(out[j].StartAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// do runs fn against the committed state outside any transaction.
func (s *Store) do(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{st: s.st, epoch: s.epoch})
}

func (s *Store) GetService(ctx context.Context, id uuid.UUID) (out *appointment.ClinicService, err error) {
	err = s.do(func(v *view) error { out, err = v.GetService(ctx, id); return err })
	return out, err
}

func (s *Store) ListActiveServices(ctx context.Context) (out []appointment.ClinicService, err error) {
	err = s.do(func(v *view) error { out, err = v.ListActiveServices(ctx); return err })
	return out, err
}

func (s *Store) CreateService(ctx context.Context, name string, durationMinutes int) (out *appointment.ClinicService, err error) {
	err = s.do(func(v *view) error { out, err = v.CreateService(ctx, name, durationMinutes); return err })
	return out, err
}

func (s *Store) SetServiceActive(ctx context.Context, id uuid.UUID, active bool) (out *appointment.ClinicService, err error) {
	err = s.do(func(v *view) error { out, err = v.SetServiceActive(ctx, id, active); return err })
	return out, err
}

func (s *Store) GetProvider(ctx context.Context, id uuid.UUID) (out *appointment.Provider, err error) {
	err = s.do(func(v *view) error { out, err = v.GetProvider(ctx, id); return err })
	return out, err
}

func (s *Store) GetProviderByUserID(ctx context.Context, userID uuid.UUID) (out *appointment.Provider, err error) {
	err = s.do(func(v *view) error { out, err = v.GetProviderByUserID(ctx, userID); return err })
	return out, err
}

func (s *Store) ListActiveProviders(ctx context.Context) (out []appointment.Provider, err error) {
	err = s.do(func(v *view) error { out, err = v.ListActiveProviders(ctx); return err })
	return out, err
}

func (s *Store) CreateProvider(ctx context.Context, userID uuid.UUID, specialty *string) (out *appointment.Provider, err error) {
	err = s.do(func(v *view) error { out, err = v.CreateProvider(ctx, userID, specialty); return err })
	return out, err
}

func (s *Store) SetProviderActive(ctx context.Context, id uuid.UUID, active bool) (out *appointment.Provider, err error) {
	err = s.do(func(v *view) error { out, err = v.SetProviderActive(ctx, id, active); return err })
	return out, err
}

func (s *Store) CreateAvailabilityBlock(ctx context.Context, providerID uuid.UUID, date time.Time, startTime, endTime string) (out *appointment.AvailabilityBlock, err error) {
	err = s.do(func(v *view) error {
		out, err = v.CreateAvailabilityBlock(ctx, providerID, date, startTime, endTime)
		return err
	})
	return out, err
}

func (s *Store) ListBookableProviders(ctx context.Context, date time.Time) (out []appointment.ProviderDay, err error) {
	err = s.do(func(v *view) error { out, err = v.ListBookableProviders(ctx, date); return err })
	return out, err
}

func (s *Store) ListOccupyingAppointments(ctx context.Context, providerID *uuid.UUID, from, to time.Time) (out []appointment.Appointment, err error) {
	err = s.do(func(v *view) error { out, err = v.ListOccupyingAppointments(ctx, providerID, from, to); return err })
	return out, err
}

func (s *Store) GetAppointmentByID(ctx context.Context, id uuid.UUID) (out *appointment.Appointment, err error) {
	err = s.do(func(v *view) error { out, err = v.GetAppointmentByID(ctx, id); return err })
	return out, err
}

func (s *Store) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (out *appointment.Appointment, err error) {
	err = s.do(func(v *view) error { out, err = v.GetAppointmentForUpdate(ctx, id); return err })
	return out, err
}

func (s *Store) InsertAppointment(ctx context.Context, a *appointment.Appointment) (out *appointment.Appointment, err error) {
	err = s.do(func(v *view) error { out, err = v.InsertAppointment(ctx, a); return err })
	return out, err
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to appointment.AppointmentStatus) (out *appointment.Appointment, err error) {
	err = s.do(func(v *view) error { out, err = v.UpdateAppointmentStatus(ctx, id, from, to); return err })
	return out, err
}

func (s *Store) SetRescheduledTo(ctx context.Context, id, successor uuid.UUID) error {
	return s.do(func(v *view) error { return v.SetRescheduledTo(ctx, id, successor) })
}

func (s *Store) FindElapsedBooked(ctx context.Context, before time.Time, limit int) (out []appointment.Appointment, err error) {
	err = s.do(func(v *view) error { out, err = v.FindElapsedBooked(ctx, before, limit); return err })
	return out, err
}

func (s *Store) ListPatientAppointments(ctx context.Context, patientUserID uuid.UUID) (out []appointment.PatientAppointment, err error) {
	err = s.do(func(v *view) error { out, err = v.ListPatientAppointments(ctx, patientUserID); return err })
	return out, err
}

func (s *Store) ListProviderSchedule(ctx context.Context, providerID uuid.UUID, from, to time.Time) (out []appointment.ScheduleEntry, err error) {
	err = s.do(func(v *view) error { out, err = v.ListProviderSchedule(ctx, providerID, from, to); return err })
	return out, err
}

func (s *Store) InsertEvent(ctx context.Context, ev appointment.EventLog) error {
	return s.do(func(v *view) error { return v.InsertEvent(ctx, ev) })
}

// view runs queries against one state without locking.
type view struct {
	st    *state
	epoch time.Time
}

// now returns strictly increasing timestamps so creation order is total.
func (v *view) now() time.Time {
	v.st.tick++
	return v.epoch.Add(time.Duration(v.st.tick) * time.Millisecond)
}

func (v *view) GetService(_ context.Context, id uuid.UUID) (*appointment.ClinicService, error) {
	svc, ok := v.st.services[id]
	if !ok {
		return nil, appointment.ErrServiceNotFound
	}
	return &svc, nil
}

func (v *view) ListActiveServices(_ context.Context) ([]appointment.ClinicService, error) {
	var out []appointment.ClinicService
	for _, svc := range v.st.services {
		if svc.Active {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) CreateService(_ context.Context, name string, durationMinutes int) (*appointment.ClinicService, error) {
	for _, svc := range v.st.services {
		if svc.Name == name {
			return nil, appointment.ErrServiceExists
		}
	}
	svc := appointment.ClinicService{
		ID:              uuid.New(),
		Name:            name,
		DurationMinutes: durationMinutes,
		Active:          true,
		CreatedAt:       v.now(),
	}
	v.st.services[svc.ID] = svc
	return &svc, nil
}

func (v *view) SetServiceActive(_ context.Context, id uuid.UUID, active bool) (*appointment.ClinicService, error) {
	svc, ok := v.st.services[id]
	if !ok {
		return nil, appointment.ErrServiceNotFound
	}
	svc.Active = active
	v.st.services[id] = svc
	return &svc, nil
}

func (v *view) GetProvider(_ context.Context, id uuid.UUID) (*appointment.Provider, error) {
	p, ok := v.st.providers[id]
	if !ok {
		return nil, appointment.ErrProviderNotFound
	}
	return &p, nil
}

func (v *view) GetProviderByUserID(_ context.Context, userID uuid.UUID) (*appointment.Provider, error) {
	for _, p := range v.st.providers {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, appointment.ErrProviderNotFound
}

func (v *view) sortedProviders(activeOnly bool) []appointment.Provider {
	var out []appointment.Provider
	for _, p := range v.st.providers {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (v *view) ListActiveProviders(_ context.Context) ([]appointment.Provider, error) {
	return v.sortedProviders(true), nil
}

func (v *view) CreateProvider(_ context.Context, userID uuid.UUID, specialty *string) (*appointment.Provider, error) {
	for _, p := range v.st.providers {
		if p.UserID == userID {
			return nil, appointment.ErrProviderExists
		}
	}
	p := appointment.Provider{
		ID:        uuid.New(),
		UserID:    userID,
		Specialty: specialty,
		Active:    true,
		CreatedAt: v.now(),
	}
	v.st.providers[p.ID] = p
	return &p, nil
}

func (v *view) SetProviderActive(_ context.Context, id uuid.UUID, active bool) (*appointment.Provider, error) {
	p, ok := v.st.providers[id]
	if !ok {
		return nil, appointment.ErrProviderNotFound
	}
	p.Active = active
	v.st.providers[id] = p
	return &p, nil
}

func (v *view) CreateAvailabilityBlock(_ context.Context, providerID uuid.UUID, date time.Time, startTime, endTime string) (*appointment.AvailabilityBlock, error) {
	if _, ok := v.st.providers[providerID]; !ok {
		return nil, appointment.ErrProviderNotFound
	}
	b := appointment.AvailabilityBlock{
		ID:         uuid.New(),
		ProviderID: providerID,
		Date:       clock.StartOfDay(date),
		StartTime:  startTime,
		EndTime:    endTime,
		CreatedAt:  v.now(),
	}
	v.st.blocks = append(v.st.blocks, b)
	return &b, nil
}

func (v *view) ListBookableProviders(_ context.Context, date time.Time) ([]appointment.ProviderDay, error) {
	date = clock.StartOfDay(date)

	var out []appointment.ProviderDay
	for _, p := range v.sortedProviders(true) {
		var blocks []appointment.AvailabilityBlock
		// st.blocks is in insertion order, which is creation order.
		for _, b := range v.st.blocks {
			if b.ProviderID == p.ID && b.Date.Equal(date) {
				blocks = append(blocks, b)
			}
		}
		if len(blocks) > 0 {
			out = append(out, appointment.ProviderDay{Provider: p, Blocks: blocks})
		}
	}
	return out, nil
}

func (v *view) ListOccupyingAppointments(_ context.Context, providerID *uuid.UUID, from, to time.Time) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, a := range v.st.appointments {
		if !a.Occupies() || a.StartAt.Before(from) || a.StartAt.After(to) {
			continue
		}
		if providerID != nil && a.ProviderID != *providerID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (v *view) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := v.st.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (v *view) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return v.GetAppointmentByID(ctx, id)
}

func (v *view) InsertAppointment(_ context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	for _, other := range v.st.appointments {
		if other.ProviderID != a.ProviderID || !other.Occupies() {
			continue
		}
		if clock.Overlaps(a.StartAt, a.EndAt, other.StartAt, other.EndAt) {
			return nil, appointment.ErrSlotTaken
		}
	}

	row := *a
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = v.now()
	row.UpdatedAt = row.CreatedAt
	v.st.appointments[row.ID] = row
	return &row, nil
}

func (v *view) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to appointment.AppointmentStatus) (*appointment.Appointment, error) {
	a, ok := v.st.appointments[id]
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = v.now()
	v.st.appointments[id] = a
	return &a, nil
}

func (v *view) SetRescheduledTo(_ context.Context, id, successor uuid.UUID) error {
	a, ok := v.st.appointments[id]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	a.RescheduledTo = &successor
	a.UpdatedAt = v.now()
	v.st.appointments[id] = a
	return nil
}

func (v *view) FindElapsedBooked(_ context.Context, before time.Time, limit int) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, a := range v.st.appointments {
		if a.Status == appointment.StatusBooked && !a.EndAt.After(before) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndAt.Before(out[j].EndAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *view) ListPatientAppointments(_ context.Context, patientUserID uuid.UUID) ([]appointment.PatientAppointment, error) {
	var out []appointment.PatientAppointment
	for _, a := range v.st.appointments {
		if a.PatientUserID != patientUserID {
			continue
		}
		p := v.st.providers[a.ProviderID]
		out = append(out, appointment.PatientAppointment{
			ID:             a.ID,
			Service:        v.st.services[a.ServiceID].Name,
			ProviderID:     a.ProviderID,
			ProviderUserID: p.UserID,
			Specialty:      p.Specialty,
			StartAt:        a.StartAt,
			EndAt:          a.EndAt,
			Status:         a.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (v *view) ListProviderSchedule(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]appointment.ScheduleEntry, error) {
	appts, err := v.ListOccupyingAppointments(ctx, &providerID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]appointment.ScheduleEntry, 0, len(appts))
	for _, a := range appts {
		out = append(out, appointment.ScheduleEntry{
			ID:            a.ID,
			PatientUserID: a.PatientUserID,
			Service:       v.st.services[a.ServiceID].Name,
			StartAt:       a.StartAt,
			EndAt:         a.EndAt,
			Status:        a.Status,
		})
	}
	return out, nil
}

func (v *view) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	ev.ID = int64(len(v.st.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = v.now()
	}
	v.st.events = append(v.st.events, ev)
	return nil
}
