package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinicflow-scheduling/internal/clock"
	"github.com/hackgods/clinicflow-scheduling/internal/config"
	"github.com/hackgods/clinicflow-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinicflow-scheduling/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
)

var (
	ErrInvalidService          = errors.New("invalid service")
	ErrNoProvidersAvailable    = errors.New("no providers available on this date")
	ErrNoAvailableSlot         = errors.New("no available slot for selected time/date")
	ErrForbidden               = errors.New("appointment belongs to another patient")
	ErrAlreadyCancelled        = errors.New("cannot reschedule a cancelled appointment")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// Notifier receives booking confirmations once the booking has committed.
// Implementations must not block.
type Notifier interface {
	Dispatch(msg notify.BookingConfirmation)
}

// Contact optionally overrides where and to whom a confirmation is addressed.
type Contact struct {
	Email string
	Name  string
}

type BookRequest struct {
	ServiceID uuid.UUID
	Date      time.Time
	StartTime string
	Contact   Contact
}

type RescheduleRequest struct {
	AppointmentID uuid.UUID
	Date          time.Time
	StartTime     string
	Contact       Contact
}

// Service is the booking transaction manager. Each booking, cancel and
// reschedule is one database transaction; confirmations go out after commit.
type Service struct {
	repo      Repository
	allocator *Allocator
	index     *AvailabilityIndex
	locker    redisclient.Locker
	notifier  Notifier
	cfg       config.Config
	log       zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		allocator: NewAllocator(log),
		index:     NewAvailabilityIndex(repo),
		locker:    locker,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
	}
}

func (s *Service) ListFreeSlots(ctx context.Context, serviceID uuid.UUID, date time.Time) ([]FreeSlot, error) {
	return s.index.ListFreeSlots(ctx, serviceID, date)
}

// Book reserves the requested or earliest free slot for the caller.
func (s *Service) Book(ctx context.Context, caller Caller, req BookRequest) (*Appointment, error) {
	var alloc *Allocation

	err := s.withDayLock(ctx, req.Date, func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(ctx context.Context, tx Store) error {
			var err error
			alloc, err = s.allocator.Allocate(ctx, tx, AllocationRequest{
				PatientUserID: caller.ID,
				ServiceID:     req.ServiceID,
				Date:          req.Date,
				StartTime:     req.StartTime,
			})
			if err != nil {
				return err
			}

			return s.logEvent(ctx, tx, alloc.Appointment.ID, EventAppointmentBooked, map[string]any{
				"patient_user_id": caller.ID.String(),
				"provider_id":     alloc.Appointment.ProviderID.String(),
				"service_id":      alloc.Service.ID.String(),
				"start_at":        alloc.Appointment.StartAt,
			})
		})
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	appt := alloc.Appointment
	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("provider_id", appt.ProviderID.String()).
		Time("start_at", appt.StartAt).
		Msg("appointment booked")

	s.confirm(caller, req.Contact, alloc)
	return appt, nil
}

// Cancel cancels a BOOKED appointment owned by the caller. Cancelling an
// already cancelled appointment returns it unchanged.
func (s *Service) Cancel(ctx context.Context, callerID, appointmentID uuid.UUID) (*Appointment, error) {
	var result *Appointment

	err := s.repo.InTx(ctx, func(ctx context.Context, tx Store) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.PatientUserID != callerID {
			return ErrForbidden
		}

		switch appt.Status {
		case StatusCancelled:
			result = appt
			return nil
		case StatusBooked:
		default:
			return ErrInvalidStatusTransition
		}

		updated, err := tx.UpdateAppointmentStatus(ctx, appt.ID, StatusBooked, StatusCancelled)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		result = updated

		return s.logEvent(ctx, tx, appt.ID, EventAppointmentCancelled, map[string]any{})
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	return result, nil
}

// Reschedule historizes the original appointment and allocates its successor
// in the same transaction. If no successor can be allocated the original is
// left exactly as it was.
func (s *Service) Reschedule(ctx context.Context, caller Caller, req RescheduleRequest) (*RescheduleResult, error) {
	var alloc *Allocation

	err := s.withDayLock(ctx, req.Date, func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(ctx context.Context, tx Store) error {
			old, err := tx.GetAppointmentForUpdate(ctx, req.AppointmentID)
			if err != nil {
				return err
			}
			if old.PatientUserID != caller.ID {
				return ErrForbidden
			}
			if old.Status == StatusCancelled {
				return ErrAlreadyCancelled
			}

			if _, err := tx.UpdateAppointmentStatus(ctx, old.ID, StatusBooked, StatusRescheduled); err != nil {
				if errors.Is(err, ErrAppointmentNotFound) {
					return ErrInvalidStatusTransition
				}
				return fmt.Errorf("historize appointment: %w", err)
			}

			alloc, err = s.allocator.Allocate(ctx, tx, AllocationRequest{
				PatientUserID: caller.ID,
				ServiceID:     old.ServiceID,
				Date:          req.Date,
				StartTime:     req.StartTime,
			})
			if err != nil {
				return err
			}

			if err := tx.SetRescheduledTo(ctx, old.ID, alloc.Appointment.ID); err != nil {
				return err
			}

			return s.logEvent(ctx, tx, old.ID, EventAppointmentRescheduled, map[string]any{
				"new_appointment_id": alloc.Appointment.ID.String(),
				"start_at":           alloc.Appointment.StartAt,
			})
		})
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	s.log.Info().
		Str("appointment_id", req.AppointmentID.String()).
		Str("new_appointment_id", alloc.Appointment.ID.String()).
		Time("start_at", alloc.Appointment.StartAt).
		Msg("appointment rescheduled")

	s.confirm(caller, req.Contact, alloc)

	return &RescheduleResult{
		OldAppointmentID: req.AppointmentID,
		NewAppointmentID: alloc.Appointment.ID,
		NewAppointment:   alloc.Appointment,
	}, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListMyAppointments(ctx context.Context, patientUserID uuid.UUID) ([]PatientAppointment, error) {
	rows, err := s.repo.ListPatientAppointments(ctx, patientUserID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return rows, nil
}

// ProviderSchedule lists the day's non-cancelled appointments of the provider
// owned by providerUserID. A user without a provider record has no schedule.
func (s *Service) ProviderSchedule(ctx context.Context, providerUserID uuid.UUID, date time.Time) ([]ScheduleEntry, error) {
	provider, err := s.repo.GetProviderByUserID(ctx, providerUserID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return []ScheduleEntry{}, nil
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	from, to := clock.DayWindow(date)
	rows, err := s.repo.ListProviderSchedule(ctx, provider.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list provider schedule: %w", err)
	}
	return rows, nil
}

// withDayLock serialises allocations for one date across instances. The
// database constraint is what guarantees no double booking, so when the lock
// is unavailable the work runs anyway.
func (s *Service) withDayLock(ctx context.Context, date time.Time, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	ran := false
	err := s.locker.WithDayLock(ctx, clock.FormatDate(date), func(lockCtx context.Context) error {
		ran = true
		return fn(lockCtx)
	})
	if ran {
		return err
	}

	s.log.Warn().Err(err).Str("date", clock.FormatDate(date)).Msg("allocation lock unavailable, continuing without it")
	return fn(ctx)
}

func (s *Service) confirm(caller Caller, contact Contact, alloc *Allocation) {
	if s.notifier == nil {
		return
	}

	recipient := strings.TrimSpace(contact.Email)
	if recipient == "" {
		recipient = caller.Email
	}
	if recipient == "" {
		s.log.Warn().Str("appointment_id", alloc.Appointment.ID.String()).Msg("no recipient for booking confirmation")
		return
	}

	name := strings.TrimSpace(contact.Name)
	if name == "" {
		name = NameFromEmail(recipient)
	}

	s.notifier.Dispatch(notify.BookingConfirmation{
		Recipient:   recipient,
		PatientName: name,
		ServiceName: alloc.Service.Name,
		StartAt:     alloc.Appointment.StartAt,
		ClinicName:  s.cfg.ClinicName,
	})
}

func (s *Service) logEvent(ctx context.Context, tx Store, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now().UTC(),
	}

	if err := tx.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	return nil
}

// translateTxError hides storage conflicts behind the user-facing error.
func translateTxError(err error) error {
	if errors.Is(err, ErrSlotTaken) {
		return ErrNoAvailableSlot
	}
	return err
}

var nameSeparators = regexp.MustCompile(`[._-]+`)

// NameFromEmail turns "jane.doe@x" into "Jane Doe".
func NameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Patient"
	}
	words := strings.Fields(nameSeparators.ReplaceAllString(local, " "))
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + w[size:]
	}
	if len(words) == 0 {
		return "Patient"
	}
	return strings.Join(words, " ")
}
