package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/notify"
	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var (
	ErrSlotInPast        = errors.New("slot start is in the past")
	ErrSlotUnavailable   = errors.New("slot is not available")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	sink   notify.Sink
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, sink notify.Sink) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		sink:   sink,
		now:    time.Now,
	}
}

// Reserve books the slot for the patient. The per-slot Redis lock sheds
// concurrent attempts cheaply; correctness comes from the repository, which
// re-validates availability under a row lock in the same transaction that
// writes the appointment. A caller that loses either race gets
// ErrSlotUnavailable.
func (s *Service) Reserve(ctx context.Context, patientID, slotID uuid.UUID) (*Appointment, error) {
	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		appt, err := s.repo.ReserveSlot(lockCtx, slotID, patientID, s.now())
		if err != nil {
			return err
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentConfirmed, map[string]any{
			"slot_id":    slotID.String(),
			"patient_id": patientID.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	// Notify only after the reservation is committed. Delivery is
	// best-effort: a sink failure is logged and never rolls back or
	// retries the booking.
	s.notifyConfirmed(ctx, created, patient)

	return created, nil
}

// Cancel moves a PLANNED appointment to CANCELLED and frees its slot.
// Cancelling a COMPLETED or already-CANCELLED appointment is rejected with
// ErrInvalidTransition.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var cancelled *Appointment

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.locker.WithSlotLock(ctx, appt.SlotID, func(lockCtx context.Context) error {
		updated, err := s.repo.CancelAppointment(lockCtx, id)
		if err != nil {
			return err
		}
		cancelled = updated

		s.logEvent(lockCtx, updated.ID, EventAppointmentCancelled, map[string]any{
			"slot_id": updated.SlotID.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	return cancelled, nil
}

// Complete moves a PLANNED appointment to COMPLETED. The slot stays
// consumed; a completed visit does not free capacity.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.CompleteAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{})

	return appt, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// ListSlots lists a practitioner's slots in [from, to).
func (s *Service) ListSlots(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, onlyAvailable bool) ([]Slot, error) {
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}

	slots, err := s.repo.ListSlotsByPractitioner(ctx, practitionerID, from, to, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (s *Service) notifyConfirmed(ctx context.Context, appt *Appointment, patient *Patient) {
	practitioner, err := s.repo.GetPractitionerByID(ctx, appt.PractitionerID)
	if err != nil {
		log.Printf("notify: load practitioner %s: %v", appt.PractitionerID, err)
		return
	}
	slot, err := s.repo.GetSlotByID(ctx, appt.SlotID)
	if err != nil {
		log.Printf("notify: load slot %s: %v", appt.SlotID, err)
		return
	}

	contact := ""
	if patient.Email != nil {
		contact = *patient.Email
	}

	booking := notify.ConfirmedBooking{
		AppointmentID:     appt.ID,
		PatientContact:    contact,
		PractitionerLabel: practitioner.Name,
		SlotStart:         slot.StartTime,
	}

	if err := s.sink.AppointmentConfirmed(ctx, booking); err != nil {
		log.Printf("notify: appointment %s confirmation not delivered: %v", appt.ID, err)
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
