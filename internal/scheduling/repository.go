package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrSlotNotFound         = errors.New("slot not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the booking service
// and the slot generator.
//
// ReserveSlot, CancelAppointment and CompleteAppointment are atomic: each
// runs its read-then-write sequence inside a single transaction with the
// affected slot row locked, so two concurrent calls against the same slot
// can never both succeed.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	ListPractitioners(ctx context.Context) ([]Practitioner, error)

	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListSlotsByPractitioner(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, onlyAvailable bool) ([]Slot, error)

	// InsertSlotIfAbsent creates the slot unless one already exists for the
	// same practitioner and start time. It reports whether a row was created.
	InsertSlotIfAbsent(ctx context.Context, slot Slot) (bool, error)

	// ReserveSlot flips the slot to unavailable and inserts a PLANNED
	// appointment bound to it, all in one transaction. now is the instant
	// against which the slot's start is validated.
	ReserveSlot(ctx context.Context, slotID, patientID uuid.UUID, now time.Time) (*Appointment, error)

	// CancelAppointment moves a PLANNED appointment to CANCELLED and frees
	// its slot in the same transaction.
	CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CompleteAppointment moves a PLANNED appointment to COMPLETED. The
	// slot stays consumed.
	CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
