// Package notify delivers post-commit booking confirmations. Delivery is
// fire-and-forget: the scheduling core logs a failed send and moves on, it
// never retries and never rolls back the reservation.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConfirmedBooking is the event emitted exactly once per successful
// reservation, after the transaction commits.
type ConfirmedBooking struct {
	AppointmentID     uuid.UUID `json:"appointment_id"`
	PatientContact    string    `json:"patient_contact"`
	PractitionerLabel string    `json:"practitioner_label"`
	SlotStart         time.Time `json:"slot_start"`
}

type Sink interface {
	AppointmentConfirmed(ctx context.Context, booking ConfirmedBooking) error
}
