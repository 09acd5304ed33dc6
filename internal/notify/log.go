package notify

import (
	"context"
	"log"
)

// LogSink writes confirmations to the process log. Used in dev and as the
// fallback when no broker is configured.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) AppointmentConfirmed(_ context.Context, booking ConfirmedBooking) error {
	log.Printf(
		"appointment confirmed: id=%s contact=%s practitioner=%q slot_start=%s",
		booking.AppointmentID,
		booking.PatientContact,
		booking.PractitionerLabel,
		booking.SlotStart.Format("2006-01-02 15:04"),
	)
	return nil
}
