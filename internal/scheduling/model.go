package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPlanned   AppointmentStatus = "PLANNED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Specialty struct {
	ID          uuid.UUID
	Name        string
	Description *string
}

type Practitioner struct {
	ID          uuid.UUID
	Name        string
	SpecialtyID *uuid.UUID
	Bio         *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Patient struct {
	ID          uuid.UUID
	Name        string
	Email       *string
	Phone       *string
	DateOfBirth *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Slot is a bookable window on a practitioner's calendar.
// Available flips to false exactly when a live appointment is committed
// against it and back to true only when that appointment is cancelled.
type Slot struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Available      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	SlotID         uuid.UUID
	Status         AppointmentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Slot         *Slot
	Patient      *Patient
	Practitioner *Practitioner
}
