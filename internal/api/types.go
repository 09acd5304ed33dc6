package api

import (
	"time"

	"github.com/google/uuid"
)

type GenerateSlotsRequest struct {
	Date            string `json:"date"`             // 2006-01-02
	StartTime       string `json:"start_time"`       // 15:04
	EndTime         string `json:"end_time"`         // 15:04
	IntervalMinutes int    `json:"interval_minutes"`
}

type GenerateSlotsResponse struct {
	CreatedCount int `json:"created_count"`
}

type SlotResponse struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Available      bool      `json:"available"`
}

type ReserveRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	SlotID         uuid.UUID `json:"slot_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	SlotStart        *time.Time `json:"slot_start,omitempty"`
	SlotEnd          *time.Time `json:"slot_end,omitempty"`
	PatientName      string     `json:"patient_name,omitempty"`
	PractitionerName string     `json:"practitioner_name,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
