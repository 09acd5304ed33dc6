package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queries is the read-only store surface the strategies aggregate over.
type Queries interface {
	CountCompletedOn(ctx context.Context, day time.Time) (int, error)
	PractitionerLoad(ctx context.Context, from, to time.Time) ([]PractitionerLoadRow, error)
	CountNewPatients(ctx context.Context, from, to time.Time) (int, error)
}

type PractitionerLoadRow struct {
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Name           string    `json:"name"`
	Completed      int       `json:"completed_appointments"`
}

type DailyAppointmentsResult struct {
	ReportType string    `json:"report_type"`
	Date       time.Time `json:"date"`
	Count      int       `json:"count"`
}

type PractitionerLoadResult struct {
	ReportType string                `json:"report_type"`
	From       time.Time             `json:"from"`
	To         time.Time             `json:"to"`
	Load       []PractitionerLoadRow `json:"load"`
}

type NewPatientsResult struct {
	ReportType string    `json:"report_type"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Count      int       `json:"new_patients_count"`
}

// DailyAppointments counts COMPLETED appointments for a single day.
type DailyAppointments struct {
	queries Queries
}

func NewDailyAppointments(queries Queries) *DailyAppointments {
	return &DailyAppointments{queries: queries}
}

func (s *DailyAppointments) Name() string { return "daily_appointments" }

func (s *DailyAppointments) Generate(ctx context.Context, p Params) (any, error) {
	if p.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidParams)
	}

	count, err := s.queries.CountCompletedOn(ctx, p.Date)
	if err != nil {
		return nil, fmt.Errorf("count completed appointments: %w", err)
	}

	return DailyAppointmentsResult{
		ReportType: "Daily Appointments",
		Date:       p.Date,
		Count:      count,
	}, nil
}

// PractitionerLoad counts COMPLETED appointments per practitioner whose slot
// start falls within the range. Rows are ordered by practitioner name so
// identical inputs yield identical output.
type PractitionerLoad struct {
	queries Queries
}

func NewPractitionerLoad(queries Queries) *PractitionerLoad {
	return &PractitionerLoad{queries: queries}
}

func (s *PractitionerLoad) Name() string { return "practitioner_load" }

func (s *PractitionerLoad) Generate(ctx context.Context, p Params) (any, error) {
	if err := validateRange(p); err != nil {
		return nil, err
	}

	load, err := s.queries.PractitionerLoad(ctx, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("practitioner load: %w", err)
	}

	return PractitionerLoadResult{
		ReportType: "Practitioner Load",
		From:       p.From,
		To:         p.To,
		Load:       load,
	}, nil
}

// NewPatients counts patients whose account was created within the range.
type NewPatients struct {
	queries Queries
}

func NewNewPatients(queries Queries) *NewPatients {
	return &NewPatients{queries: queries}
}

func (s *NewPatients) Name() string { return "new_patients" }

func (s *NewPatients) Generate(ctx context.Context, p Params) (any, error) {
	if err := validateRange(p); err != nil {
		return nil, err
	}

	count, err := s.queries.CountNewPatients(ctx, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("count new patients: %w", err)
	}

	return NewPatientsResult{
		ReportType: "New Patients",
		From:       p.From,
		To:         p.To,
		Count:      count,
	}, nil
}

func validateRange(p Params) error {
	if p.From.IsZero() || p.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidParams)
	}
	if p.To.Before(p.From) {
		return fmt.Errorf("%w: to is before from", ErrInvalidParams)
	}
	return nil
}
