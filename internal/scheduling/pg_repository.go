package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.DateOfBirth,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.SpecialtyID,
		&p.Bio,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.PractitionerID,
		&s.StartTime,
		&s.EndTime,
		&s.Available,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.SlotID,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

const appointmentColumns = `id, patient_id, practitioner_id, slot_id, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, date_of_birth, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty_id, bio, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) ListPractitioners(ctx context.Context) ([]Practitioner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty_id, bio, created_at, updated_at
		FROM practitioners
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, practitioner_id, start_time, end_time, available, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlotsByPractitioner(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, onlyAvailable bool) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, start_time, end_time, available, created_at, updated_at
		FROM slots
		WHERE practitioner_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND ($4 = false OR available = true)
		ORDER BY start_time
	`, practitionerID, from, to, onlyAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

func (r *PgRepository) InsertSlotIfAbsent(ctx context.Context, slot Slot) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO slots (id, practitioner_id, start_time, end_time, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, now(), now())
		ON CONFLICT (practitioner_id, start_time) DO NOTHING
	`, slot.ID, slot.PractitionerID, slot.StartTime, slot.EndTime)
	if err != nil {
		return false, fmt.Errorf("insert slot: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ReserveSlot performs the whole check-then-act sequence under a row-level
// exclusive lock on the slot, so concurrent reservations of the same slot
// serialize at the database and at most one of them observes available=true.
func (r *PgRepository) ReserveSlot(ctx context.Context, slotID, patientID uuid.UUID, now time.Time) (*Appointment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, practitioner_id, start_time, end_time, available, created_at, updated_at
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, slotID)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, err
	}

	if !slot.StartTime.After(now) {
		return nil, ErrSlotInPast
	}
	if !slot.Available {
		return nil, ErrSlotUnavailable
	}

	if _, err := tx.Exec(ctx, `
		UPDATE slots
		SET available = false,
		    updated_at = now()
		WHERE id = $1
	`, slotID); err != nil {
		return nil, fmt.Errorf("mark slot unavailable: %w", err)
	}

	apptRow := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, practitioner_id, slot_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'PLANNED', now(), now())
		RETURNING `+appointmentColumns+`
	`, uuid.New(), patientID, slot.PractitionerID, slotID)

	appt, err := scanAppointment(apptRow)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve tx: %w", err)
	}

	return appt, nil
}

// CancelAppointment releases the slot in the same transaction that flips the
// appointment to CANCELLED. The slot row is locked first with the same
// discipline as ReserveSlot, so a cancel and a fresh reserve on the same slot
// cannot interleave.
func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if appt.Status != StatusPlanned {
		return nil, ErrInvalidTransition
	}

	// Lock the slot row before touching it, same order as ReserveSlot.
	if _, err := tx.Exec(ctx, `
		SELECT id FROM slots WHERE id = $1 FOR UPDATE
	`, appt.SlotID); err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}

	updatedRow := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id)

	updated, err := scanAppointment(updatedRow)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE slots
		SET available = true,
		    updated_at = now()
		WHERE id = $1
	`, appt.SlotID); err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel tx: %w", err)
	}

	return updated, nil
}

func (r *PgRepository) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'COMPLETED',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'PLANNED'
		RETURNING `+appointmentColumns+`
	`, id)

	appt, err := scanAppointment(row)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	// No PLANNED row matched: distinguish a missing appointment from one
	// already in a terminal state.
	if _, lookupErr := r.GetAppointmentByID(ctx, id); lookupErr != nil {
		return nil, lookupErr
	}
	return nil, ErrInvalidTransition
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := AppointmentDetail{Appointment: *appt}

	if detail.Slot, err = r.GetSlotByID(ctx, appt.SlotID); err != nil {
		return nil, err
	}
	if detail.Patient, err = r.GetPatientByID(ctx, appt.PatientID); err != nil {
		return nil, err
	}
	if detail.Practitioner, err = r.GetPractitionerByID(ctx, appt.PractitionerID); err != nil {
		return nil, err
	}

	return &detail, nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.patient_id, a.practitioner_id, a.slot_id, a.status, a.created_at, a.updated_at,
		       s.id, s.practitioner_id, s.start_time, s.end_time, s.available, s.created_at, s.updated_at,
		       p.id, p.name, p.specialty_id, p.bio, p.created_at, p.updated_at
		FROM appointments a
		JOIN slots s ON s.id = a.slot_id
		JOIN practitioners p ON p.id = a.practitioner_id
		WHERE a.patient_id = $1
		ORDER BY s.start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var d AppointmentDetail
		var s Slot
		var p Practitioner

		err := rows.Scan(
			&d.ID, &d.PatientID, &d.PractitionerID, &d.SlotID, &d.Status, &d.CreatedAt, &d.UpdatedAt,
			&s.ID, &s.PractitionerID, &s.StartTime, &s.EndTime, &s.Available, &s.CreatedAt, &s.UpdatedAt,
			&p.ID, &p.Name, &p.SpecialtyID, &p.Bio, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		d.Slot = &s
		d.Practitioner = &p
		result = append(result, d)
	}

	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
