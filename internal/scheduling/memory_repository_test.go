package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepo is an in-memory Repository for tests. Its mutex is held across
// each read-then-write sequence, mirroring the row-lock discipline of the
// Postgres implementation.
type memoryRepo struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]*Patient
	practitioners map[uuid.UUID]*Practitioner
	slots         map[uuid.UUID]*Slot
	appointments  map[uuid.UUID]*Appointment
	events        []EventLog
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		patients:      make(map[uuid.UUID]*Patient),
		practitioners: make(map[uuid.UUID]*Practitioner),
		slots:         make(map[uuid.UUID]*Slot),
		appointments:  make(map[uuid.UUID]*Appointment),
	}
}

func (m *memoryRepo) addPatient(name string) *Patient {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := name + "@example.com"
	p := &Patient{
		ID:        uuid.New(),
		Name:      name,
		Email:     &email,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.patients[p.ID] = p
	return p
}

func (m *memoryRepo) addPractitioner(name string) *Practitioner {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &Practitioner{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.practitioners[p.ID] = p
	return p
}

func (m *memoryRepo) addSlot(practitionerID uuid.UUID, start time.Time, length time.Duration) *Slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Slot{
		ID:             uuid.New(),
		PractitionerID: practitionerID,
		StartTime:      start,
		EndTime:        start.Add(length),
		Available:      true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.slots[s.ID] = s
	return s
}

func (m *memoryRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepo) GetPractitionerByID(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepo) ListPractitioners(_ context.Context) ([]Practitioner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Practitioner, 0, len(m.practitioners))
	for _, p := range m.practitioners {
		result = append(result, *p)
	}
	return result, nil
}

func (m *memoryRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryRepo) ListSlotsByPractitioner(_ context.Context, practitionerID uuid.UUID, from, to time.Time, onlyAvailable bool) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Slot
	for _, s := range m.slots {
		if s.PractitionerID != practitionerID {
			continue
		}
		if s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		if onlyAvailable && !s.Available {
			continue
		}
		result = append(result, *s)
	}

	sortSlotsByStart(result)
	return result, nil
}

func sortSlotsByStart(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartTime.Before(slots[j].StartTime)
	})
}

func (m *memoryRepo) InsertSlotIfAbsent(_ context.Context, slot Slot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		if s.PractitionerID == slot.PractitionerID && s.StartTime.Equal(slot.StartTime) {
			return false, nil
		}
	}

	cp := slot
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = time.Now()
	m.slots[cp.ID] = &cp
	return true, nil
}

func (m *memoryRepo) ReserveSlot(_ context.Context, slotID, patientID uuid.UUID, now time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if !slot.StartTime.After(now) {
		return nil, ErrSlotInPast
	}
	if !slot.Available {
		return nil, ErrSlotUnavailable
	}

	slot.Available = false
	slot.UpdatedAt = time.Now()

	appt := &Appointment{
		ID:             uuid.New(),
		PatientID:      patientID,
		PractitionerID: slot.PractitionerID,
		SlotID:         slotID,
		Status:         StatusPlanned,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.appointments[appt.ID] = appt

	cp := *appt
	return &cp, nil
}

func (m *memoryRepo) CancelAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if appt.Status != StatusPlanned {
		return nil, ErrInvalidTransition
	}

	appt.Status = StatusCancelled
	appt.UpdatedAt = time.Now()

	if slot, ok := m.slots[appt.SlotID]; ok {
		slot.Available = true
		slot.UpdatedAt = time.Now()
	}

	cp := *appt
	return &cp, nil
}

func (m *memoryRepo) CompleteAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if appt.Status != StatusPlanned {
		return nil, ErrInvalidTransition
	}

	appt.Status = StatusCompleted
	appt.UpdatedAt = time.Now()

	cp := *appt
	return &cp, nil
}

func (m *memoryRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *appt
	return &cp, nil
}

func (m *memoryRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := m.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := AppointmentDetail{Appointment: *appt}
	if detail.Slot, err = m.GetSlotByID(ctx, appt.SlotID); err != nil {
		return nil, err
	}
	if detail.Patient, err = m.GetPatientByID(ctx, appt.PatientID); err != nil {
		return nil, err
	}
	if detail.Practitioner, err = m.GetPractitionerByID(ctx, appt.PractitionerID); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (m *memoryRepo) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0)
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			ids = append(ids, a.ID)
		}
	}
	m.mu.Unlock()

	var result []AppointmentDetail
	for _, id := range ids {
		d, err := m.GetAppointmentDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, nil
}

func (m *memoryRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		types = append(types, ev.EventType)
	}
	return types
}
