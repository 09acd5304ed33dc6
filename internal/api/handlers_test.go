package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduling/internal/report"
)

// Validation-layer tests: these requests are rejected before any service or
// storage call, so handlers can be wired with nil collaborators.

func TestReserveHandler_Validation(t *testing.T) {
	handler := reserveHandler(nil)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "bad json", body: "{", wantCode: "invalid_request_body"},
		{name: "bad slot id", body: `{"slot_id":"nope","patient_id":"nope"}`, wantCode: "invalid_slot_id"},
		{
			name:     "bad patient id",
			body:     `{"slot_id":"0b6a6f52-9e87-4a5f-9f34-2a4b6f0d8e11","patient_id":"nope"}`,
			wantCode: "invalid_patient_id",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			handler(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantCode)
		})
	}
}

func TestGenerateSlotsHandler_Validation(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/practitioners/{id}/slots/generate", generateSlotsHandler(nil))

	tests := []struct {
		name     string
		url      string
		body     string
		wantCode string
	}{
		{
			name:     "bad practitioner id",
			url:      "/practitioners/nope/slots/generate",
			body:     `{}`,
			wantCode: "invalid_practitioner_id",
		},
		{
			name:     "bad date",
			url:      "/practitioners/0b6a6f52-9e87-4a5f-9f34-2a4b6f0d8e11/slots/generate",
			body:     `{"date":"11/10/2025","start_time":"09:00","end_time":"10:00","interval_minutes":30}`,
			wantCode: "invalid_time_format",
		},
		{
			name:     "bad clock time",
			url:      "/practitioners/0b6a6f52-9e87-4a5f-9f34-2a4b6f0d8e11/slots/generate",
			body:     `{"date":"2025-11-10","start_time":"9am","end_time":"10:00","interval_minutes":30}`,
			wantCode: "invalid_time_format",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.url, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantCode)
		})
	}
}

func TestParseDayRange(t *testing.T) {
	start, end, err := parseDayRange("2025-11-10", "09:00", "10:30")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 11, 10, 9, 0, 0, 0, time.Local), start)
	assert.Equal(t, time.Date(2025, 11, 10, 10, 30, 0, 0, time.Local), end)
}

type stubQueries struct {
	completed   int
	newPatients int
}

func (s *stubQueries) CountCompletedOn(context.Context, time.Time) (int, error) {
	return s.completed, nil
}

func (s *stubQueries) PractitionerLoad(context.Context, time.Time, time.Time) ([]report.PractitionerLoadRow, error) {
	return nil, nil
}

func (s *stubQueries) CountNewPatients(context.Context, time.Time, time.Time) (int, error) {
	return s.newPatients, nil
}

func TestRunReportHandler(t *testing.T) {
	registry := report.DefaultRegistry(&stubQueries{completed: 5, newPatients: 2})

	r := chi.NewRouter()
	r.Get("/reports/{name}", runReportHandler(registry))

	t.Run("daily appointments", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/daily_appointments?date=2025-11-10", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"count":5`)
	})

	t.Run("new patients", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/new_patients?from=2025-11-01&to=2025-11-30", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"new_patients_count":2`)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/nope", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown_strategy")
	})

	t.Run("missing params", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/new_patients", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_params")
	})

	t.Run("malformed date", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/daily_appointments?date=nope", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
