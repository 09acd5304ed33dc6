package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/clinic-scheduling/internal/report"
)

func runReportHandler(registry *report.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		params, err := parseReportParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_params", err.Error())
			return
		}

		result, err := registry.Run(r.Context(), name, params)
		if err != nil {
			switch {
			case errors.Is(err, report.ErrUnknownStrategy):
				writeError(w, http.StatusNotFound, "unknown_strategy", err.Error())
			case errors.Is(err, report.ErrInvalidParams):
				writeError(w, http.StatusBadRequest, "invalid_params", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func parseReportParams(r *http.Request) (report.Params, error) {
	var p report.Params

	q := r.URL.Query()
	var err error

	if v := q.Get("date"); v != "" {
		if p.Date, err = time.ParseInLocation("2006-01-02", v, time.Local); err != nil {
			return report.Params{}, errors.New("date must be formatted as 2006-01-02")
		}
	}
	if v := q.Get("from"); v != "" {
		if p.From, err = time.ParseInLocation("2006-01-02", v, time.Local); err != nil {
			return report.Params{}, errors.New("from must be formatted as 2006-01-02")
		}
	}
	if v := q.Get("to"); v != "" {
		if p.To, err = time.ParseInLocation("2006-01-02", v, time.Local); err != nil {
			return report.Params{}, errors.New("to must be formatted as 2006-01-02")
		}
	}

	return p, nil
}
