package report

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PgQueries struct {
	pool *pgxpool.Pool
}

func NewPgQueries(pool *pgxpool.Pool) *PgQueries {
	return &PgQueries{pool: pool}
}

func (q *PgQueries) CountCompletedOn(ctx context.Context, day time.Time) (int, error) {
	dayStart, dayEnd := dayBounds(day)

	var count int
	err := q.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN slots s ON s.id = a.slot_id
		WHERE a.status = 'COMPLETED'
		  AND s.start_time >= $1
		  AND s.start_time < $2
	`, dayStart, dayEnd).Scan(&count)

	return count, err
}

func (q *PgQueries) PractitionerLoad(ctx context.Context, from, to time.Time) ([]PractitionerLoadRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT p.id, p.name, count(a.id) FILTER (
			WHERE a.status = 'COMPLETED'
			  AND s.start_time >= $1
			  AND s.start_time < $2
		)
		FROM practitioners p
		LEFT JOIN appointments a ON a.practitioner_id = p.id
		LEFT JOIN slots s ON s.id = a.slot_id
		GROUP BY p.id, p.name
		ORDER BY p.name
	`, from, endExclusive(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PractitionerLoadRow
	for rows.Next() {
		var r PractitionerLoadRow
		if err := rows.Scan(&r.PractitionerID, &r.Name, &r.Completed); err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	return result, rows.Err()
}

func (q *PgQueries) CountNewPatients(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := q.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM patients
		WHERE created_at >= $1
		  AND created_at < $2
	`, from, endExclusive(to)).Scan(&count)

	return count, err
}

// dayBounds returns the half-open window covering the calendar day that
// contains the given instant, computed in the instant's own location.
// Truncate would snap to UTC day boundaries instead.
func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

// endExclusive turns an inclusive end date into the exclusive upper bound of
// its day, so a range of equal from/to dates still covers that whole day.
func endExclusive(to time.Time) time.Time {
	_, end := dayBounds(to)
	return end
}
