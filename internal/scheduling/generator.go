package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRange = errors.New("invalid slot range or interval")
	ErrPastStart    = errors.New("slot range starts in the past")
)

// Generator carves a practitioner's working interval into fixed-length
// bookable slots. Generation is idempotent: re-running over the same range
// creates only the slots that are missing.
type Generator struct {
	repo Repository
	now  func() time.Time
}

func NewGenerator(repo Repository) *Generator {
	return &Generator{
		repo: repo,
		now:  time.Now,
	}
}

// Generate produces the maximal sequence of non-overlapping slots of length
// interval covering [start, end), discarding any final remainder shorter
// than the interval. It returns the number of slots actually created; zero
// is not an error.
func (g *Generator) Generate(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, interval time.Duration) (int, error) {
	if interval <= 0 || !end.After(start) {
		return 0, ErrInvalidRange
	}
	if !start.After(g.now()) {
		return 0, ErrPastStart
	}

	if _, err := g.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return 0, err
	}

	created := 0
	for cur := start; !cur.Add(interval).After(end); cur = cur.Add(interval) {
		slot := Slot{
			ID:             uuid.New(),
			PractitionerID: practitionerID,
			StartTime:      cur,
			EndTime:        cur.Add(interval),
			Available:      true,
		}

		inserted, err := g.repo.InsertSlotIfAbsent(ctx, slot)
		if err != nil {
			return created, fmt.Errorf("generate slot at %s: %w", cur.Format(time.RFC3339), err)
		}
		if inserted {
			created++
		}
	}

	return created, nil
}
