// Package report aggregates committed scheduling data into read-only
// reports. Strategies are pure queries: nothing here mutates state, so there
// is no locking discipline to honor.
package report

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownStrategy = errors.New("unknown report strategy")
	ErrInvalidParams   = errors.New("invalid report parameters")
)

// Params carries the inputs a strategy may need. Which fields are required
// depends on the strategy; Validate on each strategy rejects the rest.
type Params struct {
	Date time.Time
	From time.Time
	To   time.Time
}

// Strategy is the single capability all report kinds share.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, p Params) (any, error)
}

// Engine holds the currently selected strategy and delegates Run to it.
type Engine struct {
	strategy Strategy
}

func NewEngine(strategy Strategy) *Engine {
	return &Engine{strategy: strategy}
}

func (e *Engine) SetStrategy(strategy Strategy) {
	e.strategy = strategy
}

func (e *Engine) Run(ctx context.Context, p Params) (any, error) {
	if e.strategy == nil {
		return nil, ErrUnknownStrategy
	}
	return e.strategy.Generate(ctx, p)
}

// Registry resolves strategies by name for the RunReport boundary.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Name()] = s
	}
	return r
}

// DefaultRegistry wires every built-in strategy against the given queries.
func DefaultRegistry(queries Queries) *Registry {
	return NewRegistry(
		NewDailyAppointments(queries),
		NewPractitionerLoad(queries),
		NewNewPatients(queries),
	)
}

func (r *Registry) Run(ctx context.Context, name string, p Params) (any, error) {
	strategy, ok := r.strategies[name]
	if !ok {
		return nil, ErrUnknownStrategy
	}
	return NewEngine(strategy).Run(ctx, p)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}
