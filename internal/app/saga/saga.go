// Package saga executes an ordered sequence of side effects across systems
// that share no transaction coordinator, pairing each forward action with a
// compensating action that undoes it if a later step fails.
package saga

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Step is one forward action and its compensation. Compensate may be nil
// when an earlier step's compensation already covers the step's effects
// (e.g. cascading deletes).
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga is an ordered list of steps executed forward, unwound backward on
// failure. A Saga value is built per operation and executed once.
type Saga struct {
	name   string
	steps  []Step
	logger zerolog.Logger
}

// New creates a named saga
func New(name string, logger zerolog.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

// AddStep appends a step. Returns the saga for chaining.
func (s *Saga) AddStep(name string, run func(ctx context.Context) error, compensate func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Run: run, Compensate: compensate})
	return s
}

// Execute runs the steps in order. On the first failure it compensates all
// previously completed steps innermost-first and returns the triggering
// error. Compensation is best-effort: a failing compensator is logged once
// and never masks the original error, and no compensation is retried.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Run(ctx); err != nil {
			s.logger.Warn().
				Str("saga", s.name).
				Str("step", step.Name).
				Err(err).
				Msg("Saga step failed, compensating completed steps")
			s.unwind(ctx, i-1)
			return fmt.Errorf("%s: step %q failed: %w", s.name, step.Name, err)
		}
	}
	return nil
}

// unwind compensates steps[0..last] in reverse order
func (s *Saga) unwind(ctx context.Context, last int) {
	for i := last; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error().
				Str("saga", s.name).
				Str("step", step.Name).
				Err(err).
				Msg("Saga compensation failed; manual cleanup may be required")
		} else {
			s.logger.Info().
				Str("saga", s.name).
				Str("step", step.Name).
				Msg("Saga step compensated")
		}
	}
}
