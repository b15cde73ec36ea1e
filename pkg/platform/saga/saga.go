// Package saga provides an explicit compensation stack for multi-system
// operations. Each completed step pushes a compensating closure; when a later
// step fails, completed steps are compensated in reverse order. Compensation
// errors are collected, never thrown: the caller always receives the error
// that aborted the saga.
package saga

import "context"

// Compensation undoes one previously completed step.
type Compensation struct {
	Name string
	Run  func(ctx context.Context) error
}

// Stack accumulates compensations in completion order.
type Stack struct {
	steps []Compensation
}

// Push records a compensating closure for a step that just completed.
func (s *Stack) Push(name string, run func(ctx context.Context) error) {
	s.steps = append(s.steps, Compensation{Name: name, Run: run})
}

// Len returns the number of pending compensations.
func (s *Stack) Len() int { return len(s.steps) }

// Failure describes one compensation that did not succeed.
type Failure struct {
	Step string
	Err  error
}

// Unwind runs all recorded compensations in reverse order, best-effort.
// Every compensation runs even if earlier ones fail; the failures are
// returned for logging. The stack is emptied.
func (s *Stack) Unwind(ctx context.Context) []Failure {
	var failures []Failure
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.Run(ctx); err != nil {
			failures = append(failures, Failure{Step: step.Name, Err: err})
		}
	}
	s.steps = nil
	return failures
}

// Discard drops recorded compensations after the saga committed.
func (s *Stack) Discard() { s.steps = nil }
