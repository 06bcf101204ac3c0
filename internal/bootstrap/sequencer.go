// SPDX-License-Identifier: MPL-2.0

// Package bootstrap drives the launcher's startup sequence: a short, strictly
// ordered list of fallible steps executed to completion, one after another.
// The driver stops at the first failure unless the step is marked
// best-effort; there are no retries and no back edges. The final step hands
// control to the application server and, under the exec handoff style, never
// returns.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// ErrStepFailed is the sentinel error wrapped by StepError.
var ErrStepFailed = errors.New("bootstrap step failed")

type (
	// Step is one named, fallible unit of the sequence.
	Step struct {
		// Name identifies the step in logs and errors.
		Name string
		// Run executes the step's side effects to completion.
		Run func(ctx context.Context) error
		// BestEffort downgrades a failure to a warning; the sequence continues.
		BestEffort bool
	}

	// StepError reports which step aborted the sequence. It wraps
	// ErrStepFailed for errors.Is() compatibility and the step's own error
	// for errors.As() access to typed causes.
	StepError struct {
		Step  string
		Cause error
	}

	// Sequencer executes steps in insertion order.
	Sequencer struct {
		logger *log.Logger
		steps  []Step
	}
)

func (e *StepError) Error() string {
	return fmt.Sprintf("bootstrap step %q: %v", e.Step, e.Cause)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *StepError) Unwrap() []error {
	return []error{ErrStepFailed, e.Cause}
}

// NewSequencer creates an empty Sequencer logging through logger.
func NewSequencer(logger *log.Logger) *Sequencer {
	if logger == nil {
		logger = log.Default()
	}
	return &Sequencer{logger: logger}
}

// Add appends steps to the sequence.
func (s *Sequencer) Add(steps ...Step) {
	s.steps = append(s.steps, steps...)
}

// Names returns the step names in execution order.
func (s *Sequencer) Names() []string {
	names := make([]string, len(s.steps))
	for i, step := range s.steps {
		names[i] = step.Name
	}
	return names
}

// Run executes the sequence. A canceled context aborts before the next step
// starts; a running step is only interrupted if it honors the context
// itself. The first hard failure is returned as a StepError.
func (s *Sequencer) Run(ctx context.Context) error {
	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Cause: err}
		}

		s.logger.Debug("step starting", "step", step.Name)
		err := step.Run(ctx)
		if err == nil {
			s.logger.Debug("step done", "step", step.Name)
			continue
		}

		if step.BestEffort {
			s.logger.Warn("step failed, continuing", "step", step.Name, "err", err)
			continue
		}
		return &StepError{Step: step.Name, Cause: err}
	}
	return nil
}
