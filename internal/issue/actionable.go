// SPDX-License-Identifier: MPL-2.0

// Package issue turns launcher failures into actionable operator guidance.
// An ActionableError carries what was being attempted and how to fix it; the
// catalog in guidance.go maps the launcher's typed error classes to rendered
// markdown help.
package issue

import (
	"errors"
	"fmt"
	"strings"
)

// ActionableError is an error with context for user-facing messages: the
// operation that failed, the resource involved, and fix suggestions.
type ActionableError struct {
	// Operation is a verb phrase, e.g. "provision downloads directory".
	Operation string
	// Resource is the path, URL, or entity involved (optional).
	Resource string
	// Suggestions are fix hints shown under the message (optional).
	Suggestions []string
	// Cause is the underlying error (optional).
	Cause error
}

// Wrap builds an ActionableError around err. A nil err returns nil so the
// call can sit directly on a return path.
func Wrap(err error, operation, resource string, suggestions ...string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{
		Operation:   operation,
		Resource:    resource,
		Suggestions: suggestions,
		Cause:       err,
	}
}

// Error returns the concise single-line form.
func (e *ActionableError) Error() string {
	var msg strings.Builder
	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns the cause for errors.Is/As.
func (e *ActionableError) Unwrap() error { return e.Cause }

// Format renders the message with suggestions, and with the full error chain
// when verbose.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	for i, suggestion := range e.Suggestions {
		if i == 0 {
			msg.WriteString("\n")
		}
		msg.WriteString("\n  • ")
		msg.WriteString(suggestion)
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		depth := 1
		for err := e.Cause; err != nil; err = errors.Unwrap(err) {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			depth++
		}
	}

	return msg.String()
}
