package typing

import (
	"errors"
	"fmt"

	"auto-typer/internal/keymap"
)

// ErrInvalidJob is returned when a job is rejected before any key is emitted.
var ErrInvalidJob = errors.New("invalid typing job")

// ErrSourceUnavailable is returned when the job text cannot be read.
// It also matches ErrInvalidJob.
var ErrSourceUnavailable = errors.New("text source unavailable")

// ErrEmissionFailure marks backend failures during the emission loop.
var ErrEmissionFailure = errors.New("key emission failed")

// JobError describes why a job was rejected at start.
type JobError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error formats validation failures for logs and UI.
func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Field, e.Message, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *JobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is makes every JobError match ErrInvalidJob.
func (e *JobError) Is(target error) bool {
	return target == ErrInvalidJob
}

// EmissionError is a position-aware backend failure.
type EmissionError struct {
	Line   int           `json:"line"`
	Char   rune          `json:"char"`
	Action keymap.Action `json:"action"`
	Err    error         `json:"-"`
}

// Error formats emission failures for logs and UI.
func (e *EmissionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("line %d: %s for %q: %v", e.Line+1, e.Action, e.Char, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *EmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is makes every EmissionError match ErrEmissionFailure.
func (e *EmissionError) Is(target error) bool {
	return target == ErrEmissionFailure
}
