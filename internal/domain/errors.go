package domain

import (
	"errors"
	"fmt"
)

// Application-wide errors.
var (
	// Lookup
	ErrNotFound         = errors.New("resource not found")
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrSessionNotFound  = errors.New("session not found")

	// Request / state
	ErrBadRequest      = errors.New("bad request")
	ErrInvalidOption   = errors.New("invalid option index")
	ErrInvalidStance   = errors.New("invalid stance")
	ErrWrongMode       = errors.New("operation not supported for this session mode")
	ErrSessionFinished = errors.New("session already finished")
	ErrNothingToUndo   = errors.New("nothing to undo")

	// Generation
	ErrServiceUnavailable = errors.New("generation service unavailable")
	ErrGenerationParse    = errors.New("generation response could not be parsed")
	ErrScoringUnavailable = errors.New("scoring unavailable")

	// Persistence
	ErrTelemetryWrite = errors.New("telemetry write failed")
)

// GenerationParseError keeps the raw model output of a reply that could
// not be coerced into the expected JSON shape.
type GenerationParseError struct {
	Raw string
	Err error
}

func (e *GenerationParseError) Error() string {
	if e.Err == nil {
		return ErrGenerationParse.Error()
	}
	return fmt.Sprintf("%s: %v", ErrGenerationParse, e.Err)
}

func (e *GenerationParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGenerationParse}
	}
	return []error{ErrGenerationParse, e.Err}
}

// NewGenerationParseError wraps err together with the raw reply.
func NewGenerationParseError(raw string, err error) *GenerationParseError {
	return &GenerationParseError{Raw: raw, Err: err}
}
