package sdfgen

import (
	"errors"
	"fmt"
)

// Errors returned by the pipeline. Failures other than ErrCanceled wrap one
// of these values and can be matched with errors.Is.
var (
	// ErrEmptyInput is returned for a nil or zero-area source image.
	ErrEmptyInput = errors.New("sdfgen: empty input image")

	// ErrInvalidSize is returned for output dimensions that are not positive
	// or exceed MaxDimension.
	ErrInvalidSize = errors.New("sdfgen: invalid output size")

	// ErrTransform is returned when a distance transform fails for a reason
	// other than cancellation.
	ErrTransform = errors.New("sdfgen: distance transform failed")

	// ErrCanceled is returned when the context was canceled during a run.
	// It is a terminal outcome, not a failure.
	ErrCanceled = errors.New("sdfgen: canceled")
)

// Outcome is the terminal state of a run.
type Outcome int

const (
	// Completed means the run produced a result.
	Completed Outcome = iota

	// Canceled means the run stopped early on request.
	Canceled

	// Failed means the run could not produce a result.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Canceled:
		return "canceled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// OutcomeOf classifies the error returned by Generate.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Completed
	case errors.Is(err, ErrCanceled):
		return Canceled
	default:
		return Failed
	}
}
