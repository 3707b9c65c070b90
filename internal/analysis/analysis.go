// Package analysis turns transcribed speech into a stress reading and, when a
// reading escalates, into calming enrichment: a personalized insight and a
// short list of actionable guidelines.
//
// Every call goes through an llm.Client in JSON mode and the reply is
// validated before it is returned; a reply that fails validation is an error,
// never a partially filled result.
package analysis

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAnalysis marks any failure of the stress-scoring call.
	ErrAnalysis = errors.New("analysis failed")

	// ErrAnalysisTimeout is an ErrAnalysis caused by the call outliving its
	// deadline.
	ErrAnalysisTimeout = fmt.Errorf("%w: timed out", ErrAnalysis)

	// ErrEnrichment marks a failed insight or guideline call.
	ErrEnrichment = errors.New("enrichment failed")

	// ErrInvalidPayload is returned when a model reply does not match the
	// expected shape.
	ErrInvalidPayload = errors.New("invalid model payload")
)

// Result is the normalized outcome of one stress analysis.
type Result struct {
	StressScore float64 `json:"stress_score"`
	Feedback    string  `json:"feedback"`
}

// Recorder receives user-facing status lines.
type Recorder interface {
	Add(message string)
}

type nopRecorder struct{}

func (nopRecorder) Add(string) {}

func classify(ctx context.Context, base, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if base == ErrAnalysis {
			return fmt.Errorf("%w: %w", ErrAnalysisTimeout, err)
		}
		return fmt.Errorf("%w: timed out: %w", base, err)
	}
	return fmt.Errorf("%w: %w", base, err)
}
