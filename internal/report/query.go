// Package report resolves report queries against the trace backend and
// renders the extracted data.
package report

import (
	"fmt"
	"time"

	"github.com/agenticgokit/tracelens/internal/model"
	"github.com/agenticgokit/tracelens/internal/prompts"
	"github.com/agenticgokit/tracelens/internal/utils"
)

// Kind names a report type
type Kind string

const (
	KindMetrics Kind = "metrics"
	KindPrompts Kind = "prompts"
)

const (
	// MaxLimit is the largest number of traces one report may fetch
	MaxLimit = 200

	defaultMetricsLimit = 20
	defaultPromptsLimit = 5
)

// DefaultLimit returns the trace limit used when none is given
func DefaultLimit(kind Kind) int {
	if kind == KindPrompts {
		return defaultPromptsLimit
	}
	return defaultMetricsLimit
}

// Query is the validated form of the report command flags
type Query struct {
	Kind    Kind
	TraceID string
	Limit   int
	// Hours restricts listing to recent traces; zero disables the window
	Hours int
	// Index selects one prompt occurrence per trace; nil means the first
	Index *int
	All   bool
	Step  prompts.StepSelector

	Credentials model.Credentials
}

// Window returns the listing window
func (q Query) Window() time.Duration {
	return time.Duration(q.Hours) * time.Hour
}

// Validate checks the query flags
func (q Query) Validate() error {
	switch q.Kind {
	case KindMetrics, KindPrompts:
	default:
		return utils.NewValidationError("report", fmt.Sprintf("unknown report kind %q", q.Kind))
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return utils.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d, got %d", MaxLimit, q.Limit))
	}
	if q.Hours < 0 {
		return utils.NewValidationError("hours", fmt.Sprintf("must not be negative, got %d", q.Hours))
	}
	if q.Index != nil {
		if *q.Index < 0 {
			return utils.NewValidationError("index", fmt.Sprintf("must not be negative, got %d", *q.Index))
		}
		if q.All {
			return utils.NewValidationError("index", "cannot be combined with --all")
		}
	}
	return nil
}
