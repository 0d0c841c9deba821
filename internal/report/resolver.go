package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agenticgokit/tracelens/internal/langfuse"
	"github.com/agenticgokit/tracelens/internal/metrics"
	"github.com/agenticgokit/tracelens/internal/model"
	"github.com/agenticgokit/tracelens/internal/prompts"
	"github.com/agenticgokit/tracelens/internal/spantree"
)

// Fetcher resolves a fetch query into traces
type Fetcher interface {
	Fetch(ctx context.Context, creds model.Credentials, q langfuse.Query) (*langfuse.FetchResult, error)
}

// Report is the extracted data of one invocation, ready for rendering
type Report struct {
	Kind Kind
	// Skipped is set when credentials are missing and nothing was fetched
	Skipped bool
	Traces  int
	Step    prompts.StepSelector

	Metrics metrics.Summary
	Prompts []prompts.Record

	Warnings []string
}

// Empty reports whether there is nothing to show
func (r *Report) Empty() bool {
	if r.Kind == KindPrompts {
		return len(r.Prompts) == 0
	}
	return r.Metrics.Empty()
}

// Resolver runs report queries
type Resolver struct {
	fetcher Fetcher
	logger  *zerolog.Logger
}

// NewResolver creates a resolver that fetches through f
func NewResolver(f Fetcher, logger *zerolog.Logger) *Resolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Resolver{fetcher: f, logger: logger}
}

// Run validates the query, fetches the traces and runs the extractor for the
// report kind. Missing credentials produce a skipped report without any fetch.
// Per-trace failures and extraction problems become report warnings; only
// unrecoverable backend errors are returned.
func (r *Resolver) Run(ctx context.Context, q Query) (*Report, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rep := &Report{Kind: q.Kind, Step: q.Step, Prompts: []prompts.Record{}}
	if !q.Credentials.Complete() {
		r.logger.Info().Msg("langfuse credentials not configured, skipping")
		rep.Skipped = true
		return rep, nil
	}

	result, err := r.fetcher.Fetch(ctx, q.Credentials, langfuse.Query{
		TraceID: q.TraceID,
		Limit:   q.Limit,
		Window:  q.Window(),
	})
	if errors.Is(err, langfuse.ErrAuthenticationMissing) {
		rep.Skipped = true
		return rep, nil
	}
	if err != nil {
		return nil, err
	}

	if result.ListErr != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("listing traces failed: %v", result.ListErr))
	}
	for _, f := range result.Failures {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("trace %s: %v", f.TraceID, f.Err))
	}

	rep.Traces = len(result.Traces)
	r.logger.Debug().Int("traces", rep.Traces).Int("failures", len(result.Failures)).Msg("fetched traces")

	switch q.Kind {
	case KindMetrics:
		agg := metrics.NewAggregator()
		for _, tr := range result.Traces {
			agg.AddTrace(spantree.Build(tr.Observations))
		}
		rep.Metrics = agg.Summary()
	case KindPrompts:
		forests := make([]prompts.Forest, 0, len(result.Traces))
		for _, tr := range result.Traces {
			forests = append(forests, prompts.Forest{TraceID: tr.ID, Roots: spantree.Build(tr.Observations)})
		}
		extracted := prompts.Extract(forests, q.Step, prompts.Selection{All: q.All, Index: q.Index})
		rep.Prompts = extracted.Records
		for _, w := range extracted.Warnings {
			r.logger.Warn().Str("trace_id", w.TraceID).Str("observation_id", w.ObservationID).Err(w.Err).Msg("prompt extraction")
			rep.Warnings = append(rep.Warnings, w.String())
		}
	}

	return rep, nil
}
