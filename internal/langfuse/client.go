// Package langfuse reads traces and observations from the Langfuse public API.
package langfuse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/agenticgokit/tracelens/internal/model"
)

const (
	DefaultHost                = "http://localhost:3000"
	DefaultTimeout             = 15 * time.Second
	DefaultPageSize            = 50
	DefaultObservationPageSize = 100
	DefaultRateLimit           = 10
	DefaultMaxAttempts         = 3
	DefaultBackoff             = 500 * time.Millisecond
	DefaultLimit               = 20

	// maxObservationPages bounds observation paging when the backend omits totalPages
	maxObservationPages = 1000
	maxResponseBytes    = 32 << 20

	tracerName = "github.com/agenticgokit/tracelens/internal/langfuse"
)

// Config configures a Client. Zero values fall back to the defaults.
type Config struct {
	Host                string
	ProjectID           string
	Timeout             time.Duration
	PageSize            int
	ObservationPageSize int
	// RateLimit is in requests per second; negative disables limiting
	RateLimit   float64
	MaxAttempts int
	// Backoff is the linear retry step: attempt n waits n*Backoff
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *zerolog.Logger
	Now        func() time.Time
}

// Client talks to one Langfuse host. Credentials are passed on every call.
type Client struct {
	baseURL     string
	projectID   string
	http        *http.Client
	limiter     *rate.Limiter
	pageSize    int
	obsPageSize int
	maxAttempts int
	backoff     time.Duration
	logger      *zerolog.Logger
	now         func() time.Time
	tracer      trace.Tracer
}

// NewClient creates a new Langfuse client
func NewClient(cfg Config) *Client {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		host = DefaultHost
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := 1
	switch {
	case cfg.RateLimit > 0:
		limit = rate.Limit(cfg.RateLimit)
		burst = max(1, int(cfg.RateLimit))
	case cfg.RateLimit == 0:
		limit = rate.Limit(DefaultRateLimit)
		burst = DefaultRateLimit
	}

	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:     host,
		projectID:   cfg.ProjectID,
		http:        httpClient,
		limiter:     rate.NewLimiter(limit, burst),
		pageSize:    orDefault(cfg.PageSize, DefaultPageSize),
		obsPageSize: orDefault(cfg.ObservationPageSize, DefaultObservationPageSize),
		maxAttempts: orDefault(cfg.MaxAttempts, DefaultMaxAttempts),
		backoff:     orDefaultDuration(cfg.Backoff, DefaultBackoff),
		logger:      logger,
		now:         now,
		tracer:      otel.Tracer(tracerName),
	}
}

// BaseURL returns the normalized host the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Query selects the traces to fetch
type Query struct {
	// TraceID fetches exactly one trace when set
	TraceID string
	Limit   int
	// Window excludes traces that started before now-Window; zero disables it
	Window time.Duration
}

// TraceFailure records a trace whose observations could not be fetched
type TraceFailure struct {
	TraceID string
	Err     error
}

// FetchResult is the outcome of a Fetch call
type FetchResult struct {
	Traces   []model.Trace
	Failures []TraceFailure
	// ListErr is set when listing failed transiently after all retries or
	// returned an undecodable body; the result is then empty but usable.
	ListErr error
}

// Fetch resolves the query into traces with their observations.
//
// Transient listing failures and undecodable listing responses are reported
// through ListErr. Other listing errors, including rejected credentials, are
// returned. A failure while
// fetching one trace's observations leaves that trace out and is recorded in
// Failures; the remaining traces are still fetched.
func (c *Client) Fetch(ctx context.Context, creds model.Credentials, q Query) (*FetchResult, error) {
	if !creds.Complete() {
		return nil, ErrAuthenticationMissing
	}

	result := &FetchResult{}

	var summaries []model.TraceSummary
	if q.TraceID != "" {
		summary, err := c.GetTrace(ctx, creds, q.TraceID)
		switch {
		case IsNotFound(err):
			c.logger.Debug().Str("trace_id", q.TraceID).Msg("trace not found")
			return result, nil
		case IsTransient(err), IsMalformed(err):
			c.logger.Warn().Err(err).Str("trace_id", q.TraceID).Msg("fetching trace failed")
			result.ListErr = err
			return result, nil
		case err != nil:
			return nil, err
		}
		summaries = []model.TraceSummary{*summary}
	} else {
		list, err := c.ListTraces(ctx, creds, q)
		switch {
		case IsTransient(err), IsMalformed(err):
			c.logger.Warn().Err(err).Msg("listing traces failed")
			result.ListErr = err
			return result, nil
		case err != nil:
			return nil, err
		}
		summaries = list
	}

	for _, s := range summaries {
		observations, err := c.ListObservations(ctx, creds, s.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn().Err(err).Str("trace_id", s.ID).Msg("skipping trace")
			result.Failures = append(result.Failures, TraceFailure{TraceID: s.ID, Err: err})
			continue
		}
		result.Traces = append(result.Traces, model.Trace{
			ID:           s.ID,
			Name:         s.Name,
			StartedAt:    s.StartedAt,
			Observations: observations,
		})
	}

	return result, nil
}

// ListTraces returns trace summaries, most recent first, paging until the
// limit is reached or the backend runs out of traces.
func (c *Client) ListTraces(ctx context.Context, creds model.Credentials, q Query) ([]model.TraceSummary, error) {
	if !creds.Complete() {
		return nil, ErrAuthenticationMissing
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	pageSize := min(c.pageSize, limit)

	var cutoff time.Time
	if q.Window > 0 {
		cutoff = c.now().Add(-q.Window)
	}

	summaries := make([]model.TraceSummary, 0, limit)
	for page := 1; len(summaries) < limit; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("orderBy", "timestamp.desc")
		if !cutoff.IsZero() {
			params.Set("fromTimestamp", cutoff.UTC().Format(time.RFC3339))
		}
		if c.projectID != "" {
			params.Set("projectId", c.projectID)
		}

		var resp traceListResponse
		if err := c.getJSON(ctx, creds, "langfuse.list_traces", "/api/public/traces", params, &resp); err != nil {
			return nil, err
		}

		pastWindow := false
		for _, dto := range resp.Data {
			s := dto.summary()
			if !cutoff.IsZero() && !s.StartedAt.IsZero() && s.StartedAt.Before(cutoff) {
				// listing is newest first, everything after this is older
				pastWindow = true
				break
			}
			summaries = append(summaries, s)
			if len(summaries) == limit {
				break
			}
		}

		if pastWindow || exhausted(page, pageSize, len(resp.Data), resp.Meta) {
			break
		}
	}

	return summaries, nil
}

// GetTrace fetches one trace summary. A missing trace yields an error for
// which IsNotFound is true.
func (c *Client) GetTrace(ctx context.Context, creds model.Credentials, traceID string) (*model.TraceSummary, error) {
	if !creds.Complete() {
		return nil, ErrAuthenticationMissing
	}

	var dto traceDTO
	path := "/api/public/traces/" + url.PathEscape(traceID)
	if err := c.getJSON(ctx, creds, "langfuse.get_trace", path, nil, &dto); err != nil {
		return nil, err
	}
	if dto.ID == "" {
		dto.ID = traceID
	}
	summary := dto.summary()
	return &summary, nil
}

// ListObservations fetches every observation of a trace
func (c *Client) ListObservations(ctx context.Context, creds model.Credentials, traceID string) ([]model.Observation, error) {
	if !creds.Complete() {
		return nil, ErrAuthenticationMissing
	}

	var observations []model.Observation
	for page := 1; page <= maxObservationPages; page++ {
		params := url.Values{}
		params.Set("traceId", traceID)
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(c.obsPageSize))

		var resp observationListResponse
		if err := c.getJSON(ctx, creds, "langfuse.list_observations", "/api/public/observations", params, &resp); err != nil {
			return nil, fmt.Errorf("observations of trace %s, page %d: %w", traceID, page, err)
		}

		for _, dto := range resp.Data {
			observations = append(observations, dto.observation())
		}

		if exhausted(page, c.obsPageSize, len(resp.Data), resp.Meta) {
			break
		}
	}

	return observations, nil
}

// exhausted reports whether the page was the last one
func exhausted(page, pageSize, got int, meta pageMeta) bool {
	if got == 0 || got < pageSize {
		return true
	}
	return meta.TotalPages > 0 && page >= meta.TotalPages
}

// outcome is the classification of one request attempt
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeAbort
)

func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case IsTransient(err):
		return outcomeRetry
	default:
		return outcomeAbort
	}
}

// getJSON performs a GET with the bounded retry policy and decodes the body into dest
func (c *Client) getJSON(ctx context.Context, creds model.Credentials, op, path string, params url.Values, dest any) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.route", path)))
	defer span.End()
	if page := params.Get("page"); page != "" {
		span.SetAttributes(attribute.String("langfuse.page", page))
	}

	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.logger.Debug().Str("path", path).Str("query", params.Encode()).Int("attempt", attempt).Msg("GET")
		err = c.do(ctx, creds, path, params, dest)

		switch classify(err) {
		case outcomeSuccess:
			span.SetAttributes(attribute.Int("langfuse.attempts", attempt))
			return nil
		case outcomeAbort:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		if attempt == c.maxAttempts {
			break
		}
		delay := time.Duration(attempt) * c.backoff
		c.logger.Warn().Err(err).Str("path", path).Int("attempt", attempt).Dur("backoff", delay).Msg("retrying request")
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			span.RecordError(sleepErr)
			return sleepErr
		}
	}

	span.SetAttributes(attribute.Int("langfuse.attempts", c.maxAttempts))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (c *Client) do(ctx context.Context, creds model.Credentials, path string, params url.Values, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("langfuse: rate limit: %w", err)
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("langfuse: create request: %w", err)
	}
	req.SetBasicAuth(creds.PublicKey, creds.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransientError{Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(path, resp, dest)
}

func handleResponse(path string, resp *http.Response, dest any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransientError{Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return &TransientError{Path: path, StatusCode: resp.StatusCode, Err: errors.New(errorMessage(body))}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &BackendError{Path: path, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return &MalformedError{Path: path, Err: err}
	}
	return nil
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
