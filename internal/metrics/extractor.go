// Package metrics aggregates generation usage across span forests.
package metrics

import (
	"sort"

	"github.com/agenticgokit/tracelens/internal/model"
	"github.com/agenticgokit/tracelens/internal/spantree"
)

// UnknownModel is used as the model key for generations that report no model
const UnknownModel = "unknown"

// Key identifies one aggregation bucket
type Key struct {
	Model     string
	Operation string
}

// GenerationMetric accumulates usage for one (model, operation) pair
type GenerationMetric struct {
	Model                 string
	OperationName         string
	CallCount             int64
	TotalPromptTokens     int64
	TotalCompletionTokens int64
	TotalTokens           int64
	TotalLatencyMillis    int64
	// LatencyCount counts calls with both timestamps; averages divide by it
	LatencyCount int64
	ErrorCount   int64

	latencies []int64
}

// Aggregator collects generation metrics from one or more traces.
// It is not safe for concurrent use.
type Aggregator struct {
	metrics map[Key]*GenerationMetric
	traces  int
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{metrics: make(map[Key]*GenerationMetric)}
}

// AddTrace visits every generation node of a trace's forest
func (a *Aggregator) AddTrace(roots []*spantree.Node) {
	a.traces++
	spantree.Walk(roots, func(node *spantree.Node, _ int) bool {
		if node.Observation.Kind == model.KindGeneration {
			a.add(&node.Observation)
		}
		return true
	})
}

func (a *Aggregator) add(obs *model.Observation) {
	modelName := obs.Model
	if modelName == "" {
		modelName = UnknownModel
	}
	key := Key{Model: modelName, Operation: obs.Name}

	m, ok := a.metrics[key]
	if !ok {
		m = &GenerationMetric{Model: key.Model, OperationName: key.Operation}
		a.metrics[key] = m
	}

	m.CallCount++
	if obs.HasError() {
		m.ErrorCount++
	}

	latency, ok := obs.Latency()
	if !ok {
		// undefined timing would skew the averages
		return
	}
	millis := latency.Milliseconds()
	m.TotalLatencyMillis += millis
	m.LatencyCount++
	m.latencies = append(m.latencies, millis)

	if obs.Usage != nil {
		m.TotalPromptTokens += obs.Usage.PromptTokens
		m.TotalCompletionTokens += obs.Usage.CompletionTokens
		total := obs.Usage.TotalTokens
		if total == 0 {
			total = obs.Usage.PromptTokens + obs.Usage.CompletionTokens
		}
		m.TotalTokens += total
	}
}

// Metrics returns a copy of the aggregated metrics keyed by (model, operation)
func (a *Aggregator) Metrics() map[Key]GenerationMetric {
	out := make(map[Key]GenerationMetric, len(a.metrics))
	for k, m := range a.metrics {
		out[k] = *m
	}
	return out
}

// Row is one line of the metrics summary
type Row struct {
	Model            string  `json:"model" yaml:"model"`
	Operation        string  `json:"operation" yaml:"operation"`
	CallCount        int64   `json:"call_count" yaml:"call_count"`
	PromptTokens     int64   `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens" yaml:"total_tokens"`
	LatencyAvailable bool    `json:"latency_available" yaml:"latency_available"`
	AvgLatencyMillis float64 `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	P95LatencyMillis int64   `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	ErrorCount       int64   `json:"error_count" yaml:"error_count"`
	ErrorRate        float64 `json:"error_rate" yaml:"error_rate"`
}

// Totals aggregates every row of a summary
type Totals struct {
	Calls            int64 `json:"calls" yaml:"calls"`
	PromptTokens     int64 `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens" yaml:"total_tokens"`
	Errors           int64 `json:"errors" yaml:"errors"`
	LatencyAvailable bool  `json:"latency_available" yaml:"latency_available"`
	P95LatencyMillis int64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
}

// Summary is the emitted metrics report body
type Summary struct {
	Traces int    `json:"traces" yaml:"traces"`
	Rows   []Row  `json:"rows" yaml:"rows"`
	Totals Totals `json:"totals" yaml:"totals"`
}

// Empty reports whether no generation was seen
func (s *Summary) Empty() bool {
	return len(s.Rows) == 0
}

// Summary returns rows sorted by (model, operation) ascending
func (a *Aggregator) Summary() Summary {
	summary := Summary{Traces: a.traces, Rows: make([]Row, 0, len(a.metrics))}

	var all []int64
	for _, m := range a.Metrics() {
		row := Row{
			Model:            m.Model,
			Operation:        m.OperationName,
			CallCount:        m.CallCount,
			PromptTokens:     m.TotalPromptTokens,
			CompletionTokens: m.TotalCompletionTokens,
			TotalTokens:      m.TotalTokens,
			ErrorCount:       m.ErrorCount,
		}
		if m.CallCount > 0 {
			row.ErrorRate = float64(m.ErrorCount) / float64(m.CallCount)
		}
		if m.LatencyCount > 0 {
			row.LatencyAvailable = true
			row.AvgLatencyMillis = float64(m.TotalLatencyMillis) / float64(m.LatencyCount)
			row.P95LatencyMillis = percentile(m.latencies, 95)
		}
		summary.Rows = append(summary.Rows, row)

		summary.Totals.Calls += m.CallCount
		summary.Totals.PromptTokens += m.TotalPromptTokens
		summary.Totals.CompletionTokens += m.TotalCompletionTokens
		summary.Totals.TotalTokens += m.TotalTokens
		summary.Totals.Errors += m.ErrorCount
		all = append(all, m.latencies...)
	}

	if len(all) > 0 {
		summary.Totals.LatencyAvailable = true
		summary.Totals.P95LatencyMillis = percentile(all, 95)
	}

	sort.Slice(summary.Rows, func(i, j int) bool {
		if summary.Rows[i].Model != summary.Rows[j].Model {
			return summary.Rows[i].Model < summary.Rows[j].Model
		}
		return summary.Rows[i].Operation < summary.Rows[j].Operation
	})

	return summary
}

// percentile returns the nearest-rank percentile of values
func percentile(values []int64, p int) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// ceil(p*n/100) in integer arithmetic
	idx := (p*len(sorted)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
