// Package model holds the trace data shared by the fetch client, the span
// tree builder and the extractors.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind categorizes an observation
type Kind string

const (
	// KindSpan is a generic unit of work
	KindSpan Kind = "SPAN"
	// KindGeneration is a model call carrying usage and model identity
	KindGeneration Kind = "GENERATION"
	// KindEvent is a point-in-time event
	KindEvent Kind = "EVENT"
)

// ParseKind maps a backend observation type to a Kind.
// Unrecognized types are treated as spans so they never count as model calls.
func ParseKind(raw string) Kind {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(KindGeneration):
		return KindGeneration
	case string(KindEvent):
		return KindEvent
	default:
		return KindSpan
	}
}

// Credentials is the public/secret key pair used to authenticate against the backend.
// It is passed explicitly to every fetch call.
type Credentials struct {
	PublicKey string
	SecretKey string
}

// Complete reports whether both keys are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.PublicKey) != "" && strings.TrimSpace(c.SecretKey) != ""
}

// Usage is the token usage reported for a generation
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Observation is one recorded unit of work within a trace
type Observation struct {
	ID        string
	ParentID  string
	Kind      Kind
	Name      string
	StartedAt time.Time
	EndedAt   time.Time
	Input     json.RawMessage
	Output    json.RawMessage
	Metadata  json.RawMessage
	Usage     *Usage
	Model     string
	Error     string

	// ModelParameters holds the request parameters recorded for a generation
	ModelParameters json.RawMessage
}

// HasError reports whether the observation recorded an error
func (o *Observation) HasError() bool {
	return o.Error != ""
}

// Latency returns endedAt - startedAt. ok is false when either timestamp is
// missing or endedAt precedes startedAt.
func (o *Observation) Latency() (time.Duration, bool) {
	if o.StartedAt.IsZero() || o.EndedAt.IsZero() || o.EndedAt.Before(o.StartedAt) {
		return 0, false
	}
	return o.EndedAt.Sub(o.StartedAt), true
}

// Attributes returns the tracer attributes of an observation's metadata, found
// under metadata.attributes or at the top level of metadata. Nested attributes
// win over same-named top-level keys. Metadata that is not a JSON object
// yields nil.
func Attributes(metadata json.RawMessage) map[string]json.RawMessage {
	if len(metadata) == 0 {
		return nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(metadata, &top); err != nil {
		return nil
	}

	attrs := make(map[string]json.RawMessage, len(top))
	for k, v := range top {
		attrs[k] = v
	}
	if nested, ok := top["attributes"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil {
			for k, v := range inner {
				attrs[k] = v
			}
		}
	}
	return attrs
}

// Trace is one end-to-end recorded execution of an agent workflow
type Trace struct {
	ID           string
	Name         string
	StartedAt    time.Time
	Observations []Observation
}

// TraceSummary is the listing view of a trace, without observations
type TraceSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
}
