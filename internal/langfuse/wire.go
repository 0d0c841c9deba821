package langfuse

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/agenticgokit/tracelens/internal/model"
)

// pageMeta is the pagination block of list responses
type pageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

type traceListResponse struct {
	Data []traceDTO `json:"data"`
	Meta pageMeta   `json:"meta"`
}

type traceDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

func (t traceDTO) summary() model.TraceSummary {
	return model.TraceSummary{
		ID:        t.ID,
		Name:      t.Name,
		StartedAt: parseTime(t.Timestamp),
	}
}

type observationListResponse struct {
	Data []observationDTO `json:"data"`
	Meta pageMeta         `json:"meta"`
}

type observationDTO struct {
	ID                  string             `json:"id"`
	TraceID             string             `json:"traceId"`
	Type                string             `json:"type"`
	Name                string             `json:"name"`
	StartTime           string             `json:"startTime"`
	EndTime             string             `json:"endTime"`
	ParentObservationID string             `json:"parentObservationId"`
	Input               json.RawMessage    `json:"input"`
	Output              json.RawMessage    `json:"output"`
	Metadata            json.RawMessage    `json:"metadata"`
	ModelParameters     json.RawMessage    `json:"modelParameters"`
	Model               string             `json:"model"`
	Usage               *usageDTO          `json:"usage"`
	UsageDetails        map[string]float64 `json:"usageDetails"`
	Level               string             `json:"level"`
	StatusMessage       string             `json:"statusMessage"`
}

// usageDTO covers both the current {input, output, total} shape and the
// legacy OpenAI-style token names.
type usageDTO struct {
	Input            int64 `json:"input"`
	Output           int64 `json:"output"`
	Total            int64 `json:"total"`
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}

func (o observationDTO) observation() model.Observation {
	obs := model.Observation{
		ID:        o.ID,
		ParentID:  o.ParentObservationID,
		Kind:      model.ParseKind(o.Type),
		Name:      o.Name,
		StartedAt: parseTime(o.StartTime),
		EndedAt:   parseTime(o.EndTime),
		Input:     o.Input,
		Output:    o.Output,
		Metadata:  o.Metadata,
		Usage:     o.usage(),
		Model:     o.Model,

		ModelParameters: o.ModelParameters,
	}
	if strings.EqualFold(o.Level, "ERROR") {
		obs.Error = o.StatusMessage
		if obs.Error == "" {
			obs.Error = "error"
		}
	}
	return obs
}

// usage prefers the backend's usage fields and falls back to the gen_ai.usage
// attributes recorded by OpenTelemetry tracers.
func (o observationDTO) usage() *model.Usage {
	native := o.nativeUsage()
	if native != nil && (native.PromptTokens != 0 || native.CompletionTokens != 0 || native.TotalTokens != 0) {
		return native
	}
	if attr := usageFromAttributes(model.Attributes(o.Metadata)); attr != nil {
		return attr
	}
	return native
}

func (o observationDTO) nativeUsage() *model.Usage {
	if u := o.Usage; u != nil {
		if u.Input != 0 || u.Output != 0 || u.Total != 0 {
			return &model.Usage{PromptTokens: u.Input, CompletionTokens: u.Output, TotalTokens: u.Total}
		}
		if u.PromptTokens != 0 || u.CompletionTokens != 0 || u.TotalTokens != 0 {
			return &model.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
		}
	}
	if len(o.UsageDetails) > 0 {
		return &model.Usage{
			PromptTokens:     int64(o.UsageDetails["input"]),
			CompletionTokens: int64(o.UsageDetails["output"]),
			TotalTokens:      int64(o.UsageDetails["total"]),
		}
	}
	if o.Usage != nil {
		return &model.Usage{}
	}
	return nil
}

// token count attributes, current semantic convention names first
var (
	inputTokenAttributes  = []string{"gen_ai.usage.input_tokens", "gen_ai.usage.prompt_tokens"}
	outputTokenAttributes = []string{"gen_ai.usage.output_tokens", "gen_ai.usage.completion_tokens"}
	totalTokenAttributes  = []string{"gen_ai.usage.total_tokens"}
)

func usageFromAttributes(attrs map[string]json.RawMessage) *model.Usage {
	if len(attrs) == 0 {
		return nil
	}
	input, okIn := firstCount(attrs, inputTokenAttributes)
	output, okOut := firstCount(attrs, outputTokenAttributes)
	total, okTotal := firstCount(attrs, totalTokenAttributes)
	if !okIn && !okOut && !okTotal {
		return nil
	}
	return &model.Usage{PromptTokens: input, CompletionTokens: output, TotalTokens: total}
}

func firstCount(attrs map[string]json.RawMessage, keys []string) (int64, bool) {
	for _, key := range keys {
		if n, ok := tokenCount(attrs[key]); ok {
			return n, true
		}
	}
	return 0, false
}

// tokenCount reads a JSON number or a numeric string; exporters differ
func tokenCount(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// parseTime returns the zero time for missing or unparsable timestamps
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// errorMessage extracts the backend's message from an error response body
func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
