// Package prompts extracts chat prompts and completions of a named step from
// span forests.
package prompts

import (
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agenticgokit/tracelens/internal/model"
	"github.com/agenticgokit/tracelens/internal/payload"
	"github.com/agenticgokit/tracelens/internal/spantree"
)

// DefaultStep is the chat invocation span emitted by the agent workflow
const DefaultStep = "llm.chat"

// promptAttributeKeys are metadata attributes that carry a prompt when the
// generation input is missing. Checked in order.
var promptAttributeKeys = []string{
	"gen_ai.request.prompt",
	"visibility.prompt.content",
	"gen_ai.request.messages",
}

const (
	systemAttributeKey = "gen_ai.request.system"
	userAttributeKey   = "gen_ai.request.user"

	modelParametersPromptKey = "prompt"
)

// StepSelector names the generation step to extract
type StepSelector struct {
	// Name is matched verbatim against the observation name
	Name string
	// Within optionally requires an ancestor observation with this name
	Within string
}

func (s StepSelector) name() string {
	if s.Name == "" {
		return DefaultStep
	}
	return s.Name
}

// Selection decides which occurrences of the step are emitted
type Selection struct {
	All bool
	// Index is the per-trace occurrence to emit; nil means the first one
	Index *int
}

func (s Selection) accepts(occurrence int) bool {
	switch {
	case s.All:
		return true
	case s.Index != nil:
		return occurrence == *s.Index
	default:
		return occurrence == 0
	}
}

// Record is one extracted prompt
type Record struct {
	TraceID         string            `json:"trace_id" yaml:"trace_id"`
	ObservationID   string            `json:"observation_id" yaml:"observation_id"`
	StepName        string            `json:"step_name" yaml:"step_name"`
	Model           string            `json:"model,omitempty" yaml:"model,omitempty"`
	OccurrenceIndex int               `json:"occurrence_index" yaml:"occurrence_index"`
	Messages        []payload.Message `json:"messages" yaml:"messages"`
	Completion      *string           `json:"completion,omitempty" yaml:"completion,omitempty"`
}

// Warning is a non-fatal extraction problem
type Warning struct {
	TraceID       string
	ObservationID string
	Err           error
}

func (w Warning) String() string {
	return fmt.Sprintf("trace %s: observation %s: %v", w.TraceID, w.ObservationID, w.Err)
}

// Forest is the span forest of one trace
type Forest struct {
	TraceID string
	Roots   []*spantree.Node
}

// Result holds the records and warnings of one extraction
type Result struct {
	Records  []Record
	Warnings []Warning
}

// Extract locates GENERATION nodes named after the step in pre-order, per
// trace, and emits the occurrences the selection accepts. An out of range
// index yields no records.
func Extract(forests []Forest, step StepSelector, sel Selection) Result {
	result := Result{Records: []Record{}}
	for _, forest := range forests {
		occurrence := 0
		for _, node := range matches(forest.Roots, step) {
			if sel.accepts(occurrence) {
				record, warn := extractRecord(forest.TraceID, occurrence, &node.Observation)
				result.Records = append(result.Records, record)
				if warn != nil {
					result.Warnings = append(result.Warnings, *warn)
				}
			}
			occurrence++
		}
	}
	return result
}

// matches returns the nodes matching the step in pre-order
func matches(roots []*spantree.Node, step StepSelector) []*spantree.Node {
	name := step.name()

	var found []*spantree.Node
	// path[d] is the name of the ancestor at depth d of the current node
	var path []string
	spantree.Walk(roots, func(node *spantree.Node, depth int) bool {
		path = append(path[:depth], node.Observation.Name)
		obs := &node.Observation
		if obs.Kind == model.KindGeneration && obs.Name == name && within(path[:depth], step.Within) {
			found = append(found, node)
		}
		return true
	})
	return found
}

func within(ancestors []string, scope string) bool {
	if scope == "" {
		return true
	}
	for _, name := range ancestors {
		if name == scope {
			return true
		}
	}
	return false
}

func extractRecord(traceID string, occurrence int, obs *model.Observation) (Record, *Warning) {
	record := Record{
		TraceID:         traceID,
		ObservationID:   obs.ID,
		StepName:        obs.Name,
		Model:           obs.Model,
		OccurrenceIndex: occurrence,
		Messages:        []payload.Message{},
	}
	if text, ok := payload.Text(obs.Output); ok {
		record.Completion = &text
	}

	parsed := payload.Parse(obs.Input)
	switch parsed.Kind {
	case payload.StructuredMessages:
		if len(parsed.Messages) > 0 {
			record.Messages = parsed.Messages
			return record, nil
		}
	case payload.RawText:
		record.Messages = []payload.Message{{Role: openai.ChatMessageRoleUser, Content: parsed.Text}}
		return record, nil
	}

	if msgs := messagesFromMetadata(obs.Metadata); len(msgs) > 0 {
		record.Messages = msgs
		return record, nil
	}
	if msgs := messagesFromModelParameters(obs.ModelParameters); len(msgs) > 0 {
		record.Messages = msgs
		return record, nil
	}

	err := parsed.Err
	if err == nil {
		err = errors.New("input holds no messages")
	}
	return record, &Warning{TraceID: traceID, ObservationID: obs.ID, Err: err}
}

// messagesFromMetadata recovers a prompt from tracer attributes, found either
// under metadata.attributes or at the top level of metadata.
func messagesFromMetadata(raw json.RawMessage) []payload.Message {
	attrs := model.Attributes(raw)
	if len(attrs) == 0 {
		return nil
	}

	for _, key := range promptAttributeKeys {
		if msgs := messagesFromValue(attrs[key]); len(msgs) > 0 {
			return msgs
		}
	}

	var msgs []payload.Message
	if text, ok := payload.Text(attrs[systemAttributeKey]); ok && text != "" {
		msgs = append(msgs, payload.Message{Role: openai.ChatMessageRoleSystem, Content: text})
	}
	if text, ok := payload.Text(attrs[userAttributeKey]); ok && text != "" {
		msgs = append(msgs, payload.Message{Role: openai.ChatMessageRoleUser, Content: text})
	}
	return msgs
}

// messagesFromModelParameters reads the prompt some SDKs record among the
// generation's model parameters.
func messagesFromModelParameters(raw json.RawMessage) []payload.Message {
	if len(raw) == 0 {
		return nil
	}
	var params map[string]json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil
	}
	return messagesFromValue(params[modelParametersPromptKey])
}

// messagesFromValue parses an attribute value holding either a message list
// or plain prompt text
func messagesFromValue(value json.RawMessage) []payload.Message {
	if len(value) == 0 {
		return nil
	}
	parsed := payload.Parse(value)
	switch parsed.Kind {
	case payload.StructuredMessages:
		return parsed.Messages
	case payload.RawText:
		if parsed.Text != "" {
			return []payload.Message{{Role: openai.ChatMessageRoleUser, Content: parsed.Text}}
		}
	}
	return nil
}
