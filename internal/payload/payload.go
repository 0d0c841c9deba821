// Package payload interprets the opaque input/output fields of observations.
//
// A payload is classified once, at parse time, as structured chat messages,
// raw text, or unparsed. Callers switch on the Kind and never assume a shape.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Kind tags the shape a payload was recognized as
type Kind int

const (
	// Unparsed payloads were empty or not valid JSON; Err says why
	Unparsed Kind = iota
	// RawText payloads carry free text (or JSON that is not a message list)
	RawText
	// StructuredMessages payloads carry an ordered list of chat messages
	StructuredMessages
)

func (k Kind) String() string {
	switch k {
	case RawText:
		return "raw_text"
	case StructuredMessages:
		return "messages"
	default:
		return "unparsed"
	}
}

// ErrEmpty is reported for missing or null payloads
var ErrEmpty = errors.New("payload is empty")

// Message is one chat message
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Payload is the parsed form of an observation input or output
type Payload struct {
	Kind     Kind
	Messages []Message
	Text     string
	Err      error
}

// Parse classifies raw JSON. It never fails; problems are reported through an
// Unparsed payload.
func Parse(raw json.RawMessage) Payload {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Payload{Kind: Unparsed, Err: ErrEmpty}
	}

	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return Payload{Kind: Unparsed, Err: fmt.Errorf("invalid JSON payload: %w", err)}
	}

	switch data[0] {
	case '"':
		s, _ := probe.(string)
		// OTel-ingested traces often store the message list as a JSON string
		inner := strings.TrimSpace(s)
		if strings.HasPrefix(inner, "[") || strings.HasPrefix(inner, "{") {
			if msgs, ok := decodeMessageContainer([]byte(inner)); ok {
				return Payload{Kind: StructuredMessages, Messages: msgs}
			}
		}
		return Payload{Kind: RawText, Text: s}
	case '[', '{':
		if msgs, ok := decodeMessageContainer(data); ok {
			return Payload{Kind: StructuredMessages, Messages: msgs}
		}
	}

	return Payload{Kind: RawText, Text: compact(data)}
}

// decodeMessageContainer accepts a message array, an object with a "messages"
// array, or a single message object.
func decodeMessageContainer(data []byte) ([]Message, bool) {
	if len(data) == 0 {
		return nil, false
	}
	if data[0] == '[' {
		return decodeMessages(data)
	}

	var wrapper struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, false
	}
	if len(wrapper.Messages) > 0 && wrapper.Messages[0] == '[' {
		return decodeMessages(wrapper.Messages)
	}

	if msg, ok := decodeMessage(data); ok {
		return []Message{msg}, true
	}
	return nil, false
}

func decodeMessages(data []byte) ([]Message, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}

	msgs := make([]Message, 0, len(items))
	for _, item := range items {
		msg, ok := decodeMessage(item)
		if !ok {
			return nil, false
		}
		msgs = append(msgs, msg)
	}
	return msgs, true
}

// langchainMessage is the serialized LangChain4j chat message shape
type langchainMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Contents []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"contents"`
}

func decodeMessage(data []byte) (Message, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Message{}, false
	}

	var msg openai.ChatCompletionMessage
	if err := json.Unmarshal(data, &msg); err == nil && msg.Role != "" {
		return Message{Role: msg.Role, Content: openAIContent(msg)}, true
	}

	var lc langchainMessage
	if err := json.Unmarshal(data, &lc); err == nil && lc.Type != "" {
		content := lc.Text
		if content == "" {
			parts := make([]string, 0, len(lc.Contents))
			for _, c := range lc.Contents {
				if c.Text != "" {
					parts = append(parts, c.Text)
				}
			}
			content = strings.Join(parts, "\n")
		}
		return Message{Role: strings.ToLower(lc.Type), Content: content}, true
	}

	return Message{}, false
}

func openAIContent(msg openai.ChatCompletionMessage) string {
	if msg.Content != "" {
		return msg.Content
	}
	if len(msg.MultiContent) > 0 {
		parts := make([]string, 0, len(msg.MultiContent))
		for _, part := range msg.MultiContent {
			switch part.Type {
			case openai.ChatMessagePartTypeText:
				parts = append(parts, part.Text)
			case openai.ChatMessagePartTypeImageURL:
				parts = append(parts, "[image]")
			}
		}
		return strings.Join(parts, "\n")
	}
	if len(msg.ToolCalls) > 0 {
		calls := make([]string, 0, len(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			calls = append(calls, fmt.Sprintf("%s(%s)", call.Function.Name, call.Function.Arguments))
		}
		return "tool_calls: " + strings.Join(calls, ", ")
	}
	return ""
}

// Text renders an output payload as text. ok is false when there is nothing
// to render.
func Text(raw json.RawMessage) (string, bool) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", false
	}
	if !json.Valid(data) {
		return string(data), true
	}

	switch data[0] {
	case '"':
		var s string
		_ = json.Unmarshal(data, &s)
		return s, true
	case '{':
		var completion struct {
			Content *string `json:"content"`
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
				Text string `json:"text"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(data, &completion); err == nil {
			if completion.Content != nil {
				return *completion.Content, true
			}
			if len(completion.Choices) > 0 {
				first := completion.Choices[0]
				if first.Message.Content != "" {
					return first.Message.Content, true
				}
				return first.Text, true
			}
		}
		if msg, ok := decodeMessage(data); ok {
			return msg.Content, true
		}
	case '[':
		if msgs, ok := decodeMessages(data); ok && len(msgs) > 0 {
			parts := make([]string, 0, len(msgs))
			for _, m := range msgs {
				parts = append(parts, m.Content)
			}
			return strings.Join(parts, "\n"), true
		}
	}

	return compact(data), true
}

func compact(data []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return string(data)
	}
	return buf.String()
}
