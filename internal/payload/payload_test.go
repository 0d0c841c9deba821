package payload

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind Kind
		wantMsgs []Message
		wantText string
	}{
		{
			name:     "openai message array",
			raw:      `[{"role":"system","content":"be brief"},{"role":"user","content":"hello"}]`,
			wantKind: StructuredMessages,
			wantMsgs: []Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hello"}},
		},
		{
			name:     "messages wrapper",
			raw:      `{"messages":[{"role":"user","content":"hi"}],"temperature":0}`,
			wantKind: StructuredMessages,
			wantMsgs: []Message{{Role: "user", Content: "hi"}},
		},
		{
			name:     "multi part content",
			raw:      `[{"role":"user","content":[{"type":"text","text":"look"},{"type":"image_url","image_url":{"url":"x"}}]}]`,
			wantKind: StructuredMessages,
			wantMsgs: []Message{{Role: "user", Content: "look\n[image]"}},
		},
		{
			name:     "langchain4j messages",
			raw:      `[{"type":"SYSTEM","text":"rules"},{"type":"USER","contents":[{"type":"TEXT","text":"question"}]}]`,
			wantKind: StructuredMessages,
			wantMsgs: []Message{{Role: "system", Content: "rules"}, {Role: "user", Content: "question"}},
		},
		{
			name:     "message list encoded as string",
			raw:      `"[{\"role\":\"user\",\"content\":\"nested\"}]"`,
			wantKind: StructuredMessages,
			wantMsgs: []Message{{Role: "user", Content: "nested"}},
		},
		{
			name:     "single message object",
			raw:      `{"role":"assistant","content":"ok"}`,
			wantKind: StructuredMessages,
			wantMsgs: []Message{{Role: "assistant", Content: "ok"}},
		},
		{
			name:     "plain string",
			raw:      `"summarize the document"`,
			wantKind: RawText,
			wantText: "summarize the document",
		},
		{
			name:     "object without messages",
			raw:      `{ "query": "weather",  "k": 3 }`,
			wantKind: RawText,
			wantText: `{"query":"weather","k":3}`,
		},
		{
			name:     "array of non messages",
			raw:      `[1, 2, 3]`,
			wantKind: RawText,
			wantText: `[1,2,3]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(json.RawMessage(tt.raw))
			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v (err=%v)", got.Kind, tt.wantKind, got.Err)
			}
			if diff := cmp.Diff(tt.wantMsgs, got.Messages); diff != "" {
				t.Errorf("Messages mismatch (-want +got):\n%s", diff)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
		})
	}
}

func TestParseUnparsed(t *testing.T) {
	for _, raw := range []string{"", "   ", "null"} {
		got := Parse(json.RawMessage(raw))
		if got.Kind != Unparsed || !errors.Is(got.Err, ErrEmpty) {
			t.Errorf("Parse(%q) = %v / %v, want unparsed / ErrEmpty", raw, got.Kind, got.Err)
		}
	}

	got := Parse(json.RawMessage(`{"role":`))
	if got.Kind != Unparsed || got.Err == nil {
		t.Errorf("Parse(invalid) = %v / %v, want unparsed with error", got.Kind, got.Err)
	}
	if len(got.Messages) != 0 {
		t.Errorf("Parse(invalid) returned %d messages", len(got.Messages))
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"absent", "", "", false},
		{"null", "null", "", false},
		{"string", `"the answer"`, "the answer", true},
		{"message", `{"role":"assistant","content":"done"}`, "done", true},
		{"content field", `{"content":"plain"}`, "plain", true},
		{"choices", `{"choices":[{"message":{"role":"assistant","content":"first"}},{"message":{"content":"second"}}]}`, "first", true},
		{"message list", `[{"role":"assistant","content":"a"},{"role":"assistant","content":"b"}]`, "a\nb", true},
		{"other json", `{"score": 0.5}`, `{"score":0.5}`, true},
		{"number", `42`, `42`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Text(json.RawMessage(tt.raw))
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Text() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if StructuredMessages.String() != "messages" || RawText.String() != "raw_text" || Unparsed.String() != "unparsed" {
		t.Error("unexpected Kind.String() values")
	}
}
