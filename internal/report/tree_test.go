package report

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/agenticgokit/tracelens/internal/model"
	"github.com/agenticgokit/tracelens/internal/spantree"
)

func sampleTrace() (model.Trace, []*spantree.Node) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := model.Trace{
		ID:   "t1",
		Name: "agent.run",
		Observations: []model.Observation{
			{ID: "root", Kind: model.KindSpan, Name: "workflow.act", StartedAt: start, EndedAt: start.Add(time.Second)},
			{ID: "g1", ParentID: "root", Kind: model.KindGeneration, Name: "llm.chat", Model: "gpt-4o",
				StartedAt: start, EndedAt: start.Add(250 * time.Millisecond), Usage: &model.Usage{PromptTokens: 12, CompletionTokens: 3}},
			{ID: "e1", ParentID: "g1", Kind: model.KindEvent, Name: "tool.result", Error: "timeout"},
		},
	}
	return tr, spantree.Build(tr.Observations)
}

func TestRenderTreeText(t *testing.T) {
	tr, roots := sampleTrace()
	var buf bytes.Buffer
	if err := RenderTree(tr, roots, TreeText, &buf); err != nil {
		t.Fatalf("RenderTree() error = %v", err)
	}

	want := strings.Join([]string{
		"trace t1 (agent.run): 3 observation(s)",
		"- [SPAN] workflow.act (1000ms)",
		"  - [GENERATION] llm.chat (250ms, gpt-4o, tokens 12/3)",
		"    - [EVENT] tool.result ERROR: timeout",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("RenderTree() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderTreeEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderTree(model.Trace{ID: "t0"}, nil, TreeText, &buf); err != nil {
		t.Fatalf("RenderTree() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No observations found.") {
		t.Errorf("RenderTree() = %q, want no-observations message", buf.String())
	}
}

func TestGenerateMermaid(t *testing.T) {
	_, roots := sampleTrace()
	out := GenerateMermaid(roots)

	for _, want := range []string{"```mermaid", "workflow.act", "llm.chat @gpt-4o", "250ms", "tool.result"} {
		if !strings.Contains(out, want) {
			t.Errorf("GenerateMermaid() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatNodeLabelTruncatesRunes(t *testing.T) {
	obs := &model.Observation{ID: "s1", Kind: model.KindSpan, Name: strings.Repeat("日本", 40)}
	got := formatNodeLabel(obs)

	if !utf8.ValidString(got) {
		t.Fatalf("formatNodeLabel() = %q, not valid UTF-8", got)
	}
	if want := strings.Repeat("日本", 28) + "日..."; got != want {
		t.Errorf("formatNodeLabel() = %q, want %q", got, want)
	}

	short := &model.Observation{ID: "s2", Name: "ключ"}
	if got := formatNodeLabel(short); got != "ключ" {
		t.Errorf("formatNodeLabel() = %q, want unchanged name", got)
	}
}

func TestRenderTreeUnknownFormat(t *testing.T) {
	tr, roots := sampleTrace()
	if err := RenderTree(tr, roots, "dot", &bytes.Buffer{}); err == nil {
		t.Error("RenderTree() with unknown format returned nil error")
	}
}
