package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/agenticgokit/tracelens/internal/metrics"
	"github.com/agenticgokit/tracelens/internal/prompts"
)

// Format is an output format for reports
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatTable    Format = "table"
)

// Formats lists the supported formats
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatMarkdown, FormatTable}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// SkipMessage is printed instead of a report when credentials are missing
const SkipMessage = "Langfuse credentials are not configured; skipping report."

// RequiredEnv names the environment variables a report needs
var RequiredEnv = []string{"LANGFUSE_HOST", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY"}

// Formatter renders reports
type Formatter struct {
	format Format
}

// NewFormatter creates a new formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{format: format}
}

// Render writes the report to w. Rendering the same report twice yields the same bytes.
func (f *Formatter) Render(rep *Report, w io.Writer) error {
	switch f.format {
	case FormatText, "":
		return f.renderText(rep, w)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(newDocument(rep))
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(newDocument(rep)); err != nil {
			return err
		}
		return encoder.Close()
	case FormatMarkdown:
		return f.renderMarkdown(rep, w)
	case FormatTable:
		return f.renderTable(rep, w)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

func title(rep *Report) string {
	if rep.Kind == KindPrompts {
		return fmt.Sprintf("Langfuse Prompts (step %s)", stepLabel(rep.Step))
	}
	return "Langfuse Generation Metrics"
}

func stepLabel(step prompts.StepSelector) string {
	name := step.Name
	if name == "" {
		name = prompts.DefaultStep
	}
	if step.Within != "" {
		return fmt.Sprintf("%s within %s", name, step.Within)
	}
	return name
}

func skipText() string {
	return SkipMessage + "\nRequired environment variables: " + strings.Join(RequiredEnv, ", ")
}

// noDataMessage explains an empty report
func noDataMessage(rep *Report) string {
	if rep.Traces == 0 {
		return "No traces found."
	}
	if rep.Kind == KindPrompts {
		return fmt.Sprintf("No matching prompts found in %d trace(s).", rep.Traces)
	}
	return fmt.Sprintf("No generation observations found in %d trace(s).", rep.Traces)
}

func (f *Formatter) renderText(rep *Report, w io.Writer) error {
	if rep.Skipped {
		_, err := fmt.Fprintln(w, skipText())
		return err
	}

	fmt.Fprintf(w, "=== %s ===\n", title(rep))
	fmt.Fprintf(w, "traces: %d\n\n", rep.Traces)

	switch {
	case rep.Empty():
		fmt.Fprintln(w, noDataMessage(rep))
	case rep.Kind == KindPrompts:
		writePromptsText(rep.Prompts, w)
	default:
		if err := writeMetricsText(&rep.Metrics, w); err != nil {
			return err
		}
	}

	writeWarningsText(rep.Warnings, w)
	return nil
}

func writeMetricsText(summary *metrics.Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tOPERATION\tCALLS\tPROMPT\tCOMPLETION\tTOTAL\tAVG_MS\tP95_MS\tERRORS\tERROR_RATE")
	for _, row := range summary.Rows {
		cells := metricCells(row)
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	t := summary.Totals
	fmt.Fprintf(tw, "TOTAL\t\t%d\t%d\t%d\t%d\t\t%s\t%d\t\n",
		t.Calls, t.PromptTokens, t.CompletionTokens, t.TotalTokens, optionalMillis(t.LatencyAvailable, t.P95LatencyMillis), t.Errors)
	return tw.Flush()
}

func metricCells(row metrics.Row) []string {
	avg := "-"
	if row.LatencyAvailable {
		avg = fmt.Sprintf("%.1f", row.AvgLatencyMillis)
	}
	return []string{
		row.Model,
		row.Operation,
		fmt.Sprint(row.CallCount),
		fmt.Sprint(row.PromptTokens),
		fmt.Sprint(row.CompletionTokens),
		fmt.Sprint(row.TotalTokens),
		avg,
		optionalMillis(row.LatencyAvailable, row.P95LatencyMillis),
		fmt.Sprint(row.ErrorCount),
		fmt.Sprintf("%.1f%%", row.ErrorRate*100),
	}
}

func optionalMillis(ok bool, ms int64) string {
	if !ok {
		return "-"
	}
	return fmt.Sprint(ms)
}

func writePromptsText(records []prompts.Record, w io.Writer) {
	for i, rec := range records {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "--- trace %s / observation %s / occurrence %d ---\n", rec.TraceID, rec.ObservationID, rec.OccurrenceIndex)
		if rec.Model != "" {
			fmt.Fprintf(w, "model: %s\n", rec.Model)
		}
		if len(rec.Messages) == 0 {
			fmt.Fprintln(w, "(no messages)")
		}
		for _, msg := range rec.Messages {
			fmt.Fprintf(w, "[%s]\n%s\n", msg.Role, msg.Content)
		}
		if rec.Completion != nil {
			fmt.Fprintf(w, "[completion]\n%s\n", *rec.Completion)
		}
	}
}

func writeWarningsText(warnings []string, w io.Writer) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\nWarnings (%d):\n", len(warnings))
	for _, warn := range warnings {
		fmt.Fprintf(w, "  - %s\n", warn)
	}
}

// document is the structured (json/yaml) form of a report
type document struct {
	Report   Kind             `json:"report" yaml:"report"`
	Skipped  bool             `json:"skipped" yaml:"skipped"`
	Message  string           `json:"message,omitempty" yaml:"message,omitempty"`
	NoData   bool             `json:"no_data" yaml:"no_data"`
	Traces   int              `json:"traces" yaml:"traces"`
	Step     string           `json:"step,omitempty" yaml:"step,omitempty"`
	Rows     []metrics.Row    `json:"rows,omitempty" yaml:"rows,omitempty"`
	Totals   *metrics.Totals  `json:"totals,omitempty" yaml:"totals,omitempty"`
	Prompts  []prompts.Record `json:"prompts,omitempty" yaml:"prompts,omitempty"`
	Warnings []string         `json:"warnings" yaml:"warnings"`
}

func newDocument(rep *Report) document {
	doc := document{
		Report:   rep.Kind,
		Skipped:  rep.Skipped,
		Traces:   rep.Traces,
		Warnings: append([]string{}, rep.Warnings...),
	}
	switch {
	case rep.Skipped:
		doc.Message = SkipMessage
		doc.NoData = true
		return doc
	case rep.Empty():
		doc.Message = noDataMessage(rep)
		doc.NoData = true
	}

	if rep.Kind == KindPrompts {
		doc.Step = stepLabel(rep.Step)
		doc.Prompts = rep.Prompts
	} else {
		doc.Rows = rep.Metrics.Rows
		totals := rep.Metrics.Totals
		doc.Totals = &totals
	}
	return doc
}

const markdownTemplate = `# {{ .Title }}

{{ if .Skipped -}}
> {{ .Message }}
>
> Required environment variables: {{ join ", " .RequiredEnv }}
{{ else -}}
Traces analysed: **{{ .Traces }}**

{{ if .NoData -}}
_{{ .Message }}_
{{ else if .Rows -}}
| Model | Operation | Calls | Prompt | Completion | Total | Avg ms | P95 ms | Errors | Error rate |
|---|---|---:|---:|---:|---:|---:|---:|---:|---:|
{{- range .Rows }}
| {{ index . 0 }} | {{ index . 1 }} | {{ index . 2 }} | {{ index . 3 }} | {{ index . 4 }} | {{ index . 5 }} | {{ index . 6 }} | {{ index . 7 }} | {{ index . 8 }} | {{ index . 9 }} |
{{- end }}
| **Total** | | {{ .Totals.Calls }} | {{ .Totals.PromptTokens }} | {{ .Totals.CompletionTokens }} | {{ .Totals.TotalTokens }} | | {{ .TotalP95 }} | {{ .Totals.Errors }} | |
{{ else -}}
{{ range .Prompts -}}
## Trace ` + "`{{ .TraceID }}`" + ` occurrence {{ .OccurrenceIndex }}

- Observation: ` + "`{{ .ObservationID }}`" + `
- Model: {{ .Model | default "unknown" }}
{{ range .Messages }}
**{{ .Role | upper }}**

~~~text
{{ .Content | trim }}
~~~
{{ else }}
_No messages._
{{ end -}}
{{ with .Completion }}
**COMPLETION**

~~~text
{{ . | trim }}
~~~
{{ end }}
{{ end -}}
{{ end -}}
{{ end -}}
{{ if .Warnings }}
## Warnings

{{ range .Warnings -}}
- {{ . }}
{{ end -}}
{{ end -}}
`

var markdownTmpl = template.Must(template.New("report").Funcs(sprig.TxtFuncMap()).Parse(markdownTemplate))

type markdownView struct {
	Title       string
	Skipped     bool
	Message     string
	RequiredEnv []string
	Traces      int
	NoData      bool
	Rows        [][]string
	Totals      metrics.Totals
	TotalP95    string
	Prompts     []prompts.Record
	Warnings    []string
}

func (f *Formatter) renderMarkdown(rep *Report, w io.Writer) error {
	view := markdownView{
		Title:       title(rep),
		Skipped:     rep.Skipped,
		RequiredEnv: RequiredEnv,
		Traces:      rep.Traces,
		Warnings:    rep.Warnings,
	}
	switch {
	case rep.Skipped:
		view.Message = SkipMessage
	case rep.Empty():
		view.NoData = true
		view.Message = noDataMessage(rep)
	case rep.Kind == KindPrompts:
		view.Prompts = rep.Prompts
	default:
		for _, row := range rep.Metrics.Rows {
			cells := metricCells(row)
			for i := range cells {
				cells[i] = strings.ReplaceAll(cells[i], "|", `\|`)
			}
			view.Rows = append(view.Rows, cells)
		}
		view.Totals = rep.Metrics.Totals
		view.TotalP95 = optionalMillis(rep.Metrics.Totals.LatencyAvailable, rep.Metrics.Totals.P95LatencyMillis)
	}
	return markdownTmpl.Execute(w, view)
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
}

func (f *Formatter) renderTable(rep *Report, w io.Writer) error {
	if rep.Skipped {
		_, err := fmt.Fprintln(w, skipText())
		return err
	}

	fmt.Fprintln(w, title(rep))
	fmt.Fprintf(w, "traces: %d\n", rep.Traces)

	switch {
	case rep.Empty():
		fmt.Fprintln(w, noDataMessage(rep))
	case rep.Kind == KindPrompts:
		t := newTable("TRACE", "OBSERVATION", "#", "ROLE", "CONTENT")
		for _, rec := range rep.Prompts {
			for _, msg := range rec.Messages {
				t.Row(rec.TraceID, rec.ObservationID, fmt.Sprint(rec.OccurrenceIndex), msg.Role, truncate(msg.Content, 80))
			}
			if rec.Completion != nil {
				t.Row(rec.TraceID, rec.ObservationID, fmt.Sprint(rec.OccurrenceIndex), "completion", truncate(*rec.Completion, 80))
			}
		}
		fmt.Fprintln(w, t.String())
	default:
		t := newTable("MODEL", "OPERATION", "CALLS", "PROMPT", "COMPLETION", "TOTAL", "AVG_MS", "P95_MS", "ERRORS", "ERROR_RATE")
		for _, row := range rep.Metrics.Rows {
			t.Row(metricCells(row)...)
		}
		fmt.Fprintln(w, t.String())
	}

	writeWarningsText(rep.Warnings, w)
	return nil
}

// truncate shortens s to one line of at most n runes
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
