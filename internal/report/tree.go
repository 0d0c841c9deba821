package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/TyphonHill/go-mermaid/diagrams/flowchart"

	"github.com/agenticgokit/tracelens/internal/model"
	"github.com/agenticgokit/tracelens/internal/spantree"
)

// TreeFormat is an output format of the span tree view
type TreeFormat string

const (
	TreeText    TreeFormat = "text"
	TreeMermaid TreeFormat = "mermaid"
)

// RenderTree writes the span forest of a trace in the given format
func RenderTree(tr model.Trace, roots []*spantree.Node, format TreeFormat, w io.Writer) error {
	switch format {
	case TreeText, "":
		return renderTreeText(tr, roots, w)
	case TreeMermaid:
		_, err := io.WriteString(w, GenerateMermaid(roots))
		return err
	default:
		return fmt.Errorf("unsupported tree format: %s", format)
	}
}

func renderTreeText(tr model.Trace, roots []*spantree.Node, w io.Writer) error {
	fmt.Fprintf(w, "trace %s", tr.ID)
	if tr.Name != "" {
		fmt.Fprintf(w, " (%s)", tr.Name)
	}
	fmt.Fprintf(w, ": %d observation(s)\n", spantree.Count(roots))

	if len(roots) == 0 {
		_, err := fmt.Fprintln(w, "No observations found.")
		return err
	}

	spantree.Walk(roots, func(node *spantree.Node, depth int) bool {
		fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", depth), describe(&node.Observation))
		return true
	})
	return nil
}

// describe formats one observation as "[KIND] name (details)"
func describe(obs *model.Observation) string {
	var details []string
	if latency, ok := obs.Latency(); ok {
		details = append(details, fmt.Sprintf("%dms", latency.Milliseconds()))
	}
	if obs.Model != "" {
		details = append(details, obs.Model)
	}
	if obs.Usage != nil {
		details = append(details, fmt.Sprintf("tokens %d/%d", obs.Usage.PromptTokens, obs.Usage.CompletionTokens))
	}

	line := fmt.Sprintf("[%s] %s", obs.Kind, obs.Name)
	if len(details) > 0 {
		line += " (" + strings.Join(details, ", ") + ")"
	}
	if obs.HasError() {
		line += " ERROR: " + obs.Error
	}
	return line
}

// GenerateMermaid creates a Mermaid flowchart of the span forest
func GenerateMermaid(roots []*spantree.Node) string {
	diagram := flowchart.NewFlowchart()
	diagram.EnableMarkdownFence()
	diagram.SetDirection(flowchart.FlowchartDirectionTopDown)
	diagram.Config.SetHtmlLabels(true)

	nodes := make(map[*spantree.Node]*flowchart.Node)
	spantree.Walk(roots, func(n *spantree.Node, _ int) bool {
		node := diagram.AddNode(formatNodeLabel(&n.Observation))
		applyFlowchartShape(node, n.Observation.Kind)
		if style := getFlowchartStyle(&n.Observation); style != nil {
			node.SetStyle(style)
		}
		nodes[n] = node
		return true
	})

	// parents are visited before their children, so every link endpoint exists
	spantree.Walk(roots, func(n *spantree.Node, _ int) bool {
		for _, child := range n.Children {
			diagram.AddLink(nodes[n], nodes[child])
		}
		return true
	})

	return diagram.String()
}

// formatNodeLabel creates a concise label for the node
func formatNodeLabel(obs *model.Observation) string {
	desc := obs.Name
	if desc == "" {
		desc = obs.ID
	}
	if obs.Model != "" {
		desc = fmt.Sprintf("%s @%s", desc, obs.Model)
	}
	desc = truncate(desc, 60)
	desc = strings.ReplaceAll(desc, `"`, "#quot;")

	duration := ""
	if latency, ok := obs.Latency(); ok && latency > 0 {
		duration = fmt.Sprintf("<br/>%dms", latency.Milliseconds())
	}

	return fmt.Sprintf("%s%s", desc, duration)
}

func applyFlowchartShape(node *flowchart.Node, kind model.Kind) {
	switch kind {
	case model.KindGeneration:
		node.SetShape(flowchart.NodeShapeSubprocess)
	case model.KindEvent:
		node.SetShape(flowchart.NodeShapeInputOutput)
	default:
		node.SetShape(flowchart.NodeShapeProcess)
	}
}

// getFlowchartStyle returns Mermaid styling for the observation
func getFlowchartStyle(obs *model.Observation) *flowchart.NodeStyle {
	style := flowchart.NewNodeStyle()
	style.StrokeWidth = 1

	switch {
	case obs.HasError():
		style.Fill = "#ffebee"
		style.Stroke = "#b71c1c"
	case obs.Kind == model.KindGeneration:
		style.Fill = "#f3e5f5"
		style.Stroke = "#4a148c"
	case obs.Kind == model.KindEvent:
		style.Fill = "#fff3e0"
		style.Stroke = "#e65100"
	default:
		return nil
	}

	return style
}
