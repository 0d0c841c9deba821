package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenticgokit/tracelens/internal/langfuse"
	"github.com/agenticgokit/tracelens/internal/model"
	"github.com/agenticgokit/tracelens/internal/report"
	"github.com/agenticgokit/tracelens/internal/spantree"
	"github.com/agenticgokit/tracelens/internal/utils"
)

// traceCmd represents the trace command
var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Browse traces stored in Langfuse",
	Long: `Browse the traces stored in Langfuse.

Examples:
  tracelens trace list --hours 6                   # Recent traces
  tracelens trace tree --trace-id abc123           # Span tree as an outline
  tracelens trace tree --trace-id abc123 -f mermaid # Span tree as a Mermaid flowchart
`,
}

// traceListCmd lists recent trace summaries
var traceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent traces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		hours, _ := cmd.Flags().GetInt("hours")
		return usageOnValidation(cmd, listTraces(cmd, limit, hours))
	},
}

// traceTreeCmd shows the span tree of one trace
var traceTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the span tree of a trace",
	Long: `Rebuild the observation hierarchy of a trace and print it as an indented
outline (kind, name, latency, model, tokens) or as a Mermaid flowchart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		traceID, _ := cmd.Flags().GetString("trace-id")
		format, _ := cmd.Flags().GetString("format")
		return usageOnValidation(cmd, showTree(cmd, traceID, report.TreeFormat(strings.ToLower(format))))
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.AddCommand(traceListCmd)
	traceCmd.AddCommand(traceTreeCmd)

	traceListCmd.Flags().Int("limit", langfuse.DefaultLimit, fmt.Sprintf("Maximum number of traces (1-%d)", report.MaxLimit))
	traceListCmd.Flags().Int("hours", 0, "Only traces from the last N hours (0 for no window)")

	traceTreeCmd.Flags().String("trace-id", "", "Trace to show")
	traceTreeCmd.Flags().StringP("format", "f", string(report.TreeText), "Output format: text, mermaid")
	_ = traceTreeCmd.MarkFlagRequired("trace-id")
}

// backendError turns a fetch error into an error for the user
func backendError(host string, err error) error {
	if langfuse.IsUnauthorized(err) {
		return utils.CredentialsRejectedError(host, err)
	}
	return utils.BackendFailureError(host, err)
}

// skipWithoutCredentials prints the skip notice and reports whether the command should stop
func skipWithoutCredentials(cmd *cobra.Command, creds model.Credentials) bool {
	if creds.Complete() {
		return false
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.SkipMessage)
	fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("Set %s", strings.Join(report.RequiredEnv, ", ")))
	return true
}

func listTraces(cmd *cobra.Command, limit, hours int) error {
	if limit < 1 || limit > report.MaxLimit {
		return utils.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d, got %d", report.MaxLimit, limit))
	}
	if hours < 0 {
		return utils.NewValidationError("hours", fmt.Sprintf("must not be negative, got %d", hours))
	}

	settings, client, err := newClient()
	if err != nil {
		return err
	}
	if skipWithoutCredentials(cmd, settings.Credentials) {
		return nil
	}

	summaries, err := client.ListTraces(cmd.Context(), settings.Credentials, langfuse.Query{
		Limit:  limit,
		Window: time.Duration(hours) * time.Hour,
	})
	if err != nil {
		return backendError(settings.Host, err)
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No traces found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTARTED")
	for _, s := range summaries {
		started := "-"
		if !s.StartedAt.IsZero() {
			started = s.StartedAt.UTC().Format(time.RFC3339)
		}
		name := s.Name
		if name == "" {
			name = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, name, started)
	}
	return w.Flush()
}

func showTree(cmd *cobra.Command, traceID string, format report.TreeFormat) error {
	if format != report.TreeText && format != report.TreeMermaid {
		return utils.NewValidationError("format", fmt.Sprintf("unsupported tree format: %s", format))
	}

	settings, client, err := newClient()
	if err != nil {
		return err
	}
	if skipWithoutCredentials(cmd, settings.Credentials) {
		return nil
	}

	ctx := cmd.Context()
	summary, err := client.GetTrace(ctx, settings.Credentials, traceID)
	if langfuse.IsNotFound(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "Trace %s not found.\n", traceID)
		return nil
	}
	if err != nil {
		return backendError(settings.Host, err)
	}

	observations, err := client.ListObservations(ctx, settings.Credentials, traceID)
	if err != nil {
		return backendError(settings.Host, err)
	}

	tr := model.Trace{ID: summary.ID, Name: summary.Name, StartedAt: summary.StartedAt, Observations: observations}
	return report.RenderTree(tr, spantree.Build(observations), format, cmd.OutOrStdout())
}
