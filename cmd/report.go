package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenticgokit/tracelens/internal/prompts"
	"github.com/agenticgokit/tracelens/internal/report"
	"github.com/agenticgokit/tracelens/internal/tui"
	"github.com/agenticgokit/tracelens/internal/utils"
)

// reportCmd groups the report commands
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build reports from Langfuse traces",
	Long: `Build reports from the traces stored in Langfuse.

Examples:
  tracelens report metrics --hours 24            # Per-model generation metrics
  tracelens report metrics --trace-id abc123     # Metrics of one trace
  tracelens report prompts --step llm.chat --all # Every prompt sent at a step
  tracelens report prompts --index 2 -f markdown # Third occurrence per trace
`,
}

var reportMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Aggregate generation metrics per model and operation",
	Long: `Aggregate the generation observations of recent traces per (model, operation):
call count, prompt/completion/total tokens, average and p95 latency, and
error count and rate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return usageOnValidation(cmd, runReport(cmd, report.KindMetrics))
	},
}

var reportPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Show the prompts sent at a workflow step",
	Long: `Show the chat messages sent to the model at a named workflow step.

By default the first matching generation of each trace is shown. Use --index
to pick another occurrence, or --all for every occurrence.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return usageOnValidation(cmd, runReport(cmd, report.KindPrompts))
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportMetricsCmd)
	reportCmd.AddCommand(reportPromptsCmd)

	for _, c := range []struct {
		cmd  *cobra.Command
		kind report.Kind
	}{{reportMetricsCmd, report.KindMetrics}, {reportPromptsCmd, report.KindPrompts}} {
		c.cmd.Flags().String("trace-id", "", "Report on a single trace")
		c.cmd.Flags().Int("limit", report.DefaultLimit(c.kind), fmt.Sprintf("Maximum number of traces (1-%d)", report.MaxLimit))
		c.cmd.Flags().Int("hours", 0, "Only traces from the last N hours (0 for no window)")
		c.cmd.Flags().StringP("format", "f", string(report.FormatText), "Output format: text, json, yaml, markdown, table")
		c.cmd.Flags().StringP("output", "o", "", "Also write the report to this file")
		c.cmd.Flags().BoolP("interactive", "i", false, "Open the report in a scrollable pager")
	}

	reportPromptsCmd.Flags().String("step", prompts.DefaultStep, "Name of the generation observation to extract")
	reportPromptsCmd.Flags().String("within", "", "Only match steps nested under an observation with this name")
	reportPromptsCmd.Flags().Int("index", 0, "Occurrence of the step within each trace (0-based)")
	reportPromptsCmd.Flags().Bool("all", false, "Show every occurrence of the step")
}

// queryFromFlags reads the report flags into a query
func queryFromFlags(cmd *cobra.Command, kind report.Kind) report.Query {
	flags := cmd.Flags()
	q := report.Query{Kind: kind}
	q.TraceID, _ = flags.GetString("trace-id")
	q.Limit, _ = flags.GetInt("limit")
	q.Hours, _ = flags.GetInt("hours")

	if kind == report.KindPrompts {
		q.Step.Name, _ = flags.GetString("step")
		q.Step.Within, _ = flags.GetString("within")
		q.All, _ = flags.GetBool("all")
		if flags.Changed("index") {
			index, _ := flags.GetInt("index")
			q.Index = &index
		}
	}
	return q
}

func runReport(cmd *cobra.Command, kind report.Kind) error {
	q := queryFromFlags(cmd, kind)
	if err := q.Validate(); err != nil {
		return err
	}

	formatName, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return utils.NewValidationError("format", err.Error())
	}

	settings, client, err := newClient()
	if err != nil {
		return err
	}
	q.Credentials = settings.Credentials

	log := GetLogger()
	log.Debug().Str("report", string(kind)).Str("host", client.BaseURL()).Int("limit", q.Limit).Msg("running report")

	rep, err := report.NewResolver(client, log).Run(cmd.Context(), q)
	if err != nil {
		return backendError(settings.Host, err)
	}

	stderr := cmd.ErrOrStderr()
	if rep.Skipped {
		fmt.Fprintln(stderr, color.YellowString("Set %s", strings.Join(report.RequiredEnv, ", ")))
	}
	if n := len(rep.Warnings); n > 0 {
		fmt.Fprintln(stderr, color.YellowString("%d warning(s), see the Warnings section of the report", n))
	}

	var buf bytes.Buffer
	if err := report.NewFormatter(format).Render(rep, &buf); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := utils.WriteFile(output, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintln(stderr, color.GreenString("Report written to %s", output))
	}

	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive && utils.IsTerminal(os.Stdout) {
		return tui.RunPager(fmt.Sprintf("tracelens report %s", kind), buf.String())
	}

	_, err = io.Copy(cmd.OutOrStdout(), &buf)
	return err
}
