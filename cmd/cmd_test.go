package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenticgokit/tracelens/internal/report"
	"github.com/agenticgokit/tracelens/internal/utils"
)

// resetFlags restores every flag of the command tree to its default
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI in an isolated home and working directory
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	for _, name := range []string{"LANGFUSE_HOST", "LANGFUSE_BASE_URL", "LANGFUSE_BASEURL", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY", "LANGFUSE_PROJECT_ID"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func fakeLangfuse(t *testing.T, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/public/traces", func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"t1","name":"agent.run","timestamp":"2026-01-01T00:00:00Z"}],
			"meta":{"page":1,"limit":50,"totalItems":1,"totalPages":1}}`))
	})
	mux.HandleFunc("GET /api/public/traces/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "t1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"t1","name":"agent.run","timestamp":"2026-01-01T00:00:00Z"}`))
	})
	mux.HandleFunc("GET /api/public/observations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"root","type":"SPAN","name":"workflow.act","startTime":"2026-01-01T00:00:00Z","endTime":"2026-01-01T00:00:01Z"},
			{"id":"g1","type":"GENERATION","name":"llm.chat","parentObservationId":"root","model":"gpt-4o",
			 "startTime":"2026-01-01T00:00:00Z","endTime":"2026-01-01T00:00:00.200Z",
			 "usage":{"input":12,"output":3,"total":15},
			 "input":[{"role":"user","content":"Capital of France?"}],"output":"Paris"}
		],"meta":{"page":1,"limit":100,"totalItems":2,"totalPages":1}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestReportSkipsWithoutCredentials(t *testing.T) {
	stdout, _, err := execute(t, "report", "metrics", "--format", "json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, true, doc["skipped"])
	assert.Equal(t, report.SkipMessage, doc["message"])
}

func TestReportMetrics(t *testing.T) {
	srv := fakeLangfuse(t, http.StatusOK)
	stdout, _, err := execute(t, "report", "metrics", "--host", srv.URL, "--public-key", "pk", "--secret-key", "sk")
	require.NoError(t, err)

	assert.Contains(t, stdout, "=== Langfuse Generation Metrics ===")
	assert.Contains(t, stdout, "gpt-4o")
}

func TestReportPromptsToFile(t *testing.T) {
	srv := fakeLangfuse(t, http.StatusOK)
	out := filepath.Join(t.TempDir(), "prompts.md")
	stdout, _, err := execute(t, "report", "prompts", "--host", srv.URL, "--public-key", "pk", "--secret-key", "sk",
		"--format", "markdown", "--output", out)
	require.NoError(t, err)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, stdout, string(written))
	assert.Contains(t, stdout, "Capital of France?")
}

func TestReportRejectedCredentials(t *testing.T) {
	srv := fakeLangfuse(t, http.StatusUnauthorized)
	_, _, err := execute(t, "report", "metrics", "--host", srv.URL, "--public-key", "pk", "--secret-key", "bad")
	var uerr *utils.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Contains(t, uerr.Message, "rejected")
}

func TestReportInvalidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"limit", []string{"report", "metrics", "--limit", "0"}, "limit"},
		{"hours", []string{"report", "metrics", "--hours=-1"}, "hours"},
		{"index with all", []string{"report", "prompts", "--index", "1", "--all"}, "index"},
		{"format", []string{"report", "metrics", "--format", "xml"}, "format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			var verr *utils.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestUsageOnlyForValidationErrors(t *testing.T) {
	srv := fakeLangfuse(t, http.StatusUnauthorized)
	stdout, stderr, err := execute(t, "report", "metrics", "--host", srv.URL, "--public-key", "pk", "--secret-key", "bad")
	require.Error(t, err)
	assert.NotContains(t, stdout+stderr, "Usage:")

	stdout, stderr, err = execute(t, "report", "metrics", "--limit", "0")
	require.True(t, utils.IsValidationError(err))
	assert.Contains(t, stdout+stderr, "Usage:")

	stdout, stderr, err = execute(t, "trace", "tree", "--trace-id", "t1", "--format", "svg")
	require.True(t, utils.IsValidationError(err))
	assert.Contains(t, stdout+stderr, "Usage:")
}

func TestTraceList(t *testing.T) {
	srv := fakeLangfuse(t, http.StatusOK)
	stdout, _, err := execute(t, "trace", "list", "--host", srv.URL, "--public-key", "pk", "--secret-key", "sk")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"ID", "NAME", "STARTED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"t1", "agent.run", "2026-01-01T00:00:00Z"}, strings.Fields(lines[1]))
}

func TestTraceTree(t *testing.T) {
	srv := fakeLangfuse(t, http.StatusOK)
	stdout, _, err := execute(t, "trace", "tree", "--trace-id", "t1", "--host", srv.URL, "--public-key", "pk", "--secret-key", "sk")
	require.NoError(t, err)

	assert.Contains(t, stdout, "trace t1 (agent.run): 2 observation(s)")
	assert.Contains(t, stdout, "  - [GENERATION] llm.chat (200ms, gpt-4o, tokens 12/3)")

	stdout, _, err = execute(t, "trace", "tree", "--trace-id", "nope", "--host", srv.URL, "--public-key", "pk", "--secret-key", "sk")
	require.NoError(t, err)
	assert.Equal(t, "Trace nope not found.\n", stdout)
}

func TestTraceListSkipsWithoutCredentials(t *testing.T) {
	stdout, _, err := execute(t, "trace", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, report.SkipMessage)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracelens.toml")
	_, _, err := execute(t, "config", "init", path, "--host", "http://langfuse:3000", "--public-key", "pk", "--secret-key", "sk")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `host = "http://langfuse:3000"`)
	assert.NotContains(t, string(content), "secret_key =")

	_, _, err = execute(t, "config", "init", path)
	var uerr *utils.UserError
	require.ErrorAs(t, err, &uerr)

	_, _, err = execute(t, "config", "init", path, "--force", "--with-keys", "--public-key", "pk", "--secret-key", "sk-secret")
	require.NoError(t, err)
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `secret_key = "sk-secret"`)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Version:     "+Version)
}
