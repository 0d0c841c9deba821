package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerToLevels(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{"info level", false, false},
		{"debug level", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerTo(&buf, tt.debug)
			logger.Debug().Msg("debug-line")
			logger.Info().Str("trace_id", "t1").Msg("info-line")

			out := buf.String()
			if got := strings.Contains(out, "debug-line"); got != tt.wantDebug {
				t.Errorf("debug line present = %v, want %v", got, tt.wantDebug)
			}
			if !strings.Contains(out, "info-line") || !strings.Contains(out, "trace_id=t1") {
				t.Errorf("info line missing or malformed: %q", out)
			}
		})
	}
}
