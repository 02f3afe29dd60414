package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json", false)

	logger.Info().Msg("hidden")
	logger.Warn().Str("user", "u1").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("expected info line to be filtered")
	}
	if !strings.Contains(out, `"user":"u1"`) || !strings.Contains(out, "shown") {
		t.Errorf("expected structured warn line, got %q", out)
	}
}

func TestNewVerboseForcesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "error", "json", true)
	logger.Debug().Msg("debugging")
	if !strings.Contains(buf.String(), "debugging") {
		t.Error("expected debug line with verbose logger")
	}
}
