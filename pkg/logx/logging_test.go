package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWriterLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "test"))

	log.Debug("hidden")
	log.Info("shown", Int("n", 3), Hex("hr", 0x80070005), Err(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if m["message"] != "shown" || m["comp"] != "test" || m["hr"] != "0x80070005" || m["err"] != "boom" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["n"].(float64) != 3 {
		t.Fatalf("n = %v", m["n"])
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	l.Info("nothing happens")
	if Nop().IsZero() {
		t.Fatalf("Nop logger is not zero")
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("warning", LevelInfo) != LevelWarn {
		t.Fatalf("warning should map to warn")
	}
	if parseLevel("bogus", LevelDebug) != LevelDebug {
		t.Fatalf("unknown level should use default")
	}
}
