package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("%q: unexpected error state %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("json", slog.LevelDebug, &buf)
	l.Debug("can_tx", "id", 0x123)
	if !strings.Contains(buf.String(), `"msg":"can_tx"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestSetIgnoresNil(t *testing.T) {
	before := L()
	Set(nil)
	if L() != before {
		t.Fatal("Set(nil) replaced the logger")
	}
}

func TestNewFormat(t *testing.T) {
	for format, prefix := range map[string]string{"JSON": "{", "text": "time=", "": "time="} {
		var buf bytes.Buffer
		New(format, slog.LevelInfo, &buf).Info("node_open")
		if !strings.HasPrefix(buf.String(), prefix) {
			t.Errorf("format %q: output %q", format, buf.String())
		}
	}
}
