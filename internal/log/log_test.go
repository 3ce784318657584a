package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, test := range tests {
		if got := test.level.String(); got != test.want {
			t.Errorf("Level(%d).String() = %q; want %q", test.level, got, test.want)
		}
	}
}

func TestSimpleLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewSimpleLogger(&buf, LevelWarn)

	l.Debug("debug message")
	l.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("messages below level should be discarded, got %q", buf.String())
	}

	l.Warn("warn message")
	l.Error("error message")
	out := buf.String()
	if !strings.Contains(out, "WARN warn message") {
		t.Errorf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "ERROR error message") {
		t.Errorf("missing error line in %q", out)
	}
}

func TestSimpleLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewSimpleLogger(&buf, LevelDebug)

	l.Info("saving vault",
		String("path", "/tmp/vault.cb"),
		Int("keys", 3),
		Uint64("bytes", 512),
		Err(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{"path=/tmp/vault.cb", "keys=3", "bytes=512", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestSetLoggerNil(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewSimpleLogger(&buf, LevelDebug))
	Info("hello")
	if buf.Len() == 0 {
		t.Error("expected output after SetLogger")
	}

	SetLogger(nil)
	buf.Reset()
	Info("discarded")
	if buf.Len() != 0 {
		t.Errorf("null logger should discard output, got %q", buf.String())
	}
}
