package applog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenTruncatesAndMirrorsWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "tunnels.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("stale line from last run\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var console bytes.Buffer
	l, err := Open(path, "debug", &console)
	if err != nil {
		t.Fatal(err)
	}
	l.Debug().Str("profile", "foo").Msg("loading state")
	l.Warn().Str("profile", "foo").Msg("removed corrupt state")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(b)
	if strings.Contains(content, "stale line") {
		t.Fatal("expected log file to be truncated")
	}
	if !strings.Contains(content, "loading state") || !strings.Contains(content, "removed corrupt state") {
		t.Fatalf("missing records in log file: %s", content)
	}
	if strings.Contains(console.String(), "loading state") {
		t.Fatalf("debug records must not reach the console: %s", console.String())
	}
	if !strings.Contains(console.String(), "removed corrupt state") {
		t.Fatalf("expected warning on console, got %q", console.String())
	}
	if l.Path() != path {
		t.Fatalf("unexpected path %s", l.Path())
	}
}

func TestNopLog(t *testing.T) {
	l := Nop()
	l.Info().Msg("dropped")
	if l.Path() != "" {
		t.Fatal("nop log has no file")
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAppendKeepsPreviousRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunnels.log")
	if err := os.WriteFile(path, []byte("{\"message\":\"autossh exited\"}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	l, err := Append(path, "info", nil)
	if err != nil {
		t.Fatal(err)
	}
	l.Info().Msg("completion")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "autossh exited") || !strings.Contains(string(b), "completion") {
		t.Fatalf("expected both records, got %s", b)
	}
}
