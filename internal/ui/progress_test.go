package ui

import (
	"bytes"
	"testing"
)

func TestBarIsSilentOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	b := NewBar(&buf, "Starting foo", 4)
	b.Advance()
	b.Advance()
	if b.Percent() != 0.5 {
		t.Fatalf("expected half done, got %v", b.Percent())
	}
	b.Finish(true)
	if b.Percent() != 1 {
		t.Fatalf("finish should complete the bar, got %v", b.Percent())
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for a non-terminal writer, got %q", buf.String())
	}
}

func TestBarClampsSteps(t *testing.T) {
	b := NewBar(&bytes.Buffer{}, "x", 0)
	b.Advance()
	b.Advance()
	if b.Percent() != 1 {
		t.Fatalf("expected clamp at 1, got %v", b.Percent())
	}
}
