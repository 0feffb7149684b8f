package events

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreAppendReadAndFilters(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "events.jsonl"))

	base := time.Now().Add(-2 * time.Hour).UTC()
	seed := []Event{
		{Timestamp: base, Tunnel: "foo", Profile: "foo", Type: TypeStartRequested},
		{Timestamp: base.Add(10 * time.Minute), Tunnel: "foo", Profile: "foo", Type: TypeStarted},
		{Timestamp: base.Add(20 * time.Minute), Tunnel: "foo.rdp.first_rdp", Profile: "foo", Type: TypeStartFailed},
	}
	for _, evt := range seed {
		if err := s.Append(evt); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := s.Read(Query{})
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}

	tunnelOnly, err := s.Read(Query{Tunnel: "foo"})
	if err != nil {
		t.Fatalf("read tunnel: %v", err)
	}
	if len(tunnelOnly) != 2 {
		t.Fatalf("expected 2 foo events, got %d", len(tunnelOnly))
	}

	limited, err := s.Read(Query{Limit: 1})
	if err != nil {
		t.Fatalf("read limit: %v", err)
	}
	if len(limited) != 1 || limited[0].Type != TypeStartFailed {
		t.Fatalf("unexpected limited result: %+v", limited)
	}

	since, err := s.Read(Query{Since: base.Add(15 * time.Minute), Profile: "foo"})
	if err != nil {
		t.Fatalf("read since: %v", err)
	}
	if len(since) != 1 || since[0].Tunnel != "foo.rdp.first_rdp" {
		t.Fatalf("unexpected since result: %+v", since)
	}
}

func TestReadMissingJournal(t *testing.T) {
	got, err := NewStore(filepath.Join(t.TempDir(), "none.jsonl")).Read(Query{})
	if err != nil || got != nil {
		t.Fatalf("expected empty journal, got %v %v", got, err)
	}
}

func TestNilStoreAppendIsNoop(t *testing.T) {
	var s *Store
	if err := s.Append(Event{Type: TypeStopped}); err != nil {
		t.Fatal(err)
	}
}
