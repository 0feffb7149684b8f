package state

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/model"
	"github.com/treykane/oo/internal/proc"
)

func TestLoadMissingIsNotFound(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Load("foo")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	created, err := s.Create("foo", model.Record{
		Kind:        model.KindSocks,
		JumpHost:    "foo.example.com",
		ForwardPort: 2080,
	})
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := s.Load("foo")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(created.Record(), loaded.Record()) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", created.Record(), loaded.Record())
	}
	if loaded.Profile() != "foo" || loaded.Record().Version != model.RecordVersion {
		t.Fatalf("unexpected record %+v", loaded.Record())
	}
}

func TestWritesAreImmediate(t *testing.T) {
	s := NewStore(t.TempDir())
	st, err := s.Create("foo", model.Record{Kind: model.KindSocks})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SetPID(7); err != nil {
		t.Fatal(err)
	}
	rec, err := Decode(st.Path())
	if err != nil {
		t.Fatal(err)
	}
	if rec.PID != 7 {
		t.Fatalf("expected pid 7 on disk, got %d", rec.PID)
	}
	if err := st.SetBrowserProfile("a1", "/p/a1"); err != nil {
		t.Fatal(err)
	}
	if err := st.AddClientPID(9); err != nil {
		t.Fatal(err)
	}
	rec, _ = Decode(st.Path())
	if rec.BrowserProfileName != "a1" || rec.BrowserProfilePath != "/p/a1" || len(rec.ClientPIDs) != 1 {
		t.Fatalf("unexpected record on disk %+v", rec)
	}
}

func TestEmptyNameIsUsageError(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Create(" ", model.Record{Kind: model.KindSocks})
	if !apperr.Is(err, apperr.KindUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := s.Load("../escape"); !apperr.Is(err, apperr.KindUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"garbage.json": "{not json",
		"version.json": `{"version": 99, "name": "version", "kind": "socks"}`,
		"kind.json":    `{"version": 1, "name": "kind", "kind": "ftp", "pid": 12}`,
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Decode(path); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
	if got := SalvagePIDs(filepath.Join(dir, "kind.json")); !reflect.DeepEqual(got, []int{12}) {
		t.Fatalf("expected salvaged pid 12, got %v", got)
	}
	if got := SalvagePIDs(filepath.Join(dir, "garbage.json")); got != nil {
		t.Fatalf("nothing to salvage from garbage, got %v", got)
	}
}

func TestListOrdersByModTime(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, n := range []string{"b", "a", "c"} {
		if _, err := s.Create(n, model.Record{Kind: model.KindSocks}); err != nil {
			t.Fatal(err)
		}
	}
	base := time.Now().Add(-time.Hour)
	times := map[string]time.Time{"c": base, "b": base.Add(time.Minute), "a": base.Add(time.Minute)}
	for n, ts := range times {
		if err := os.Chtimes(s.Path(n), ts, ts); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name)
	}
	if !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestListMissingDir(t *testing.T) {
	entries, err := NewStore(filepath.Join(t.TempDir(), "nope")).List()
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty list, got %v %v", entries, err)
	}
}

func TestStopTerminatesAndDeletes(t *testing.T) {
	s := NewStore(t.TempDir())
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep not runnable: %v", err)
	}
	done := make(chan struct{})
	go func() { _ = cmd.Wait(); close(done) }()

	st, err := s.Create("foo", model.Record{Kind: model.KindSocks, PID: cmd.Process.Pid, ClientPIDs: []int{999999}})
	if err != nil {
		t.Fatal(err)
	}
	table := proc.System()
	if !st.IsRunning(table) {
		t.Fatal("expected running state")
	}
	if err := st.Stop(table); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("process survived stop")
	}
	if _, err := os.Stat(st.Path()); !os.IsNotExist(err) {
		t.Fatal("expected state file removed")
	}
	if err := st.Delete(); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
}
