// Package state persists one record per tunnel instance.
//
// Each tunnel owns exactly one JSON file named after the instance, so writes
// never contend with other tunnels. Every mutation re-serializes the whole
// record immediately; nothing is buffered in memory between invocations.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/fileutil"
	"github.com/treykane/oo/internal/model"
	"github.com/treykane/oo/internal/proc"
)

const ext = ".json"

var (
	// ErrNotFound means no record exists for the requested name.
	ErrNotFound = errors.New("tunnel state not found")
	// ErrCorrupt means a record exists but cannot be decoded.
	ErrCorrupt = errors.New("corrupt tunnel state")
)

// Store is the directory holding the records.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store { return &Store{Dir: dir} }

// Path is the backing file of name.
func (s *Store) Path(name string) string { return filepath.Join(s.Dir, name+ext) }

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.New(apperr.KindUsage, "a tunnel needs a profile name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return apperr.Newf(apperr.KindUsage, "invalid tunnel name %q", name)
	}
	return nil
}

// Load reads the record of name. A missing file yields ErrNotFound rather
// than an empty record.
func (s *Store) Load(name string) (*State, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	rec, err := Decode(s.Path(name))
	if err != nil {
		return nil, err
	}
	return &State{store: s, rec: rec}, nil
}

// Create builds a fresh record for name and persists it right away.
func (s *Store) Create(name string, rec model.Record) (*State, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	rec.Version = model.RecordVersion
	rec.Name = name
	if rec.Profile == "" {
		rec.Profile = name
	}
	st := &State{store: s, rec: rec}
	if err := st.save(); err != nil {
		return nil, err
	}
	return st, nil
}

// Entry is one file found in the store directory.
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
}

// List returns the record files ordered by modification time, oldest first,
// with ties broken by name. A missing directory is an empty store.
func (s *Store) List() ([]Entry, error) {
	dirents, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		n := d.Name()
		if d.IsDir() || !strings.HasSuffix(n, ext) || strings.HasPrefix(n, ".") {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:    strings.TrimSuffix(n, ext),
			Path:    filepath.Join(s.Dir, n),
			ModTime: info.ModTime(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.Before(out[j].ModTime)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Open wraps an entry returned by List.
func (s *Store) Open(e Entry) (*State, error) {
	rec, err := Decode(e.Path)
	if err != nil {
		return nil, err
	}
	if rec.Name != e.Name {
		return nil, fmt.Errorf("%w: %s holds record for %q", ErrCorrupt, e.Path, rec.Name)
	}
	return &State{store: s, rec: rec}, nil
}

// Decode reads and validates a record file.
func Decode(path string) (model.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), ext))
		}
		return model.Record{}, err
	}
	var rec model.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return model.Record{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if err := rec.Validate(); err != nil {
		return model.Record{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return rec, nil
}

// SalvagePIDs extracts whatever process ids a corrupt record still exposes.
func SalvagePIDs(path string) []int {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var loose struct {
		PID        json.RawMessage   `json:"pid"`
		ClientPIDs []json.RawMessage `json:"client_pids"`
	}
	if json.Unmarshal(b, &loose) != nil {
		return nil
	}
	var out []int
	add := func(raw json.RawMessage) {
		var n int
		if json.Unmarshal(raw, &n) == nil && n > 0 {
			out = append(out, n)
		}
	}
	add(loose.PID)
	for _, raw := range loose.ClientPIDs {
		add(raw)
	}
	return out
}

// State is a loaded record bound to its backing file.
type State struct {
	store *Store
	rec   model.Record
}

func (s *State) Name() string         { return s.rec.Name }
func (s *State) Profile() string      { return s.rec.Profile }
func (s *State) Kind() model.Kind     { return s.rec.Kind }
func (s *State) PID() int             { return s.rec.PID }
func (s *State) JumpHost() string     { return s.rec.JumpHost }
func (s *State) ForwardPort() int     { return s.rec.ForwardPort }
func (s *State) Path() string         { return s.store.Path(s.rec.Name) }
func (s *State) Record() model.Record { return cloneRecord(s.rec) }
func (s *State) Forwards() []model.Forward {
	return append([]model.Forward(nil), s.rec.Forwards...)
}

// BrowserProfile returns the assigned browser profile name and path.
func (s *State) BrowserProfile() (name, path string) {
	return s.rec.BrowserProfileName, s.rec.BrowserProfilePath
}

func (s *State) SetPID(pid int) error {
	return s.Update(func(r *model.Record) { r.PID = pid })
}

func (s *State) SetJumpHost(host string) error {
	return s.Update(func(r *model.Record) { r.JumpHost = host })
}

func (s *State) SetForwardPort(port int) error {
	return s.Update(func(r *model.Record) { r.ForwardPort = port })
}

func (s *State) SetForwards(fwds []model.Forward) error {
	return s.Update(func(r *model.Record) { r.Forwards = append([]model.Forward(nil), fwds...) })
}

func (s *State) SetBrowserProfile(name, path string) error {
	return s.Update(func(r *model.Record) {
		r.BrowserProfileName = name
		r.BrowserProfilePath = path
	})
}

func (s *State) AddClientPID(pid int) error {
	return s.Update(func(r *model.Record) { r.ClientPIDs = append(r.ClientPIDs, pid) })
}

// Update applies fn and writes the whole record back. On a failed write the
// in-memory record is left unchanged.
func (s *State) Update(fn func(*model.Record)) error {
	prev := cloneRecord(s.rec)
	fn(&s.rec)
	s.rec.Version = model.RecordVersion
	if err := s.save(); err != nil {
		s.rec = prev
		return err
	}
	return nil
}

func (s *State) save() error {
	b, err := json.MarshalIndent(s.rec, "", "  ")
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomicFile(s.Path(), b, 0o600); err != nil {
		return fmt.Errorf("persist tunnel %s: %w", s.rec.Name, err)
	}
	return nil
}

// IsRunning reports whether the forwarding process is alive.
func (s *State) IsRunning(p proc.Probe) bool {
	return s.rec.PID > 0 && p.Alive(s.rec.PID)
}

// Stop terminates every tracked process that is still alive and deletes the
// record. Processes that are already gone are not an error.
func (s *State) Stop(t proc.Table) error {
	var errs []error
	for _, pid := range s.rec.PIDs() {
		if !t.Alive(pid) {
			continue
		}
		if err := t.Terminate(pid); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Delete(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Delete removes the backing file. Deleting twice is fine.
func (s *State) Delete() error {
	return fileutil.RemoveIfExists(s.Path())
}

func cloneRecord(r model.Record) model.Record {
	r.Forwards = append([]model.Forward(nil), r.Forwards...)
	r.ClientPIDs = append([]int(nil), r.ClientPIDs...)
	return r
}
