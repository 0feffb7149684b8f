// Package history remembers when each profile was last started so shell
// completion can offer recent profiles first.
package history

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/treykane/oo/internal/fileutil"
)

type store struct {
	LastUsed map[string]int64 `json:"last_used"`
}

// Store is the history file.
type Store struct {
	Path string
}

func NewStore(path string) *Store { return &Store{Path: path} }

// Touch records a successful start of profile.
func (s *Store) Touch(profile string) error {
	if s == nil || s.Path == "" {
		return nil
	}
	st, err := s.load()
	if err != nil {
		return err
	}
	st.LastUsed[profile] = time.Now().Unix()
	return s.save(st)
}

// LastUsed returns last successful start timestamps by profile.
func (s *Store) LastUsed() (map[string]int64, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	return st.LastUsed, nil
}

// SortRecent returns a new slice sorted by recent activity (desc), then name.
func SortRecent(names []string, lastUsed map[string]int64) []string {
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := lastUsed[out[i]], lastUsed[out[j]]
		if ti != tj {
			return ti > tj
		}
		return out[i] < out[j]
	})
	return out
}

func (s *Store) load() (store, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return store{LastUsed: map[string]int64{}}, nil
		}
		return store{}, err
	}
	var st store
	if err := json.Unmarshal(b, &st); err != nil {
		return store{LastUsed: map[string]int64{}}, nil
	}
	if st.LastUsed == nil {
		st.LastUsed = map[string]int64{}
	}
	return st, nil
}

func (s *Store) save(st store) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteAtomicFile(s.Path, b, 0o600)
}
