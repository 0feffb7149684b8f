// Package events keeps an append-only journal of tunnel lifecycle changes.
package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/treykane/oo/internal/model"
)

// Event types written by the tunnel manager.
const (
	TypeStartRequested = "start_requested"
	TypeStarted        = "started"
	TypeStartFailed    = "start_failed"
	TypeClientLaunched = "client_launched"
	TypeStopped        = "stopped"
	TypeReaped         = "reaped"
	TypeCorrupt        = "corrupt_state"
)

// Event is one line of events.jsonl.
type Event struct {
	Timestamp time.Time  `json:"timestamp"`
	Tunnel    string     `json:"tunnel,omitempty"`
	Profile   string     `json:"profile,omitempty"`
	Kind      model.Kind `json:"kind,omitempty"`
	Type      string     `json:"event_type"`
	Message   string     `json:"message,omitempty"`
	PID       int        `json:"pid,omitempty"`
}

// Query controls event filtering and bounded reads.
type Query struct {
	Profile string
	Tunnel  string
	Type    string
	Since   time.Time
	Limit   int
}

// Store provides append/read access to the journal file.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Append writes a single event as one JSON line.
func (s *Store) Append(evt Event) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// Read returns events in append order, filtered by query. With a limit only
// the most recent matches are kept.
func (s *Store) Read(q Query) ([]Event, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			continue
		}
		if !matches(evt, q) {
			continue
		}
		out = append(out, evt)
		if q.Limit > 0 && len(out) > q.Limit {
			out = out[len(out)-q.Limit:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}

func matches(evt Event, q Query) bool {
	if strings.TrimSpace(q.Profile) != "" && evt.Profile != q.Profile {
		return false
	}
	if strings.TrimSpace(q.Tunnel) != "" && evt.Tunnel != q.Tunnel {
		return false
	}
	if strings.TrimSpace(q.Type) != "" && evt.Type != q.Type {
		return false
	}
	if !q.Since.IsZero() && evt.Timestamp.Before(q.Since) {
		return false
	}
	return true
}
