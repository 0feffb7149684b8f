// Package browser manages the isolated Firefox profiles SOCKS tunnels drive.
package browser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/treykane/oo/internal/fileutil"
	"github.com/treykane/oo/internal/platform"
)

// cloneSkip are profile entries that are either locks or caches and must not
// be shared between a parent and its clone.
var cloneSkip = map[string]bool{
	"cache2":        true,
	"lock":          true,
	".parentlock":   true,
	"places.sqlite": true,
	"startupCache":  true,
	"storage":       true,
}

// Profile is one browser profile directory.
type Profile struct {
	Name string
	Path string
}

// Manager creates, clones and removes profiles in the pool directory.
type Manager struct {
	Dir        string
	FirefoxDir string
	Suffix     string
	Log        zerolog.Logger
}

// DefaultFirefoxDir is where Firefox keeps its profiles on sys.
func DefaultFirefoxDir(sys platform.OS, home, user string) string {
	switch sys {
	case platform.WSL:
		return filepath.Join("/mnt/c/Users", user, "AppData/Roaming/Mozilla/Firefox/Profiles")
	case platform.Darwin:
		return filepath.Join(home, "Library/Application Support/Firefox/Profiles")
	default:
		return filepath.Join(home, ".mozilla/firefox")
	}
}

// Create makes an empty profile with a fresh name.
func (m *Manager) Create() (Profile, error) {
	p := m.newProfile()
	if err := os.MkdirAll(p.Path, 0o700); err != nil {
		return Profile{}, fmt.Errorf("create browser profile: %w", err)
	}
	m.Log.Debug().Str("profile", p.Name).Msg("browser profile created")
	return p, nil
}

// Clone copies parent into a new pool profile, leaving out locks and caches.
func (m *Manager) Clone(parent string) (Profile, error) {
	info, err := os.Stat(parent)
	if err != nil {
		return Profile{}, fmt.Errorf("clone browser profile: %w", err)
	}
	if !info.IsDir() {
		return Profile{}, fmt.Errorf("clone browser profile: %s is not a directory", parent)
	}
	p := m.newProfile()
	err = filepath.WalkDir(parent, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		if rel != "." && cloneSkip[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		dst := filepath.Join(p.Path, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(dst, 0o700)
		case d.Type().IsRegular():
			return copyFile(path, dst)
		default:
			return nil
		}
	})
	if err != nil {
		_ = os.RemoveAll(p.Path)
		return Profile{}, fmt.Errorf("clone browser profile %s: %w", parent, err)
	}
	m.Log.Debug().Str("profile", p.Name).Str("parent", parent).Msg("browser profile cloned")
	return p, nil
}

func (m *Manager) newProfile() Profile {
	name := uuid.NewString()
	return Profile{Name: name, Path: filepath.Join(m.Dir, name)}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// List returns the pool profiles sorted by name.
func (m *Manager) List() ([]Profile, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Profile
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, Profile{Name: e.Name(), Path: filepath.Join(m.Dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Find returns the pool profile with the given name.
func (m *Manager) Find(name string) (Profile, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return Profile{}, fmt.Errorf("invalid browser profile name %q", name)
	}
	p := Profile{Name: name, Path: filepath.Join(m.Dir, name)}
	if info, err := os.Stat(p.Path); err != nil || !info.IsDir() {
		return Profile{}, fmt.Errorf("browser profile %s does not exist", name)
	}
	return p, nil
}

// Canonical finds the single user-maintained profile named "*.<Suffix>".
func (m *Manager) Canonical() (Profile, error) {
	matches, err := filepath.Glob(filepath.Join(m.FirefoxDir, "*."+m.Suffix))
	if err != nil {
		return Profile{}, err
	}
	sort.Strings(matches)
	for _, path := range matches {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return Profile{Name: filepath.Base(path), Path: path}, nil
		}
	}
	return Profile{}, fmt.Errorf("no *.%s profile in %s", m.Suffix, m.FirefoxDir)
}

// Destroy removes a pool profile. Profiles outside the pool directory, such
// as the canonical one, are never removed.
func (m *Manager) Destroy(p Profile) error {
	rel, err := filepath.Rel(m.Dir, p.Path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return fmt.Errorf("refusing to remove %s: not a pool profile", p.Path)
	}
	if err := os.RemoveAll(p.Path); err != nil {
		return err
	}
	m.Log.Debug().Str("profile", p.Name).Msg("browser profile removed")
	return nil
}

// proxyPrefs are the user.js preferences oo owns.
func proxyPrefs(host string, port int) [][2]string {
	return [][2]string{
		{"network.proxy.socks", fmt.Sprintf("%q", host)},
		{"network.proxy.socks_port", fmt.Sprint(port)},
		{"network.proxy.socks_remote_dns", "true"},
		{"network.proxy.type", "1"},
		{"network.trr.blocklist_cleanup_done", "true"},
		{"network.trr.mode", "5"},
	}
}

// SetProxy points the profile at a local SOCKS proxy by rewriting the
// preferences oo owns in user.js. Other user preferences are preserved.
func (m *Manager) SetProxy(p Profile, host string, port int) error {
	path := filepath.Join(p.Path, "user.js")
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	prefs := proxyPrefs(host, port)
	owned := func(line string) bool {
		for _, kv := range prefs {
			if strings.Contains(line, `"`+kv[0]+`"`) {
				return true
			}
		}
		return false
	}

	var buf bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(existing))
	for sc.Scan() {
		if line := sc.Text(); !owned(line) {
			buf.WriteString(line + "\n")
		}
	}
	for _, kv := range prefs {
		fmt.Fprintf(&buf, "user_pref(%q, %s);\n", kv[0], kv[1])
	}
	return fileutil.WriteAtomicFile(path, buf.Bytes(), 0o600)
}
