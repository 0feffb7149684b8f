package browser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/platform"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return &Manager{
		Dir:        filepath.Join(t.TempDir(), "profiles"),
		FirefoxDir: t.TempDir(),
		Suffix:     "Tunnels",
		Log:        zerolog.Nop(),
	}
}

func TestCloneSkipsLocksAndCaches(t *testing.T) {
	m := testManager(t)
	parent := t.TempDir()
	for _, f := range []string{"prefs.js", "lock", "places.sqlite", "extensions/addon.xpi"} {
		path := filepath.Join(parent, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(f), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	for _, d := range []string{"cache2/entries", "storage/default"} {
		if err := os.MkdirAll(filepath.Join(parent, d), 0o700); err != nil {
			t.Fatal(err)
		}
	}

	p, err := m.Clone(parent)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"prefs.js", "extensions/addon.xpi"} {
		if _, err := os.Stat(filepath.Join(p.Path, want)); err != nil {
			t.Fatalf("expected %s to be cloned: %v", want, err)
		}
	}
	for _, skipped := range []string{"lock", "places.sqlite", "cache2", "storage"} {
		if _, err := os.Stat(filepath.Join(p.Path, skipped)); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be skipped", skipped)
		}
	}
	if filepath.Dir(p.Path) != m.Dir {
		t.Fatalf("clone must live in the pool dir, got %s", p.Path)
	}
}

func TestCreateListFindDestroy(t *testing.T) {
	m := testManager(t)
	a, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}
	if a.Name == b.Name {
		t.Fatal("profile names must be unique")
	}
	list, err := m.List()
	if err != nil || len(list) != 2 {
		t.Fatalf("expected two profiles, got %v %v", list, err)
	}
	found, err := m.Find(a.Name)
	if err != nil || found.Path != a.Path {
		t.Fatalf("unexpected find result %+v %v", found, err)
	}
	if err := m.Destroy(a); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Find(a.Name); err == nil {
		t.Fatal("destroyed profile must be gone")
	}
	outside := Profile{Name: "x", Path: m.FirefoxDir}
	if err := m.Destroy(outside); err == nil {
		t.Fatal("must refuse to remove profiles outside the pool")
	}
}

func TestSetProxyRewritesOwnedPrefs(t *testing.T) {
	m := testManager(t)
	p, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}
	userJS := filepath.Join(p.Path, "user.js")
	if err := os.WriteFile(userJS, []byte("user_pref(\"browser.startup.page\", 3);\nuser_pref(\"network.proxy.socks_port\", 1);\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := m.SetProxy(p, "127.0.0.1", 2080); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(userJS)
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	for _, want := range []string{
		`user_pref("browser.startup.page", 3);`,
		`user_pref("network.proxy.socks", "127.0.0.1");`,
		`user_pref("network.proxy.socks_port", 2080);`,
		`user_pref("network.proxy.socks_remote_dns", true);`,
		`user_pref("network.proxy.type", 1);`,
		`user_pref("network.trr.mode", 5);`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("user.js missing %s:\n%s", want, got)
		}
	}
	if strings.Count(got, "network.proxy.socks_port") != 1 {
		t.Fatalf("stale socks_port preference kept:\n%s", got)
	}
}

func TestAllocatorMultiProfile(t *testing.T) {
	m := testManager(t)
	a := Allocator{Profiles: m, MultiProfile: true}
	_, err := a.NextAvailable(nil)
	if !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("empty pool must be unavailable, got %v", err)
	}
	if !strings.Contains(apperr.UserMessage(err, false), "profile new") {
		t.Fatalf("multi-profile message should suggest creating a profile: %v", err)
	}

	p1, _ := m.Create()
	p2, _ := m.Create()
	got, err := a.NextAvailable([]string{p1.Path})
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != p2.Path {
		t.Fatalf("expected the free profile %s, got %s", p2.Path, got.Path)
	}
	if _, err := a.NextAvailable([]string{p1.Path, p2.Path}); !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("exhausted pool must be unavailable, got %v", err)
	}
}

func TestAllocatorSingleProfile(t *testing.T) {
	m := testManager(t)
	canonical := filepath.Join(m.FirefoxDir, "abcd1234.Tunnels")
	if err := os.MkdirAll(canonical, 0o700); err != nil {
		t.Fatal(err)
	}
	a := Allocator{Profiles: m}
	got, err := a.NextAvailable(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != canonical {
		t.Fatalf("expected canonical profile, got %s", got.Path)
	}
	_, err = a.NextAvailable([]string{canonical})
	if !errors.Is(err, ErrProfileUnavailable) || !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !strings.Contains(apperr.UserMessage(err, false), "multi_profile") {
		t.Fatalf("single-profile message should mention multi_profile: %v", err)
	}
}

func TestAllocatorSingleProfileMissing(t *testing.T) {
	a := Allocator{Profiles: testManager(t)}
	if _, err := a.NextAvailable(nil); !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDefaultFirefoxDir(t *testing.T) {
	if got := DefaultFirefoxDir(platform.WSL, "/home/me", "me"); got != "/mnt/c/Users/me/AppData/Roaming/Mozilla/Firefox/Profiles" {
		t.Fatalf("unexpected WSL dir %s", got)
	}
	if got := DefaultFirefoxDir(platform.Linux, "/home/me", "me"); got != "/home/me/.mozilla/firefox" {
		t.Fatalf("unexpected linux dir %s", got)
	}
}
