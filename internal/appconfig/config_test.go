package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testPaths(t *testing.T) Paths {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	p, err := ResolvePaths()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestResolvePathsUsesXDG(t *testing.T) {
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)
	t.Setenv("XDG_CACHE_HOME", "relative/ignored")
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := ResolvePaths()
	if err != nil {
		t.Fatal(err)
	}
	if p.StateDir() != filepath.Join(data, "oo", "tunnels") {
		t.Fatalf("unexpected state dir %s", p.StateDir())
	}
	if p.LogFile() != filepath.Join(home, ".cache", "oo", "tunnels.log") {
		t.Fatalf("relative XDG values must be ignored, got %s", p.LogFile())
	}
}

func TestLoad_CreatesDefaults(t *testing.T) {
	p := testPaths(t)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tunnels.Autossh != "autossh" {
		t.Fatalf("unexpected autossh binary %q", cfg.Tunnels.Autossh)
	}
	if cfg.Tunnels.StartupAttempts != 20 || cfg.Tunnels.StartupInterval() != 150*time.Millisecond {
		t.Fatalf("unexpected startup poll settings: %+v", cfg.Tunnels)
	}
	if cfg.Browser.Profile != "Tunnels" || cfg.Browser.MultiProfile {
		t.Fatalf("unexpected browser defaults: %+v", cfg.Browser)
	}
	if _, err := os.Stat(p.ConfigFile()); err != nil {
		t.Fatalf("expected config.yaml to be written: %v", err)
	}
	if cfg.Tunnels.SSHConfig != "" {
		t.Fatalf("no ssh_config exists, got %q", cfg.Tunnels.SSHConfig)
	}
}

func TestLoad_NormalizesValues(t *testing.T) {
	p := testPaths(t)
	if err := os.MkdirAll(p.ConfigDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.DefaultSSHConfig(), []byte("Host *\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	content := strings.Join([]string{
		"tunnels:",
		"  autossh: \"\"",
		"  startup_attempts: -4",
		"  startup_interval_ms: 0",
		"browser:",
		"  multi_profile: true",
		"log:",
		"  level: DEBUG",
		"",
	}, "\n")
	if err := os.WriteFile(p.ConfigFile(), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tunnels.Autossh != "autossh" || cfg.Tunnels.StartupAttempts != 20 || cfg.Tunnels.StartupIntervalMS != 150 {
		t.Fatalf("expected normalized tunnels settings, got %+v", cfg.Tunnels)
	}
	if !cfg.Browser.MultiProfile {
		t.Fatal("expected multi_profile to be kept")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected lower-cased level, got %q", cfg.Log.Level)
	}
	if cfg.Tunnels.SSHConfig != p.DefaultSSHConfig() {
		t.Fatalf("expected default ssh_config to be picked up, got %q", cfg.Tunnels.SSHConfig)
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	p := testPaths(t)
	if err := os.MkdirAll(p.ConfigDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.ConfigFile(), []byte("tunnels: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected parse error")
	}
}
