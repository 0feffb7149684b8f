// Package appconfig manages application configuration and runtime file paths.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/treykane/oo/internal/util"
	"gopkg.in/yaml.v3"
)

const appName = "oo"

// Paths holds every on-disk location used by one invocation. It is resolved
// once and passed to the components that need it.
type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// StateDir holds one state file per running tunnel.
func (p Paths) StateDir() string { return filepath.Join(p.DataDir, "tunnels") }

// ProfilesDir holds the pool of cloned browser profiles.
func (p Paths) ProfilesDir() string { return filepath.Join(p.DataDir, "profiles") }

// LogFile captures subprocess stderr and the invocation log.
func (p Paths) LogFile() string { return filepath.Join(p.CacheDir, "tunnels.log") }

func (p Paths) EventsFile() string  { return filepath.Join(p.DataDir, "events.jsonl") }
func (p Paths) HistoryFile() string { return filepath.Join(p.DataDir, "history.json") }
func (p Paths) ConfigFile() string  { return filepath.Join(p.ConfigDir, "config.yaml") }

// TunnelsFile and TunnelsLocalFile hold the tunnel profiles; the local file
// overrides the shared one.
func (p Paths) TunnelsFile() string      { return filepath.Join(p.ConfigDir, "tunnels.toml") }
func (p Paths) TunnelsLocalFile() string { return filepath.Join(p.ConfigDir, "tunnels_local.toml") }

// DefaultSSHConfig is the ssh_config handed to autossh with -F when the user
// did not configure one.
func (p Paths) DefaultSSHConfig() string { return filepath.Join(p.ConfigDir, "ssh_config") }

// ResolvePaths applies the XDG base directory rules.
func ResolvePaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve home: %w", err)
	}
	return Paths{
		ConfigDir: xdgDir("XDG_CONFIG_HOME", filepath.Join(home, ".config")),
		DataDir:   xdgDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share")),
		CacheDir:  xdgDir("XDG_CACHE_HOME", filepath.Join(home, ".cache")),
	}, nil
}

func xdgDir(env, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" && filepath.IsAbs(v) {
		return filepath.Join(v, appName)
	}
	return filepath.Join(fallback, appName)
}

// EnsureDirs creates the data, state and cache directories.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.ConfigDir, p.StateDir(), p.CacheDir} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// TunnelsConfig controls how forwarding processes are spawned.
type TunnelsConfig struct {
	SSHConfig           string `yaml:"ssh_config"`
	Autossh             string `yaml:"autossh"`
	ServerAliveInterval int    `yaml:"server_alive_interval"`
	ServerAliveCountMax int    `yaml:"server_alive_count_max"`
	StartupAttempts     int    `yaml:"startup_attempts"`
	StartupIntervalMS   int    `yaml:"startup_interval_ms"`
}

// StartupInterval is StartupIntervalMS as a duration.
func (t TunnelsConfig) StartupInterval() time.Duration {
	return time.Duration(t.StartupIntervalMS) * time.Millisecond
}

// BrowserConfig controls browser profile automation for SOCKS tunnels.
type BrowserConfig struct {
	Binary       string `yaml:"binary"`
	MultiProfile bool   `yaml:"multi_profile"`
	Profile      string `yaml:"profile"`
	ProxyHost    string `yaml:"proxy_host"`

	// FirefoxDir overrides where the canonical profile is searched for.
	FirefoxDir string `yaml:"firefox_dir"`
}

// UIConfig contains dashboard display settings.
type UIConfig struct {
	RefreshSeconds int `yaml:"refresh_seconds"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Config holds application-level configuration.
type Config struct {
	Tunnels TunnelsConfig `yaml:"tunnels"`
	Browser BrowserConfig `yaml:"browser"`
	UI      UIConfig      `yaml:"ui"`
	Log     LogConfig     `yaml:"log"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Tunnels: TunnelsConfig{
			Autossh:             "autossh",
			ServerAliveInterval: 3,
			ServerAliveCountMax: 30,
			StartupAttempts:     util.DefaultStartupAttempts,
			StartupIntervalMS:   int(util.DefaultStartupInterval / time.Millisecond),
		},
		Browser: BrowserConfig{
			Profile:   "Tunnels",
			ProxyHost: util.LoopbackHost,
		},
		UI:  UIConfig{RefreshSeconds: util.DefaultRefreshSeconds},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config.yaml from the config directory.
// If the file doesn't exist, creates it with defaults.
func Load(p Paths) (Config, error) {
	if err := os.MkdirAll(p.ConfigDir, 0o700); err != nil {
		return Config{}, err
	}
	path := p.ConfigFile()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(p, cfg); err != nil {
				return cfg, err
			}
			return normalize(p, cfg), nil
		}
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return normalize(p, cfg), nil
}

func normalize(p Paths, cfg Config) Config {
	def := Default()
	t := &cfg.Tunnels
	t.Autossh = util.DefaultString(t.Autossh, def.Tunnels.Autossh)
	if t.ServerAliveInterval <= 0 {
		t.ServerAliveInterval = def.Tunnels.ServerAliveInterval
	}
	if t.ServerAliveCountMax <= 0 {
		t.ServerAliveCountMax = def.Tunnels.ServerAliveCountMax
	}
	if t.StartupAttempts <= 0 {
		t.StartupAttempts = def.Tunnels.StartupAttempts
	}
	if t.StartupIntervalMS <= 0 {
		t.StartupIntervalMS = def.Tunnels.StartupIntervalMS
	}
	t.SSHConfig = expandHome(strings.TrimSpace(t.SSHConfig))
	if t.SSHConfig == "" {
		if _, err := os.Stat(p.DefaultSSHConfig()); err == nil {
			t.SSHConfig = p.DefaultSSHConfig()
		}
	}

	b := &cfg.Browser
	b.Binary = expandHome(strings.TrimSpace(b.Binary))
	b.FirefoxDir = expandHome(strings.TrimSpace(b.FirefoxDir))
	b.Profile = util.DefaultString(b.Profile, def.Browser.Profile)
	b.ProxyHost = util.DefaultString(b.ProxyHost, def.Browser.ProxyHost)

	if cfg.UI.RefreshSeconds <= 0 {
		cfg.UI.RefreshSeconds = def.UI.RefreshSeconds
	}
	cfg.Log.Level = strings.ToLower(util.DefaultString(cfg.Log.Level, def.Log.Level))
	return cfg
}

// Save writes config to config.yaml.
func Save(p Paths, cfg Config) error {
	if err := os.MkdirAll(p.ConfigDir, 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(p.ConfigFile(), b, 0o600)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
