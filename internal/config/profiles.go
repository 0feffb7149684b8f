// Package config reads the tunnel profile configuration and the OpenSSH
// client config those profiles point at.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/util"
)

// ErrConfigNotFound means a profile or host is absent from the configuration.
var ErrConfigNotFound = errors.New("configuration not found")

// Host sections nested under a profile.
const (
	SectionRDP = "rdp"
	SectionVNC = "vnc"
	SectionSSH = "ssh"
)

// DefaultPort is the remote port used when a host entry omits one.
func DefaultPort(section string) int {
	switch section {
	case SectionRDP:
		return 3389
	case SectionVNC:
		return 5900
	default:
		return 22
	}
}

// Host is one named destination reachable through a profile's jump host.
type Host struct {
	Name      string `mapstructure:"-"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	LocalPort int    `mapstructure:"local_port"`
}

// Profile is one [name] table of tunnels.toml.
type Profile struct {
	Name        string          `mapstructure:"-"`
	JumpHost    string          `mapstructure:"jump_host"`
	ForwardHost string          `mapstructure:"forward_host"`
	ForwardPort int             `mapstructure:"forward_port"`
	URLs        []string        `mapstructure:"urls"`
	RDP         map[string]Host `mapstructure:"rdp"`
	VNC         map[string]Host `mapstructure:"vnc"`
	SSH         map[string]Host `mapstructure:"ssh"`
}

func (p Profile) section(name string) map[string]Host {
	switch name {
	case SectionRDP:
		return p.RDP
	case SectionVNC:
		return p.VNC
	case SectionSSH:
		return p.SSH
	}
	return nil
}

// Host resolves a named host of a section, filling in the default port.
func (p Profile) Host(section, name string) (Host, error) {
	h, ok := p.section(section)[strings.ToLower(name)]
	if !ok || strings.TrimSpace(h.Host) == "" {
		return Host{}, apperr.Wrap(apperr.KindConfig,
			fmt.Errorf("%w: %s host %s in profile %s", ErrConfigNotFound, section, name, p.Name),
			fmt.Sprintf("%s host %s could not be found in profile %s", section, name, p.Name))
	}
	h.Name = strings.ToLower(name)
	if h.Port == 0 {
		h.Port = DefaultPort(section)
	}
	return h, nil
}

// HostNames lists the host names of a section in sorted order.
func (p Profile) HostNames(section string) []string {
	m := p.section(section)
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Profiles is the merged view of tunnels.toml and tunnels_local.toml.
type Profiles struct {
	byName map[string]Profile
	files  []string
}

// Load reads each existing file in order, later files overriding earlier
// ones. Missing files are skipped; a malformed file is a configuration error.
func Load(files ...string) (*Profiles, error) {
	// Profile names may contain dots, so viper must not split keys on them.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigType("toml")
	var read []string
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, apperr.Wrap(apperr.KindConfig, err, "cannot read "+f)
		}
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			return nil, apperr.Wrap(apperr.KindConfig, err, fmt.Sprintf("malformed configuration file %s: %v", f, err))
		}
		read = append(read, f)
	}

	out := &Profiles{byName: map[string]Profile{}, files: read}
	for name, raw := range v.AllSettings() {
		if _, ok := raw.(map[string]any); !ok {
			continue
		}
		var p Profile
		if err := v.UnmarshalKey(name, &p); err != nil {
			return nil, apperr.Wrap(apperr.KindConfig, err, fmt.Sprintf("invalid profile %s: %v", name, err))
		}
		p.Name = name
		p.ForwardHost = util.DefaultString(p.ForwardHost, util.LoopbackHost)
		out.byName[name] = p
	}
	return out, nil
}

// Files lists the configuration files that were actually read.
func (p *Profiles) Files() []string { return append([]string(nil), p.files...) }

// Lookup returns the named profile. Names are case-insensitive.
func (p *Profiles) Lookup(name string) (Profile, error) {
	prof, ok := p.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, apperr.Wrap(apperr.KindConfig,
			fmt.Errorf("%w: profile %s", ErrConfigNotFound, name),
			fmt.Sprintf("%s could not be found in your configuration file", name))
	}
	return prof, nil
}

// Names lists profiles, optionally only those defining hosts in section.
func (p *Profiles) Names(section string) []string {
	out := make([]string, 0, len(p.byName))
	for n, prof := range p.byName {
		if section != "" && len(prof.section(section)) == 0 {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
