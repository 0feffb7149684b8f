package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/fileutil"
)

// StarterProfile is the example written by `oo tunnels init`.
func StarterProfile(name, jumpHost string) Profile {
	return Profile{
		Name:     name,
		JumpHost: jumpHost,
		URLs:     []string{"http://intranet.example.com"},
		RDP:      map[string]Host{"desktop": {Host: "192.168.1.1", Port: 3389}},
		VNC:      map[string]Host{"console": {Host: "192.168.2.1", Port: 5900}},
		SSH:      map[string]Host{"build": {Host: "192.168.3.1", Port: 22}},
	}
}

// EncodeProfiles renders profiles as tunnels.toml content.
func EncodeProfiles(profiles ...Profile) ([]byte, error) {
	doc := map[string]any{}
	for _, p := range profiles {
		t := map[string]any{"jump_host": p.JumpHost}
		if p.ForwardPort > 0 {
			t["forward_port"] = p.ForwardPort
		}
		if len(p.URLs) > 0 {
			t["urls"] = p.URLs
		}
		for section, hosts := range map[string]map[string]Host{SectionRDP: p.RDP, SectionVNC: p.VNC, SectionSSH: p.SSH} {
			if len(hosts) == 0 {
				continue
			}
			sec := map[string]any{}
			for name, h := range hosts {
				e := map[string]any{"host": h.Host}
				if h.Port != 0 && h.Port != DefaultPort(section) {
					e["port"] = h.Port
				}
				if h.LocalPort != 0 {
					e["local_port"] = h.LocalPort
				}
				sec[name] = e
			}
			t[section] = sec
		}
		doc[p.Name] = t
	}
	return toml.Marshal(doc)
}

// FormatHostBlock renders an ssh_config Host block for a jump host with the
// keepalive settings autossh relies on.
func FormatHostBlock(alias, user string, port int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host %s\n", alias)
	if user != "" {
		fmt.Fprintf(&b, "  User %s\n", user)
	}
	if port != 0 && port != 22 {
		fmt.Fprintf(&b, "  Port %d\n", port)
	}
	b.WriteString("  ServerAliveInterval 3\n")
	b.WriteString("  ServerAliveCountMax 30\n")
	b.WriteString("  ExitOnForwardFailure yes\n")
	return b.String()
}

// InitOptions drives Init.
type InitOptions struct {
	TunnelsFile   string
	SSHConfigFile string
	Profile       string
	JumpHost      string
	JumpUser      string
	JumpPort      int
	Force         bool
}

// Init writes a starter tunnels.toml and ssh_config. Existing files are kept
// unless Force is set, in which case they are first copied to <file>.bak.
// It returns the files written.
func Init(opts InitOptions) ([]string, error) {
	if strings.TrimSpace(opts.Profile) == "" || strings.TrimSpace(opts.JumpHost) == "" {
		return nil, apperr.New(apperr.KindUsage, "init needs a profile name and a jump host")
	}
	profiles, err := EncodeProfiles(StarterProfile(opts.Profile, opts.JumpHost))
	if err != nil {
		return nil, err
	}
	files := []struct {
		path    string
		content []byte
	}{
		{opts.TunnelsFile, profiles},
		{opts.SSHConfigFile, []byte(FormatHostBlock(opts.JumpHost, opts.JumpUser, opts.JumpPort))},
	}
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil && !opts.Force {
			return nil, apperr.Newf(apperr.KindConflict, "%s already exists, use --force to replace it", f.path)
		}
	}
	var written []string
	for _, f := range files {
		if err := backup(f.path); err != nil {
			return written, err
		}
		if err := fileutil.WriteAtomicFile(f.path, f.content, 0o600); err != nil {
			return written, err
		}
		written = append(written, f.path)
	}
	return written, nil
}

func backup(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return fileutil.WriteAtomicFile(path+".bak", b, 0o600)
}
