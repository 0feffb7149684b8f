// Package doctor runs local diagnostics: missing binaries, platform support,
// file permissions and the consistency of the tunnel configuration.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/treykane/oo/internal/appconfig"
	"github.com/treykane/oo/internal/browser"
	"github.com/treykane/oo/internal/config"
	"github.com/treykane/oo/internal/model"
	"github.com/treykane/oo/internal/platform"
	"github.com/treykane/oo/internal/util"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Issue struct {
	Severity       Severity `json:"severity"`
	Check          string   `json:"check"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

// HasHigh reports whether any issue would stop tunnels from starting.
func (r Report) HasHigh() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// Input is what the checks inspect. LookPath and Browsers are optional.
type Input struct {
	Paths    appconfig.Paths
	Config   appconfig.Config
	Platform platform.OS
	Home     string
	LookPath func(name string) (string, bool)
	Browsers *browser.Manager
}

// Run executes every check and returns issues ordered by severity.
func Run(in Input) (Report, error) {
	if in.LookPath == nil {
		in.LookPath = func(name string) (string, bool) { return platform.LookPath(name) }
	}
	var issues []Issue
	issues = append(issues, binaryIssues(in)...)
	issues = append(issues, permissionIssues(in)...)
	issues = append(issues, profileIssues(in)...)
	issues = append(issues, browserIssues(in)...)

	sort.Slice(issues, func(i, j int) bool {
		ri := severityRank(issues[i].Severity)
		rj := severityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].Check != issues[j].Check {
			return issues[i].Check < issues[j].Check
		}
		if issues[i].Target != issues[j].Target {
			return issues[i].Target < issues[j].Target
		}
		return issues[i].Message < issues[j].Message
	})
	return Report{Issues: issues}, nil
}

func binaryIssues(in Input) []Issue {
	var issues []Issue
	missing := func(sev Severity, bin, rec string) {
		if _, ok := in.LookPath(bin); ok {
			return
		}
		issues = append(issues, Issue{
			Severity:       sev,
			Check:          "binary",
			Target:         bin,
			Message:        bin + " is not installed, or is not in the path",
			Recommendation: rec,
		})
	}
	missing(SeverityHigh, in.Config.Tunnels.Autossh, "install autossh; every tunnel is run through it")
	missing(SeverityMedium, "ssh", "install the OpenSSH client")

	if in.Platform == platform.Unsupported {
		issues = append(issues, Issue{
			Severity:       SeverityMedium,
			Check:          "platform",
			Target:         "os",
			Message:        "browser and desktop client automation is not supported on this system",
			Recommendation: "connect clients manually to the forwarded local ports",
		})
		return issues
	}

	if in.Config.Browser.Binary != "" {
		missing(SeverityLow, in.Config.Browser.Binary, "fix browser.binary in config.yaml")
	} else if candidates, err := platform.BrowserCandidates(in.Platform); err == nil {
		if !anyFound(in.LookPath, candidates) {
			issues = append(issues, Issue{
				Severity:       SeverityLow,
				Check:          "binary",
				Target:         candidates[0],
				Message:        "firefox is not installed, or is not in the path",
				Recommendation: "install Firefox or set browser.binary to open SOCKS tunnel urls",
			})
		}
	}
	for _, kind := range []model.Kind{model.KindRDP, model.KindVNC} {
		action, err := platform.DesktopClient(in.Platform, kind, 1)
		if err != nil || action.Binary() == "" {
			continue
		}
		missing(SeverityLow, action.Binary(), fmt.Sprintf("install %s to open %s tunnels", action.Binary(), kind.Label()))
	}
	return issues
}

func anyFound(look func(string) (string, bool), candidates []string) bool {
	for _, c := range candidates {
		if _, ok := look(c); ok {
			return true
		}
	}
	return false
}

func permissionIssues(in Input) []Issue {
	var issues []Issue
	p := in.Paths
	if in.Home != "" {
		checkPathPerm(&issues, filepath.Join(in.Home, ".ssh"), 0o700, false)
	}
	checkPathPerm(&issues, p.ConfigDir, 0o700, false)
	checkPathPerm(&issues, p.StateDir(), 0o700, false)
	checkPathPerm(&issues, p.ConfigFile(), 0o600, true)
	checkPathPerm(&issues, p.TunnelsFile(), 0o600, true)
	checkPathPerm(&issues, p.TunnelsLocalFile(), 0o600, true)
	if in.Config.Tunnels.SSHConfig != "" {
		checkPathPerm(&issues, in.Config.Tunnels.SSHConfig, 0o600, true)
	}
	return issues
}

func checkPathPerm(issues *[]Issue, path string, max os.FileMode, isFile bool) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		*issues = append(*issues, Issue{
			Severity:       SeverityLow,
			Check:          "permissions",
			Target:         path,
			Message:        fmt.Sprintf("unable to inspect permissions: %v", err),
			Recommendation: "verify path and permissions manually",
		})
		return
	}
	mode := st.Mode().Perm()
	if mode&^max != 0 {
		kind := "directory"
		if isFile {
			kind = "file"
		}
		*issues = append(*issues, Issue{
			Severity:       SeverityMedium,
			Check:          "permissions",
			Target:         path,
			Message:        fmt.Sprintf("%s permissions are too broad (%#o)", kind, mode),
			Recommendation: fmt.Sprintf("restrict permissions to %#o or tighter", max),
		})
	}
}

func profileIssues(in Input) []Issue {
	files := []string{in.Paths.TunnelsFile(), in.Paths.TunnelsLocalFile()}
	profiles, err := config.Load(files...)
	if err != nil {
		return []Issue{{
			Severity:       SeverityHigh,
			Check:          "profile-config",
			Target:         in.Paths.TunnelsFile(),
			Message:        err.Error(),
			Recommendation: "fix the TOML syntax of the tunnel profiles",
		}}
	}
	if len(profiles.Files()) == 0 {
		return []Issue{{
			Severity:       SeverityMedium,
			Check:          "profile-config",
			Target:         in.Paths.TunnelsFile(),
			Message:        "no tunnel profiles configured",
			Recommendation: "run `oo tunnels init` to write a starter configuration",
		}}
	}

	var issues []Issue
	sshPath := in.Config.Tunnels.SSHConfig
	if sshPath == "" && in.Home != "" {
		sshPath = filepath.Join(in.Home, ".ssh", "config")
	}
	var (
		ssh   config.SSHConfig
		sshOK bool
	)
	if sshPath != "" {
		var err error
		if ssh, err = config.ReadSSHConfig(sshPath); err != nil {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "ssh-config",
				Target:         sshPath,
				Message:        err.Error(),
				Recommendation: "fix the ssh_config handed to autossh",
			})
		} else {
			sshOK = true
		}
	}
	for _, w := range ssh.Warnings {
		issues = append(issues, Issue{
			Severity:       SeverityLow,
			Check:          "ssh-config",
			Target:         sshPath,
			Message:        w,
			Recommendation: "fix malformed or missing ssh_config includes",
		})
	}

	binds := map[int][]string{}
	for _, name := range profiles.Names("") {
		prof, err := profiles.Lookup(name)
		if err != nil {
			continue
		}
		switch {
		case prof.JumpHost == "":
			issues = append(issues, Issue{
				Severity:       SeverityHigh,
				Check:          "jump-host",
				Target:         name,
				Message:        "profile has no jump_host",
				Recommendation: "set jump_host in the profile",
			})
		case sshOK && !ssh.Declares(prof.JumpHost):
			issues = append(issues, Issue{
				Severity:       SeverityLow,
				Check:          "jump-host",
				Target:         name,
				Message:        fmt.Sprintf("jump host %s is not declared in %s", prof.JumpHost, sshPath),
				Recommendation: "add a Host block for it so keepalive settings apply",
			})
		}
		if prof.ForwardPort != 0 {
			if err := util.ValidatePort(prof.ForwardPort); err != nil {
				issues = append(issues, Issue{
					Severity:       SeverityHigh,
					Check:          "forward-port",
					Target:         name,
					Message:        err.Error(),
					Recommendation: "use a port between 1 and 65535",
				})
			} else {
				binds[prof.ForwardPort] = append(binds[prof.ForwardPort], name)
			}
		}
		for _, section := range []string{config.SectionRDP, config.SectionVNC} {
			for _, host := range prof.HostNames(section) {
				if h, err := prof.Host(section, host); err == nil && h.LocalPort != 0 {
					binds[h.LocalPort] = append(binds[h.LocalPort], fmt.Sprintf("%s.%s.%s", name, section, host))
				}
			}
		}
	}
	issues = append(issues, duplicateBindIssues(binds)...)
	return issues
}

func duplicateBindIssues(binds map[int][]string) []Issue {
	var issues []Issue
	for port, refs := range binds {
		if len(refs) < 2 {
			continue
		}
		sort.Strings(refs)
		issues = append(issues, Issue{
			Severity:       SeverityMedium,
			Check:          "duplicate-local-bind",
			Target:         fmt.Sprintf("%s:%d", util.LoopbackHost, port),
			Message:        fmt.Sprintf("local port is configured by %d entries: %v", len(refs), refs),
			Recommendation: "use unique local ports, or leave them unset to allocate one at start",
		})
	}
	return issues
}

func browserIssues(in Input) []Issue {
	if in.Browsers == nil {
		return nil
	}
	if in.Config.Browser.MultiProfile {
		list, err := in.Browsers.List()
		if err == nil && len(list) == 0 {
			return []Issue{{
				Severity:       SeverityLow,
				Check:          "browser-profile",
				Target:         in.Browsers.Dir,
				Message:        "multi_profile is enabled but the profile pool is empty",
				Recommendation: "run `oo tunnels profile new` or `oo tunnels profile clone <parent>`",
			}}
		}
		return nil
	}
	if _, err := in.Browsers.Canonical(); err != nil {
		return []Issue{{
			Severity:       SeverityLow,
			Check:          "browser-profile",
			Target:         in.Browsers.FirefoxDir,
			Message:        fmt.Sprintf("no browser profile named *.%s found", in.Browsers.Suffix),
			Recommendation: "create it in Firefox or set browser.multi_profile to true",
		}}
	}
	return nil
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}
