package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SSHConfig is the subset of an OpenSSH client config oo cares about: which
// Host patterns it declares.
type SSHConfig struct {
	Path     string
	Blocks   [][]string
	Warnings []string
}

// ReadSSHConfig parses path and expands Include directives. A missing root
// file is an empty config with a warning.
func ReadSSHConfig(path string) (SSHConfig, error) {
	cfg := SSHConfig{Path: path}
	if err := cfg.read(path, map[string]bool{}, 0); err != nil {
		return SSHConfig{}, err
	}
	return cfg, nil
}

func (c *SSHConfig) read(path string, seen map[string]bool, depth int) error {
	if depth > 16 {
		return fmt.Errorf("include depth exceeded at %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if seen[abs] {
		c.Warnings = append(c.Warnings, "include cycle skipped: "+abs)
		return nil
	}
	seen[abs] = true

	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.Warnings = append(c.Warnings, "ssh config not found: "+abs)
			return nil
		}
		return fmt.Errorf("open %s: %w", abs, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := stripInlineComment(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := splitDirective(line)
		if !ok {
			c.Warnings = append(c.Warnings, fmt.Sprintf("%s:%d invalid directive", abs, lineNo))
			continue
		}
		switch strings.ToLower(key) {
		case "host":
			c.Blocks = append(c.Blocks, strings.Fields(value))
		case "include":
			for _, pattern := range strings.Fields(value) {
				inc := expandHome(pattern)
				if !filepath.IsAbs(inc) {
					inc = filepath.Join(filepath.Dir(abs), inc)
				}
				matches, _ := filepath.Glob(inc)
				sort.Strings(matches)
				for _, m := range matches {
					if err := c.read(m, seen, depth+1); err != nil {
						c.Warnings = append(c.Warnings, fmt.Sprintf("include %s failed: %v", m, err))
					}
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", abs, err)
	}
	return nil
}

// Declares reports whether a Host block other than a bare "*" matches host.
func (c SSHConfig) Declares(host string) bool {
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	for _, patterns := range c.Blocks {
		if len(patterns) == 1 && patterns[0] == "*" {
			continue
		}
		if matchesAny(host, patterns) {
			return true
		}
	}
	return false
}

// Aliases lists the concrete (non-wildcard) Host names in declaration order.
func (c SSHConfig) Aliases() []string {
	var out []string
	seen := map[string]bool{}
	for _, patterns := range c.Blocks {
		for _, p := range patterns {
			if p == "" || strings.HasPrefix(p, "!") || strings.ContainsAny(p, "*?") || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func matchesAny(host string, patterns []string) bool {
	matched := false
	for _, p := range patterns {
		negated := strings.HasPrefix(p, "!")
		ok, err := filepath.Match(strings.TrimPrefix(p, "!"), host)
		if err != nil || !ok {
			continue
		}
		if negated {
			return false
		}
		matched = true
	}
	return matched
}

func splitDirective(line string) (key, value string, ok bool) {
	if i := strings.IndexAny(line, " \t="); i > 0 {
		key = strings.TrimSpace(line[:i])
		value = strings.TrimSpace(strings.TrimLeft(line[i:], " \t="))
		return key, value, key != "" && value != ""
	}
	return "", "", false
}

func stripInlineComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return strings.TrimSpace(line[:i])
			}
		}
	}
	return strings.TrimSpace(line)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
