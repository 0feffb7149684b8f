package model

import (
	"fmt"
	"strings"
)

// Kind is the closed set of tunnel flavours.
type Kind string

const (
	KindSocks Kind = "socks"
	KindRDP   Kind = "rdp"
	KindVNC   Kind = "vnc"
)

// Kinds lists every kind in display order.
func Kinds() []Kind { return []Kind{KindSocks, KindRDP, KindVNC} }

// ParseKind accepts any casing of a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSocks, KindRDP, KindVNC:
		return k, nil
	default:
		return "", fmt.Errorf("unknown tunnel kind %q", s)
	}
}

// Label is the upper-case name used in tables.
func (k Kind) Label() string { return strings.ToUpper(string(k)) }

// Forward is one local TCP forward of a desktop tunnel.
type Forward struct {
	Host       string `json:"host"`
	LocalPort  int    `json:"local_port"`
	RemoteHost string `json:"remote_host"`
	RemotePort int    `json:"remote_port"`
}

// Spec renders the -L argument: localPort:remoteHost:remotePort.
func (f Forward) Spec() string {
	return fmt.Sprintf("%d:%s:%d", f.LocalPort, f.RemoteHost, f.RemotePort)
}

// RecordVersion is bumped whenever Record changes incompatibly. Records with
// another version are treated as corrupt.
const RecordVersion = 1

// Record is the persisted runtime state of one tunnel instance. It holds data
// only, never process handles.
type Record struct {
	Version            int       `json:"version"`
	Name               string    `json:"name"`
	Profile            string    `json:"profile"`
	Kind               Kind      `json:"kind"`
	PID                int       `json:"pid,omitempty"`
	JumpHost           string    `json:"jump_host,omitempty"`
	ForwardPort        int       `json:"forward_port,omitempty"`
	Forwards           []Forward `json:"forwards,omitempty"`
	BrowserProfileName string    `json:"browser_profile_name,omitempty"`
	BrowserProfilePath string    `json:"browser_profile_path,omitempty"`
	ClientPIDs         []int     `json:"client_pids,omitempty"`
}

// Validate checks the fields every decoded record must carry.
func (r Record) Validate() error {
	if r.Version != RecordVersion {
		return fmt.Errorf("unsupported record version %d", r.Version)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("record has no name")
	}
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	if r.PID < 0 {
		return fmt.Errorf("record has negative pid %d", r.PID)
	}
	return nil
}

// Ports lists the local ports the tunnel listens on.
func (r Record) Ports() []int {
	if len(r.Forwards) == 0 {
		if r.ForwardPort > 0 {
			return []int{r.ForwardPort}
		}
		return nil
	}
	out := make([]int, 0, len(r.Forwards))
	for _, f := range r.Forwards {
		out = append(out, f.LocalPort)
	}
	return out
}

// PIDs lists every process the record tracks, forwarding process first.
func (r Record) PIDs() []int {
	var out []int
	if r.PID > 0 {
		out = append(out, r.PID)
	}
	for _, p := range r.ClientPIDs {
		if p > 0 {
			out = append(out, p)
		}
	}
	return out
}
