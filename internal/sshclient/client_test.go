package sshclient

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/treykane/oo/internal/model"
)

func testClient() *Client {
	return New(Options{SSHConfig: "/my/ssh/config/path"})
}

func TestSocksArgv(t *testing.T) {
	got := testClient().SocksArgv(2080, "foo.example.com")
	want := []string{
		"autossh", "-N", "-M", "0", "-D", "2080",
		"-o", "ServerAliveInterval=3", "-o", "ServerAliveCountMax=30",
		"-F", "/my/ssh/config/path", "foo.example.com",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argv mismatch\nwant=%v\n got=%v", want, got)
	}
}

func TestForwardArgv(t *testing.T) {
	tests := []struct {
		fwd  model.Forward
		spec string
	}{
		{model.Forward{LocalPort: 60001, RemoteHost: "192.168.1.1", RemotePort: 3389}, "60001:192.168.1.1:3389"},
		{model.Forward{LocalPort: 60002, RemoteHost: "192.168.1.2", RemotePort: 3389}, "60002:192.168.1.2:3389"},
		{model.Forward{LocalPort: 60011, RemoteHost: "192.168.2.1", RemotePort: 5900}, "60011:192.168.2.1:5900"},
		{model.Forward{LocalPort: 60012, RemoteHost: "192.168.2.2", RemotePort: 5900}, "60012:192.168.2.2:5900"},
	}
	for _, tt := range tests {
		got := testClient().ForwardArgv([]model.Forward{tt.fwd}, "foo.example.com")
		want := []string{
			"autossh", "-N", "-M", "0", "-L", tt.spec,
			"-o", "ServerAliveInterval=3", "-o", "ServerAliveCountMax=30",
			"-F", "/my/ssh/config/path", "foo.example.com",
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("argv mismatch\nwant=%v\n got=%v", want, got)
		}
	}
}

func TestForwardArgvWithoutSSHConfig(t *testing.T) {
	got := New(Options{}).ForwardArgv([]model.Forward{
		{LocalPort: 1, RemoteHost: "a", RemotePort: 2},
		{LocalPort: 3, RemoteHost: "b", RemotePort: 4},
	}, "jump")
	want := []string{"autossh", "-N", "-M", "0", "-L", "1:a:2", "-L", "3:b:4",
		"-o", "ServerAliveInterval=3", "-o", "ServerAliveCountMax=30", "jump"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argv mismatch\nwant=%v\n got=%v", want, got)
	}
}

func TestSSHArgv(t *testing.T) {
	c := New(Options{SSHConfig: "cfg"})
	if got := c.SSHArgv("foo.example.com", "", 0); !reflect.DeepEqual(got, []string{"ssh", "-F", "cfg", "foo.example.com"}) {
		t.Fatalf("unexpected jump argv %v", got)
	}
	want := []string{"ssh", "-F", "cfg", "-J", "foo.example.com", "-p", "2222", "192.168.2.2"}
	if got := c.SSHArgv("foo.example.com", "192.168.2.2", 2222); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected hop argv %v", got)
	}
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		in   string
		host string
		port int
		err  bool
	}{
		{"192.168.3.1", "192.168.3.1", 22, false},
		{"192.168.3.1:2323", "192.168.3.1", 2323, false},
		{"192.168.3.1:nope", "", 0, true},
		{"192.168.3.1:70000", "", 0, true},
	}
	for _, tt := range tests {
		h, p, err := SplitHostPort(tt.in)
		if (err != nil) != tt.err || h != tt.host || p != tt.port {
			t.Fatalf("SplitHostPort(%q) = %q %d %v", tt.in, h, p, err)
		}
	}
}

func TestSpawnObservesEarlyExit(t *testing.T) {
	var stderr bytes.Buffer
	p, err := Exec{}.Spawn([]string{"sh", "-c", "echo boom >&2; exit 3"}, &stderr)
	if err != nil {
		t.Skipf("sh not runnable: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	if p.Err() == nil {
		t.Fatal("expected exit error")
	}
	if p.PID() <= 0 {
		t.Fatal("expected a pid")
	}
	if stderr.String() != "boom\n" {
		t.Fatalf("stderr not captured: %q", stderr.String())
	}
}

func TestSpawnEmpty(t *testing.T) {
	if _, err := (Exec{}).Spawn(nil, nil); err == nil {
		t.Fatal("expected error for empty argv")
	}
}
