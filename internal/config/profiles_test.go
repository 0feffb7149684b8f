package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/treykane/oo/internal/apperr"
)

const tunnelsTOML = `
[foo]
jump_host = "foo.example.com"
forward_port = 2080
urls = ["https://intranet.example.com", "https://wiki.example.com"]

[foo.rdp.first_rdp]
host = "192.168.1.1"
local_port = 60001

[foo.rdp.second_rdp]
host = "192.168.1.2"
local_port = 60002

[foo.vnc.first_vnc]
host = "192.168.2.1"
local_port = 60011

[foo.ssh.second_ssh]
host = "192.168.2.2"
port = 2222

["bar.prod"]
jump_host = "bar.example.com"
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tunnels.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProfiles(t *testing.T) {
	ps, err := Load(writeProfiles(t, tunnelsTOML))
	if err != nil {
		t.Fatal(err)
	}
	foo, err := ps.Lookup("foo")
	if err != nil {
		t.Fatal(err)
	}
	if foo.JumpHost != "foo.example.com" || foo.ForwardPort != 2080 || len(foo.URLs) != 2 {
		t.Fatalf("unexpected profile %+v", foo)
	}
	if foo.ForwardHost != "127.0.0.1" {
		t.Fatalf("expected default forward host, got %q", foo.ForwardHost)
	}
	h, err := foo.Host(SectionRDP, "first_rdp")
	if err != nil {
		t.Fatal(err)
	}
	if h.Host != "192.168.1.1" || h.Port != 3389 || h.LocalPort != 60001 || h.Name != "first_rdp" {
		t.Fatalf("unexpected host %+v", h)
	}
	ssh, err := foo.Host(SectionSSH, "second_ssh")
	if err != nil || ssh.Port != 2222 {
		t.Fatalf("unexpected ssh host %+v %v", ssh, err)
	}
	if got := foo.HostNames(SectionRDP); !reflect.DeepEqual(got, []string{"first_rdp", "second_rdp"}) {
		t.Fatalf("unexpected rdp hosts %v", got)
	}
	dotted, err := ps.Lookup("bar.prod")
	if err != nil || dotted.JumpHost != "bar.example.com" {
		t.Fatalf("dotted profile name lookup failed: %+v %v", dotted, err)
	}
	if got := ps.Names(SectionVNC); !reflect.DeepEqual(got, []string{"foo"}) {
		t.Fatalf("unexpected vnc profiles %v", got)
	}
	if got := ps.Names(""); !reflect.DeepEqual(got, []string{"bar.prod", "foo"}) {
		t.Fatalf("unexpected profiles %v", got)
	}
}

func TestLookupMissing(t *testing.T) {
	ps, err := Load(writeProfiles(t, tunnelsTOML))
	if err != nil {
		t.Fatal(err)
	}
	_, err = ps.Lookup("nope")
	if !errors.Is(err, ErrConfigNotFound) || !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected config not found, got %v", err)
	}
	foo, _ := ps.Lookup("foo")
	if _, err := foo.Host(SectionVNC, "second_vnc"); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected missing host error, got %v", err)
	}
}

func TestLocalOverrides(t *testing.T) {
	shared := writeProfiles(t, tunnelsTOML)
	local := filepath.Join(t.TempDir(), "tunnels_local.toml")
	if err := os.WriteFile(local, []byte("[foo]\njump_host = \"override.example.com\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ps, err := Load(shared, local, filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	foo, _ := ps.Lookup("foo")
	if foo.JumpHost != "override.example.com" || foo.ForwardPort != 2080 {
		t.Fatalf("expected local override merged over shared, got %+v", foo)
	}
	if len(ps.Files()) != 2 {
		t.Fatalf("expected two files read, got %v", ps.Files())
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeProfiles(t, "[foo\njump_host = "))
	if !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLoadNoFiles(t *testing.T) {
	ps, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ps.Names("")) != 0 {
		t.Fatal("expected empty profiles")
	}
}

func TestInitWritesLoadableStarter(t *testing.T) {
	dir := t.TempDir()
	opts := InitOptions{
		TunnelsFile:   filepath.Join(dir, "tunnels.toml"),
		SSHConfigFile: filepath.Join(dir, "ssh_config"),
		Profile:       "work",
		JumpHost:      "jump.example.com",
	}
	written, err := Init(opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 2 {
		t.Fatalf("unexpected written files %v", written)
	}
	ps, err := Load(opts.TunnelsFile)
	if err != nil {
		t.Fatal(err)
	}
	work, err := ps.Lookup("work")
	if err != nil || work.JumpHost != "jump.example.com" {
		t.Fatalf("unexpected starter profile %+v %v", work, err)
	}
	if h, err := work.Host(SectionRDP, "desktop"); err != nil || h.Port != 3389 {
		t.Fatalf("unexpected starter rdp host %+v %v", h, err)
	}
	sshCfg, err := ReadSSHConfig(opts.SSHConfigFile)
	if err != nil || !sshCfg.Declares("jump.example.com") {
		t.Fatalf("expected jump host declared, got %+v %v", sshCfg, err)
	}

	if _, err := Init(opts); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict without --force, got %v", err)
	}
	opts.Force = true
	if _, err := Init(opts); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(opts.TunnelsFile + ".bak"); err != nil {
		t.Fatalf("expected backup: %v", err)
	}
}

func TestFormatHostBlock(t *testing.T) {
	got := FormatHostBlock("bastion", "ops", 2222)
	if !strings.HasPrefix(got, "Host bastion\n  User ops\n  Port 2222\n") {
		t.Fatalf("unexpected block %q", got)
	}
	if strings.Contains(FormatHostBlock("bastion", "", 22), "Port") {
		t.Fatal("default port must be omitted")
	}
}
