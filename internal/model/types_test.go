package model

import "testing"

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" RDP ")
	if err != nil || k != KindRDP {
		t.Fatalf("ParseKind = %q, %v", k, err)
	}
	if _, err := ParseKind("ftp"); err == nil {
		t.Fatal("expected unknown kind error")
	}
}

func TestRecordValidate(t *testing.T) {
	ok := Record{Version: RecordVersion, Name: "foo", Profile: "foo", Kind: KindSocks, PID: 12}
	if err := ok.Validate(); err != nil {
		t.Fatal(err)
	}
	cases := []Record{
		{Version: 0, Name: "foo", Kind: KindSocks},
		{Version: RecordVersion, Name: " ", Kind: KindSocks},
		{Version: RecordVersion, Name: "foo", Kind: "ftp"},
		{Version: RecordVersion, Name: "foo", Kind: KindVNC, PID: -3},
	}
	for i, r := range cases {
		if r.Validate() == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestRecordPortsAndPIDs(t *testing.T) {
	socks := Record{ForwardPort: 2080, PID: 10, ClientPIDs: []int{0, 11}}
	if got := socks.Ports(); len(got) != 1 || got[0] != 2080 {
		t.Fatalf("unexpected socks ports %v", got)
	}
	if got := socks.PIDs(); len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Fatalf("unexpected pids %v", got)
	}
	rdp := Record{Forwards: []Forward{
		{Host: "first_rdp", LocalPort: 60001, RemoteHost: "192.168.1.1", RemotePort: 3389},
		{Host: "second_rdp", LocalPort: 60002, RemoteHost: "192.168.1.2", RemotePort: 3389},
	}}
	if got := rdp.Ports(); len(got) != 2 || got[1] != 60002 {
		t.Fatalf("unexpected rdp ports %v", got)
	}
	if got := rdp.Forwards[0].Spec(); got != "60001:192.168.1.1:3389" {
		t.Fatalf("unexpected forward spec %q", got)
	}
}
