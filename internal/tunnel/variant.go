package tunnel

import (
	"fmt"

	"github.com/treykane/oo/internal/browser"
	"github.com/treykane/oo/internal/config"
	"github.com/treykane/oo/internal/model"
)

// Variant is the kind-specific part of a tunnel. The set is closed: only
// *Socks, *RDP and *VNC implement it.
type Variant interface {
	variant()
}

// Socks is a dynamic forward driven through a browser profile.
type Socks struct {
	Port      int
	ProxyHost string
	URLs      []string
	Browser   browser.Profile
}

// Desktop is the part shared by RDP and VNC tunnels: one local forward per
// named remote host.
type Desktop struct {
	Hosts    []config.Host
	Forwards []model.Forward
}

type RDP struct{ Desktop }
type VNC struct{ Desktop }

func (*Socks) variant() {}
func (*RDP) variant()   {}
func (*VNC) variant()   {}

func kindOf(v Variant) model.Kind {
	switch v.(type) {
	case *Socks:
		return model.KindSocks
	case *RDP:
		return model.KindRDP
	case *VNC:
		return model.KindVNC
	}
	panic(fmt.Sprintf("unknown tunnel variant %T", v))
}

// desktopOf returns the shared desktop part, or nil for SOCKS.
func desktopOf(v Variant) *Desktop {
	switch d := v.(type) {
	case *Socks:
		return nil
	case *RDP:
		return &d.Desktop
	case *VNC:
		return &d.Desktop
	}
	panic(fmt.Sprintf("unknown tunnel variant %T", v))
}

// variantFromRecord rebuilds the variant persisted in rec.
func variantFromRecord(rec model.Record) (Variant, error) {
	switch rec.Kind {
	case model.KindSocks:
		return &Socks{
			Port:    rec.ForwardPort,
			Browser: browser.Profile{Name: rec.BrowserProfileName, Path: rec.BrowserProfilePath},
		}, nil
	case model.KindRDP:
		return &RDP{Desktop{Forwards: rec.Forwards}}, nil
	case model.KindVNC:
		return &VNC{Desktop{Forwards: rec.Forwards}}, nil
	}
	return nil, fmt.Errorf("unknown tunnel kind %q", rec.Kind)
}
