package tunnel

import (
	"strings"

	"github.com/treykane/oo/internal/events"
	"github.com/treykane/oo/internal/platform"
)

const noURLsMessage = "The tunnel has been started, but you have no urls configured"

// launchBrowser points the tunnel's browser profile at the SOCKS listener and
// opens the configured URLs with it. Failures here leave the tunnel running.
func (t *Tunnel) launchBrowser(v *Socks) {
	env := t.env
	if v.Browser.Path != "" && env.Allocator.Profiles != nil {
		if err := env.Allocator.Profiles.SetProxy(v.Browser, v.ProxyHost, v.Port); err != nil {
			t.log().Warn().Err(err).Str("profile", v.Browser.Name).Msg("failed to write proxy settings")
		}
	}
	if len(v.URLs) == 0 {
		env.Out.Warn(noURLsMessage)
		return
	}
	bin := t.browserBin
	if bin == "" {
		var err error
		if bin, err = t.resolveBrowser(); err != nil || bin == "" {
			t.log().Warn().Err(err).Msg("no browser binary found")
			return
		}
	}
	argv := []string{bin}
	if v.Browser.Path != "" {
		path, err := platform.NativePath(env.Platform, v.Browser.Path)
		if err != nil {
			t.log().Warn().Err(err).Msg("failed to translate profile path")
			path = v.Browser.Path
		}
		argv = append(argv, "--profile", path)
	}
	argv = append(argv, v.URLs...)

	p, err := env.Spawner.Spawn(argv, env.Log.Sink())
	if err != nil {
		t.log().Warn().Err(err).Str("binary", bin).Msg("failed to launch browser")
		env.Out.Warn("Could not launch %s: %v", bin, err)
		return
	}
	if err := t.state.AddClientPID(p.PID()); err != nil {
		t.log().Warn().Err(err).Msg("failed to track browser pid")
	}
	env.record(t, events.TypeClientLaunched, bin)
	env.Out.Println("Launching Firefox with tabs: %s", strings.Join(v.URLs, ", "))
}
