package tunnel

import (
	"github.com/treykane/oo/internal/events"
	"github.com/treykane/oo/internal/platform"
)

// launchDesktop opens one viewer per forward. Native viewers are tracked so
// that stop closes them; URL handlers hand off to the desktop and are not.
func (t *Tunnel) launchDesktop(d *Desktop) {
	env := t.env
	for _, f := range d.Forwards {
		action, err := platform.DesktopClient(env.Platform, t.Kind(), f.LocalPort)
		if err != nil {
			t.log().Warn().Err(err).Str("host", f.Host).Msg("no desktop client for platform")
			continue
		}
		if action.Kind == platform.ActionPrintURL {
			env.Out.Println("%s is forwarded to %s", f.Host, action.URL)
			continue
		}
		p, err := env.Spawner.Spawn(action.Argv, env.Log.Sink())
		if err != nil {
			t.log().Warn().Err(err).Str("host", f.Host).Msg("failed to launch desktop client")
			env.Out.Warn("Could not launch %s for %s: %v", action.Binary(), f.Host, err)
			continue
		}
		if action.Kind == platform.ActionNative {
			if err := t.state.AddClientPID(p.PID()); err != nil {
				t.log().Warn().Err(err).Msg("failed to track client pid")
			}
		}
		env.record(t, events.TypeClientLaunched, action.Binary())
		env.Out.Println("Launching %s for %s on port %d", action.Binary(), f.Host, f.LocalPort)
	}
}
