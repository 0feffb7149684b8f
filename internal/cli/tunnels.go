package cli

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/config"
	"github.com/treykane/oo/internal/history"
	"github.com/treykane/oo/internal/model"
	"github.com/treykane/oo/internal/report"
	"github.com/treykane/oo/internal/state"
	"github.com/treykane/oo/internal/tunnel"
	"github.com/treykane/oo/internal/ui"
	"github.com/treykane/oo/internal/util"
)

func newTunnelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "tunnels [profile]",
		Short:             "Start a SOCKS tunnel and browser for a profile",
		Args:              usage(cobra.MaximumNArgs(1)),
		ValidArgsFunction: a.completeProfiles(""),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.startSocks(args[0])
		},
	}
	cmd.AddCommand(
		newStopCmd(a, ""),
		newStatusCmd(a, ""),
		newDesktopCmd(a, model.KindRDP),
		newDesktopCmd(a, model.KindVNC),
		newProfileCmd(a),
		newLogCmd(a),
		newDoctorCmd(a),
		newInitCmd(a),
	)
	return cmd
}

func (a *app) startSocks(name string) error {
	profiles, err := a.profiles()
	if err != nil {
		return err
	}
	prof, err := profiles.Lookup(name)
	if err != nil {
		return err
	}
	if prof.ForwardHost == util.LoopbackHost {
		prof.ForwardHost = a.cfg.Browser.ProxyHost
	}
	t, err := tunnel.NewSocks(prof)
	if err != nil {
		return err
	}
	return a.start(t)
}

func (a *app) start(t *tunnel.Tunnel) error {
	m, err := a.manager()
	if err != nil {
		return err
	}
	if err := m.Start(t); err != nil {
		return err
	}
	a.out.Title("Started %s", t.Name())
	a.out.Tunnels(tunnel.Rows([]*tunnel.Tunnel{t}))
	return nil
}

func newDesktopCmd(a *app, kind model.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:               fmt.Sprintf("%s <profile> <host>...", kind),
		Short:             fmt.Sprintf("Forward %s to hosts of a profile and open a client", kind.Label()),
		Args:              cobra.ArbitraryArgs,
		ValidArgsFunction: a.completeDesktop(kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			if len(args) == 1 {
				return apperr.Newf(apperr.KindUsage, "%s needs at least one host of profile %s", kind, args[0])
			}
			profiles, err := a.profiles()
			if err != nil {
				return err
			}
			prof, err := profiles.Lookup(args[0])
			if err != nil {
				return err
			}
			t, err := tunnel.NewDesktop(kind, prof, args[1:]...)
			if err != nil {
				return err
			}
			return a.start(t)
		},
	}
	cmd.AddCommand(newStopCmd(a, kind), newStatusCmd(a, kind))
	return cmd
}

func newStopCmd(a *app, kind model.Kind) *cobra.Command {
	short := "Stop one tunnel, or all of them"
	if kind != "" {
		short = fmt.Sprintf("Stop one %s tunnel, or all of them", kind.Label())
	}
	return &cobra.Command{
		Use:               "stop [name]",
		Short:             short,
		Args:              usage(cobra.MaximumNArgs(1)),
		ValidArgsFunction: a.completeRunning(kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return m.StopAll(kind)
			}
			return m.Stop(selectTunnels(m, kind, args[0]))
		},
	}
}

// selectTunnels matches name against instance names first, then against
// profile names, so `oo tunnels rdp stop foo` stops every RDP tunnel of foo.
func selectTunnels(m *tunnel.Manager, kind model.Kind, name string) []*tunnel.Tunnel {
	if t := m.Tunnel(name); t != nil && (kind == "" || t.Kind() == kind) {
		return []*tunnel.Tunnel{t}
	}
	var out []*tunnel.Tunnel
	for _, t := range m.Tunnels(kind) {
		if t.Profile() == name {
			out = append(out, t)
		}
	}
	return out
}

func newStatusCmd(a *app, kind model.Kind) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show running tunnels",
		Args:  usage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				title := "oo tunnels"
				if kind != "" {
					title += " " + string(kind)
				}
				refresh := time.Duration(a.cfg.UI.RefreshSeconds) * time.Second
				return ui.Watch(&watchSource{app: a, kind: kind}, title, refresh)
			}
			m, err := a.manager()
			if err != nil {
				return err
			}
			m.Status(kind)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh the table until q is pressed")
	return cmd
}

// watchSource reconciles from disk on every refresh, the same way a new
// invocation would. The dashboard runs Reload and Stop on separate
// goroutines, so the current manager is guarded by mu.
type watchSource struct {
	app  *app
	kind model.Kind

	mu sync.Mutex
	m  *tunnel.Manager
}

func (s *watchSource) Reload() ([]report.TunnelRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.app.manager()
	if err != nil {
		return nil, err
	}
	s.m = m
	return tunnel.Rows(m.Tunnels(s.kind)), nil
}

func (s *watchSource) Stop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		return errors.New("not loaded")
	}
	t := s.m.Tunnel(name)
	if t == nil {
		return fmt.Errorf("%s is not running", name)
	}
	return t.Stop()
}

func (a *app) recentFirst(names []string) []string {
	lastUsed, err := history.NewStore(a.paths.HistoryFile()).LastUsed()
	if err != nil {
		return names
	}
	return history.SortRecent(names, lastUsed)
}

func (a *app) completeProfiles(section string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 || a.loadForCompletion(cmd) != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		profiles, err := a.profiles()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return a.recentFirst(profiles.Names(section)), cobra.ShellCompDirectiveNoFileComp
	}
}

func (a *app) completeDesktop(kind model.Kind) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	profileComp := a.completeProfiles(hostSection(kind))
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return profileComp(cmd, args, toComplete)
		}
		if a.loadForCompletion(cmd) != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		profiles, err := a.profiles()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		prof, err := profiles.Lookup(args[0])
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return remaining(prof.HostNames(hostSection(kind)), args[1:]), cobra.ShellCompDirectiveNoFileComp
	}
}

// completeRunning lists record names without reconciling, so completion
// never signals processes.
func (a *app) completeRunning(kind model.Kind) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 || a.loadForCompletion(cmd) != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		store := state.NewStore(a.paths.StateDir())
		entries, err := store.List()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var names []string
		for _, e := range entries {
			st, err := store.Open(e)
			if err != nil || (kind != "" && st.Kind() != kind) {
				continue
			}
			names = append(names, e.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

func remaining(all, used []string) []string {
	taken := map[string]bool{}
	for _, u := range used {
		taken[u] = true
	}
	var out []string
	for _, n := range all {
		if !taken[n] {
			out = append(out, n)
		}
	}
	return out
}

// hostSection maps a tunnel kind to its profile table.
func hostSection(kind model.Kind) string {
	switch kind {
	case model.KindRDP:
		return config.SectionRDP
	case model.KindVNC:
		return config.SectionVNC
	}
	return ""
}
