// Package cli provides the command-line interface for oo.
package cli

import (
	"fmt"
	"io"
	"os"
	"os/user"

	"github.com/spf13/cobra"
	"github.com/treykane/oo/internal/appconfig"
	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/applog"
	"github.com/treykane/oo/internal/browser"
	"github.com/treykane/oo/internal/config"
	"github.com/treykane/oo/internal/events"
	"github.com/treykane/oo/internal/history"
	"github.com/treykane/oo/internal/platform"
	"github.com/treykane/oo/internal/report"
	"github.com/treykane/oo/internal/sshclient"
	"github.com/treykane/oo/internal/state"
	"github.com/treykane/oo/internal/tunnel"
	"github.com/treykane/oo/internal/ui"
)

// app is the configuration context of one invocation. It is built lazily,
// either by the persistent pre-run hook or by the first completion function
// that needs it, whichever comes first.
type app struct {
	paths    appconfig.Paths
	cfg      appconfig.Config
	log      *applog.Log
	out      *report.Printer
	stderr   io.Writer
	platform platform.OS
	debug    bool
	loaded   bool

	// completing is set when a shell completion request triggered load.
	completing bool
}

func (a *app) load(cmd *cobra.Command) error {
	if a.loaded {
		return nil
	}
	paths, err := appconfig.ResolvePaths()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	cfg, err := appconfig.Load(paths)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if a.debug {
		level = "debug"
	}
	a.stderr = cmd.ErrOrStderr()
	openLog := applog.Open
	if a.completing {
		openLog = applog.Append
	}
	log, err := openLog(paths.LogFile(), level, a.stderr)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	a.paths = paths
	a.cfg = cfg
	a.log = log
	a.out = report.NewPrinter(cmd.OutOrStdout())
	a.platform = platform.Detect()
	a.loaded = true
	a.log.Debug().Strs("args", os.Args).Str("platform", string(a.platform)).Msg("invocation")
	return nil
}

// loadForCompletion is load for shell completion requests, which must leave
// the log of the last real command intact.
func (a *app) loadForCompletion(cmd *cobra.Command) error {
	if !a.loaded {
		a.completing = true
	}
	return a.load(cmd)
}

func isCompletionRequest(cmd *cobra.Command) bool {
	return cmd.Name() == cobra.ShellCompRequestCmd || cmd.Name() == cobra.ShellCompNoDescRequestCmd
}

func (a *app) close() {
	if a.loaded {
		_ = a.log.Close()
	}
}

func (a *app) profiles() (*config.Profiles, error) {
	return config.Load(a.paths.TunnelsFile(), a.paths.TunnelsLocalFile())
}

func (a *app) browsers() *browser.Manager {
	firefox := a.cfg.Browser.FirefoxDir
	if firefox == "" {
		home, _ := os.UserHomeDir()
		name := os.Getenv("USER")
		if u, err := user.Current(); err == nil && name == "" {
			name = u.Username
		}
		firefox = browser.DefaultFirefoxDir(a.platform, home, name)
	}
	return &browser.Manager{
		Dir:        a.paths.ProfilesDir(),
		FirefoxDir: firefox,
		Suffix:     a.cfg.Browser.Profile,
		Log:        a.log.Logger,
	}
}

func (a *app) client() *sshclient.Client {
	t := a.cfg.Tunnels
	return sshclient.New(sshclient.Options{
		Autossh:             t.Autossh,
		SSHConfig:           t.SSHConfig,
		ServerAliveInterval: t.ServerAliveInterval,
		ServerAliveCountMax: t.ServerAliveCountMax,
	})
}

func (a *app) env() *tunnel.Env {
	return &tunnel.Env{
		Store:         state.NewStore(a.paths.StateDir()),
		Client:        a.client(),
		Allocator:     browser.Allocator{Profiles: a.browsers(), MultiProfile: a.cfg.Browser.MultiProfile},
		BrowserBinary: a.cfg.Browser.Binary,
		Platform:      a.platform,
		Log:           a.log,
		Journal:       events.NewStore(a.paths.EventsFile()),
		History:       history.NewStore(a.paths.HistoryFile()),
		Out:           a.out,
		Attempts:      a.cfg.Tunnels.StartupAttempts,
		Interval:      a.cfg.Tunnels.StartupInterval(),
		Progress: func(label string, steps int) tunnel.Progress {
			return ui.NewBar(a.stderr, label, steps)
		},
	}
}

func (a *app) manager() (*tunnel.Manager, error) {
	return tunnel.NewManager(a.env())
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "oo",
		Short:         "SSH tunnels, browser proxies and remote desktops through jump hosts",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if isCompletionRequest(cmd) {
				return a.loadForCompletion(cmd)
			}
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return apperr.Wrap(apperr.KindUsage, err, err.Error())
	})
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "write debug records to the log file")

	root.AddCommand(newTunnelsCmd(a))
	root.AddCommand(newSSHCmd(a))
	return root
}

// usage classifies cobra's argument count errors as usage errors.
func usage(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return apperr.Wrap(apperr.KindUsage, err, err.Error())
		}
		return nil
	}
}
