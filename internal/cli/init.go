package cli

import (
	"errors"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/config"
	"github.com/treykane/oo/internal/ui"
	"github.com/treykane/oo/internal/util"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [profile] [[user@]jump-host[:port]]",
		Short: "Write a starter tunnels.toml and ssh_config",
		Args:  usage(cobra.MaximumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts config.InitOptions
			switch {
			case len(args) == 2:
				jump, err := ui.ParseJumpTarget(args[1])
				if err != nil {
					return apperr.Wrap(apperr.KindUsage, err, err.Error())
				}
				opts = config.InitOptions{Profile: args[0], JumpHost: jump.Host, JumpUser: jump.User, JumpPort: jump.Port}
			case isatty.IsTerminal(os.Stdin.Fd()):
				var prefill string
				if len(args) == 1 {
					prefill = args[0]
				}
				var err error
				if opts, err = ui.PromptInit(prefill, ""); err != nil {
					if errors.Is(err, ui.ErrCanceled) {
						a.out.Println("Nothing written")
						return nil
					}
					return err
				}
			default:
				return apperr.New(apperr.KindUsage, "init needs a profile name and a jump host")
			}
			opts.TunnelsFile = a.paths.TunnelsFile()
			opts.SSHConfigFile = util.DefaultString(a.cfg.Tunnels.SSHConfig, a.paths.DefaultSSHConfig())
			opts.Force = force

			written, err := config.Init(opts)
			for _, f := range written {
				a.out.Println("Wrote %s", f)
			}
			if err != nil {
				return err
			}
			a.out.Println("Start the tunnel with `oo tunnels %s`", opts.Profile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace existing files, keeping a .bak copy")
	return cmd
}
