package cli

import (
	"github.com/spf13/cobra"
	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/config"
	"github.com/treykane/oo/internal/platform"
	"github.com/treykane/oo/internal/sshclient"
)

func newSSHCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ssh <profile> [host]",
		Short: "Open an interactive ssh session through a profile's jump host",
		Long: "Open an interactive ssh session through a profile's jump host. Without a host it connects to the jump host itself. " +
			"The host is a named ssh entry of the profile, an address, or address:port.",
		Args:              usage(cobra.RangeArgs(1, 2)),
		ValidArgsFunction: a.completeSSH(),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := a.profiles()
			if err != nil {
				return err
			}
			prof, err := profiles.Lookup(args[0])
			if err != nil {
				return err
			}
			if prof.JumpHost == "" {
				return apperr.Newf(apperr.KindConfig, "profile %s has no jump_host", prof.Name)
			}
			var (
				target string
				port   int
			)
			if len(args) == 2 {
				if target, port, err = resolveSSHTarget(prof, args[1]); err != nil {
					return err
				}
			}
			client := a.client()
			if _, ok := platform.LookPath(client.SSHBinary()); !ok {
				return apperr.Newf(apperr.KindDependency, "%s is not installed, or is not in the path", client.SSHBinary())
			}
			argv := client.SSHArgv(prof.JumpHost, target, port)
			a.log.Info().Strs("argv", argv).Msg("interactive ssh")
			return sshclient.RunInteractive(cmd.Context(), argv)
		},
	}
}

// resolveSSHTarget prefers a named ssh entry of the profile over a literal
// address.
func resolveSSHTarget(prof config.Profile, arg string) (string, int, error) {
	if h, err := prof.Host(config.SectionSSH, arg); err == nil {
		return h.Host, h.Port, nil
	}
	host, port, err := sshclient.SplitHostPort(arg)
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindUsage, err, err.Error())
	}
	return host, port, nil
}

func (a *app) completeSSH() func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	profileComp := a.completeProfiles("")
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		switch len(args) {
		case 0:
			return profileComp(cmd, args, toComplete)
		case 1:
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
			return prof.HostNames(config.SectionSSH), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}
