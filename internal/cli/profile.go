package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/model"
	"github.com/treykane/oo/internal/util"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the pool of browser profiles used by SOCKS tunnels",
	}

	create := &cobra.Command{
		Use:   "new",
		Short: "Create an empty browser profile",
		Args:  usage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.browsers().Create()
			if err != nil {
				return err
			}
			a.out.Println("Created browser profile %s at %s", p.Name, p.Path)
			return nil
		},
	}

	clone := &cobra.Command{
		Use:   "clone <parent>",
		Short: "Copy an existing Firefox profile into the pool",
		Long:  "Copy an existing Firefox profile into the pool. <parent> is a profile directory, or the name of one inside the Firefox profiles directory.",
		Args:  usage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			bm := a.browsers()
			parent := args[0]
			if info, err := os.Stat(parent); err != nil || !info.IsDir() {
				parent = filepath.Join(bm.FirefoxDir, args[0])
			}
			p, err := bm.Clone(parent)
			if err != nil {
				return apperr.Wrap(apperr.KindConfig, err, "could not clone "+args[0]+": "+err.Error())
			}
			a.out.Println("Cloned %s into browser profile %s", parent, p.Name)
			return nil
		},
	}

	list := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List browser profiles and the tunnels holding them",
		Args:    usage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			held, err := a.heldProfiles()
			if err != nil {
				return err
			}
			bm := a.browsers()
			pool, err := bm.List()
			if err != nil {
				return err
			}
			var rows [][]string
			if !a.cfg.Browser.MultiProfile {
				if p, err := bm.Canonical(); err == nil {
					rows = append(rows, []string{p.Name, "canonical", p.Path, util.EmptyDash(held[p.Path])})
				}
			}
			for _, p := range pool {
				rows = append(rows, []string{p.Name, "pool", p.Path, util.EmptyDash(held[p.Path])})
			}
			if len(rows) == 0 {
				a.out.Warn("No browser profiles. Create one with `oo tunnels profile new`.")
				return nil
			}
			a.out.Table([]string{"Name", "Kind", "Path", "Tunnel"}, rows)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a pool profile that no tunnel is using",
		Args:    usage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			bm := a.browsers()
			p, err := bm.Find(args[0])
			if err != nil {
				return apperr.Wrap(apperr.KindUsage, err, err.Error())
			}
			held, err := a.heldProfiles()
			if err != nil {
				return err
			}
			if name, ok := held[p.Path]; ok {
				return apperr.Newf(apperr.KindConflict, "browser profile %s is in use by tunnel %s", p.Name, name)
			}
			if err := bm.Destroy(p); err != nil {
				return err
			}
			a.out.Println("Removed browser profile %s", p.Name)
			return nil
		},
	}

	cmd.AddCommand(create, clone, list, remove)
	return cmd
}

// heldProfiles maps browser profile paths to the live tunnel holding them.
func (a *app) heldProfiles() (map[string]string, error) {
	m, err := a.manager()
	if err != nil {
		return nil, err
	}
	held := map[string]string{}
	for _, t := range m.Tunnels(model.KindSocks) {
		if p, ok := t.BrowserProfile(); ok {
			held[p.Path] = t.Name()
		}
	}
	return held, nil
}
