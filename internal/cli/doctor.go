package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/treykane/oo/internal/doctor"
)

func newDoctorCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, permissions and tunnel configuration",
		Args:  usage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := os.UserHomeDir()
			r, err := doctor.Run(doctor.Input{
				Paths:    a.paths,
				Config:   a.cfg,
				Platform: a.platform,
				Home:     home,
				Browsers: a.browsers(),
			})
			if err != nil {
				return err
			}
			if jsonOut {
				if r.Issues == nil {
					r.Issues = []doctor.Issue{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			if len(r.Issues) == 0 {
				a.out.Println("No issues found")
				return nil
			}
			rows := make([][]string, 0, len(r.Issues))
			for _, i := range r.Issues {
				rows = append(rows, []string{string(i.Severity), i.Check, i.Target, i.Message, i.Recommendation})
			}
			a.out.Table([]string{"Severity", "Check", "Target", "Message", "Recommendation"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
