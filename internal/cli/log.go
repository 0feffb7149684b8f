package cli

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/treykane/oo/internal/events"
	"github.com/treykane/oo/internal/util"
)

func newLogCmd(a *app) *cobra.Command {
	var (
		q       events.Query
		since   time.Duration
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the tunnel event journal",
		Args:  usage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			evts, err := events.NewStore(a.paths.EventsFile()).Read(q)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if evts == nil {
					evts = []events.Event{}
				}
				return enc.Encode(evts)
			}
			if len(evts) == 0 {
				a.out.Warn("No events recorded")
				return nil
			}
			rows := make([][]string, 0, len(evts))
			for _, e := range evts {
				pid := ""
				if e.PID > 0 {
					pid = strconv.Itoa(e.PID)
				}
				rows = append(rows, []string{
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.Tunnel,
					util.EmptyDash(string(e.Kind)),
					e.Type,
					util.EmptyDash(pid),
					e.Message,
				})
			}
			a.out.Table([]string{"Time", "Tunnel", "Kind", "Event", "PID", "Message"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Profile, "profile", "", "only events of this profile")
	cmd.Flags().StringVar(&q.Tunnel, "tunnel", "", "only events of this tunnel instance")
	cmd.Flags().StringVar(&q.Type, "type", "", "only events of this type")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this duration")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "maximum number of events, most recent last")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
