package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mariuswilms/beanstalk/internal/monitor"
	"github.com/mariuswilms/beanstalk/protocol"
)

var (
	statsTube  string
	statsJob   uint64
	statsJSON  bool
	statsField string
)

func init() {
	flags := StatsCmd.Flags()

	flags.StringVarP(&statsTube, "tube", "t", "", "Show the statistics of a tube")
	flags.Uint64Var(&statsJob, "job", 0, "Show the statistics of a job")
	flags.BoolVar(&statsJSON, "json", false, "Print JSON instead of a table")
	flags.StringVar(&statsField, "field", "", "Print only the value at this JSON path, e.g. current-jobs-ready")
}

var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print server, tube or job statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conn, log, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeConn(conn, log)

		var stats *protocol.Stats
		switch {
		case cmd.Flags().Changed("job"):
			stats, err = conn.StatsJob(ctx, statsJob)
		case statsTube != "":
			stats, err = conn.StatsTube(ctx, statsTube)
		default:
			stats, err = conn.Stats(ctx)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if statsJSON || statsField != "" {
			doc, err := monitor.RenderStats(stats)
			if err != nil {
				return err
			}

			if statsField != "" {
				raw, ok := monitor.Field(doc, statsField)
				if !ok {
					return fmt.Errorf("no field %q", statsField)
				}
				doc = []byte(raw)
			}

			_, err = fmt.Fprintln(out, string(doc))
			return err
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, key := range stats.Keys() {
			v, _ := stats.Get(key)
			fmt.Fprintf(w, "%s\t%s\n", key, v)
		}

		return w.Flush()
	},
}
