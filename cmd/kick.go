package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mariuswilms/beanstalk/protocol"
)

var (
	kickTube string
	kickJob  uint64
)

func init() {
	flags := KickCmd.Flags()

	flags.StringVarP(&kickTube, "tube", "t", protocol.DefaultTube, "The tube to kick jobs in")
	flags.Uint64Var(&kickJob, "job", 0, "Kick only this job")
}

var KickCmd = &cobra.Command{
	Use:   "kick [bound]",
	Short: "Move buried, or else delayed, jobs back to the ready queue",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		bound := 1
		if len(args) == 1 {
			var err error
			if bound, err = strconv.Atoi(args[0]); err != nil {
				return fmt.Errorf("invalid bound %q: %w", args[0], err)
			}
		}

		conn, log, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeConn(conn, log)

		if cmd.Flags().Changed("job") {
			return conn.KickJob(ctx, kickJob)
		}

		if _, err := conn.Use(ctx, kickTube); err != nil {
			return err
		}

		n, err := conn.Kick(ctx, bound)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), n)

		return nil
	},
}

// parseDuration accepts Go durations and plain seconds.
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	return time.ParseDuration(s)
}
