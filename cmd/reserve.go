package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/client"
	"github.com/mariuswilms/beanstalk/protocol"
)

var (
	reserveTubes   []string
	reserveTimeout time.Duration
	reserveDelete  bool
)

func init() {
	flags := ReserveCmd.Flags()

	flags.StringSliceVarP(&reserveTubes, "tube", "t", []string{protocol.DefaultTube}, "The tubes to watch")
	flags.DurationVar(&reserveTimeout, "timeout", -1, "Give up after this long, negative waits forever")
	flags.BoolVar(&reserveDelete, "delete", false, "Delete the job once it is printed")
}

var ReserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "Reserve a job and print its body",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conn, log, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeConn(conn, log)

		if err := watchOnly(cmd, conn, reserveTubes); err != nil {
			return err
		}

		var job *client.Job
		if reserveTimeout < 0 {
			job, err = conn.Reserve(ctx)
		} else {
			job, err = conn.ReserveWithTimeout(ctx, reserveTimeout)
		}
		if err != nil {
			return err
		}

		log.Debug("Reserved job", zap.Uint64("id", job.ID), zap.Int("bytes", len(job.Body)))

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d\n", job.ID)
		out.Write(job.Body)
		fmt.Fprintln(out)

		if reserveDelete {
			return conn.Delete(ctx, job.ID)
		}

		return conn.Release(ctx, job.ID, protocol.DefaultPriority, 0)
	},
}

// watchOnly makes tubes the exact watch list of conn.
func watchOnly(cmd *cobra.Command, conn *client.Conn, tubes []string) error {
	ctx := cmd.Context()

	for _, tube := range tubes {
		if _, err := conn.Watch(ctx, tube); err != nil {
			return err
		}
	}

	keep := make(map[string]bool, len(tubes))
	for _, tube := range tubes {
		keep[tube] = true
	}

	if !keep[protocol.DefaultTube] {
		if _, err := conn.Ignore(ctx, protocol.DefaultTube); err != nil {
			return err
		}
	}

	return nil
}
