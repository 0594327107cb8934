package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var TubesCmd = &cobra.Command{
	Use:   "tubes",
	Short: "List the tubes that exist on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conn, log, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeConn(conn, log)

		tubes, err := conn.ListTubes(ctx)
		if err != nil {
			return err
		}

		for _, tube := range tubes {
			fmt.Fprintln(cmd.OutOrStdout(), tube)
		}

		return nil
	},
}

var PauseCmd = &cobra.Command{
	Use:   "pause <tube> <delay>",
	Short: "Stop reservations from a tube for a while, e.g. pause emails 30s",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		delay, err := parseDuration(args[1])
		if err != nil {
			return err
		}

		conn, log, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeConn(conn, log)

		return conn.PauseTube(ctx, args[0], delay)
	},
}

func init() {
	TubesCmd.AddCommand(PauseCmd)
}
