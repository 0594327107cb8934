package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/protocol"
)

var (
	putTube     string
	putPriority uint32
	putDelay    time.Duration
	putTTR      time.Duration
)

func init() {
	flags := PutCmd.Flags()

	flags.StringVarP(&putTube, "tube", "t", protocol.DefaultTube, "The tube to put the job into")
	flags.Uint32Var(&putPriority, "priority", protocol.DefaultPriority, "Job priority, 0 is the most urgent")
	flags.DurationVar(&putDelay, "delay", 0, "How long the job is delayed before it is ready")
	flags.DurationVar(&putTTR, "ttr", time.Minute, "How long a worker may hold the job")
}

var PutCmd = &cobra.Command{
	Use:   "put [body]",
	Short: "Put a job into a tube",
	Long: `Put a job into a tube and print its id.

The body is the first argument, or stdin when there is none.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			body []byte
			err  error
		)
		if len(args) == 1 {
			body = []byte(args[0])
		} else if body, err = io.ReadAll(os.Stdin); err != nil {
			return err
		}

		conn, log, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeConn(conn, log)

		if _, err := conn.Use(ctx, putTube); err != nil {
			return err
		}

		id, err := conn.Put(ctx, body, putPriority, putDelay, putTTR)
		if err != nil {
			return err
		}

		log.Debug("Put job", zap.Uint64("id", id), zap.String("tube", putTube), zap.Int("bytes", len(body)))
		fmt.Fprintln(cmd.OutOrStdout(), id)

		return nil
	},
}
