package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/client"
	"github.com/mariuswilms/beanstalk/protocol"
)

var (
	benchJobs     int
	benchBodySize int
	benchTube     string
)

func init() {
	flags := BenchCmd.Flags()

	flags.IntVarP(&benchJobs, "jobs", "n", 1000, "How many jobs to put and reserve")
	flags.IntVar(&benchBodySize, "size", 128, "Job body size in bytes")
	flags.StringVarP(&benchTube, "tube", "t", "bench", "The tube to use, it should be empty")
}

var BenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure put, reserve and delete throughput",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		conf, log, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		options := clientOptions(conf, log)

		producer, err := client.Dial(ctx, options)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, producer.Close()) }()

		worker, err := client.Dial(ctx, options)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, worker.Close()) }()

		if _, err := producer.Use(ctx, benchTube); err != nil {
			return err
		}
		if err := watchOnly(cmd, worker, []string{benchTube}); err != nil {
			return err
		}

		body := bytes.Repeat([]byte{'x'}, benchBodySize)

		start := time.Now()
		for i := 0; i < benchJobs; i++ {
			if _, err := producer.Put(ctx, body, protocol.DefaultPriority, 0, time.Minute); err != nil {
				return err
			}
		}
		putTook := time.Since(start)

		start = time.Now()
		for i := 0; i < benchJobs; i++ {
			job, err := worker.ReserveWithTimeout(ctx, time.Second)
			if err != nil {
				return err
			}
			if err := worker.Delete(ctx, job.ID); err != nil {
				return err
			}
		}
		reserveTook := time.Since(start)

		log.Info("Bench finished",
			zap.Int("jobs", benchJobs),
			zap.Int("bodySize", benchBodySize),
			zap.Duration("put", putTook),
			zap.Duration("reserveDelete", reserveTook))

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "put            %8d jobs in %v (%.0f/s)\n", benchJobs, putTook, rate(benchJobs, putTook))
		fmt.Fprintf(out, "reserve+delete %8d jobs in %v (%.0f/s)\n", benchJobs, reserveTook, rate(benchJobs, reserveTook))

		return nil
	},
}

func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}

	return float64(n) / d.Seconds()
}
