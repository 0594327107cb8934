package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/client"
	"github.com/mariuswilms/beanstalk/cmd/gen"
	"github.com/mariuswilms/beanstalk/internal/env"
)

var (
	// The beanstalkd host to connect to
	host string

	// The beanstalkd port to connect to
	port int

	persistent bool

	logLevel string
)

var RootCmd = &cobra.Command{
	Use:   "beanstalk",
	Short: "A client for the beanstalkd work queue",
	Long: `A client for the beanstalkd work queue.

Connection settings are read from BEANSTALK_* environment variables and
.env.local, and can be overridden with flags.`,
	SilenceUsage: true,
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&host, "host", "a", "", "The beanstalkd host (default $BEANSTALK_HOST or 127.0.0.1)")
	flags.IntVarP(&port, "port", "p", 0, "The beanstalkd port (default $BEANSTALK_PORT or 11300)")
	flags.BoolVar(&persistent, "persistent", false, "Keep the connection alive and close it without sending quit")
	flags.StringVar(&logLevel, "log-level", "", "Log level (default $BEANSTALK_LOG_LEVEL or info)")

	RootCmd.AddCommand(
		PutCmd,
		ReserveCmd,
		StatsCmd,
		TubesCmd,
		KickCmd,
		BenchCmd,
		ServeCmd,
		VersionCmd,
		gen.RootCmd,
	)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func setup(ctx context.Context, cmd *cobra.Command) (*env.Config, *zap.Logger, error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		conf.Host = host
	}
	if flags.Changed("port") {
		conf.Port = port
	}
	if flags.Changed("persistent") {
		conf.Persistent = persistent
	}
	if flags.Changed("log-level") {
		conf.LogLevel = logLevel
	}

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", conf.LogLevel, err)
	}

	return conf, log, nil
}

func clientOptions(conf *env.Config, log *zap.Logger) client.Options {
	return client.Options{
		Host:           conf.Host,
		Port:           conf.Port,
		Persistent:     conf.Persistent,
		ConnectTimeout: conf.ConnectTimeout,
		ReadTimeout:    conf.ReadTimeout,
		Trace:          conf.Trace,
		Log:            log.Named("client"),
	}
}

// connect is setup followed by a dial.
func connect(ctx context.Context, cmd *cobra.Command) (*client.Conn, *zap.Logger, error) {
	conf, log, err := setup(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	conn, err := client.Dial(ctx, clientOptions(conf, log))
	if err != nil {
		return nil, nil, err
	}

	return conn, log, nil
}

func closeConn(conn *client.Conn, log *zap.Logger) {
	if err := conn.Close(); err != nil {
		log.Warn("Failed to disconnect", zap.Error(err))
	}
	log.Sync()
}
