package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/client"
	"github.com/mariuswilms/beanstalk/internal/monitor"
	"github.com/mariuswilms/beanstalk/internal/testserver"
)

var (
	// The host the monitor listens on
	httpHost string

	// The port the monitor listens for http requests on
	httpPort string

	maxIdle   int
	maxActive int

	// Serve an in-memory beanstalkd instead of connecting to one
	embedded bool
)

func init() {
	flags := ServeCmd.Flags()

	flags.StringVar(&httpHost, "http-host", "0.0.0.0", "The host to listen on")
	flags.StringVar(&httpPort, "http-port", "11380", "The port to listen to HTTP requests on")
	flags.IntVar(&maxIdle, "max-idle", 4, "Idle beanstalkd connections to keep")
	flags.IntVar(&maxActive, "max-active", 16, "Maximum open beanstalkd connections, 0 is unlimited")
	flags.BoolVar(&embedded, "embedded", false, "Run an in-memory beanstalkd on --port and monitor it")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve beanstalkd statistics as JSON over HTTP",
	Long: `Serve beanstalkd statistics as JSON over HTTP

Usage
	beanstalk serve --http-port 11380

Routes
	GET /stats
	GET /tubes
	GET /tubes/:tube/stats
	GET /jobs/:id
	GET /jobs/:id/stats

Every route accepts ?field=<path> to return a single value.
`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer signalStop()

		conf, log, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		if embedded {
			srv := testserver.New(testserver.Options{
				Host: conf.Host,
				Port: conf.Port,
				Log:  log.Named("embedded"),
			})
			if err := srv.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := srv.Close(); err != nil {
					log.Error("Embedded server forced to shutdown", zap.Error(err))
				}
			}()

			conf.Host, conf.Port = srv.Host(), srv.Port()
		}

		options := clientOptions(conf, log)
		pool := &client.Pool{
			Dial: func(ctx context.Context) (*client.Conn, error) {
				return client.Dial(ctx, options)
			},
			TestOnBorrow: func(c *client.Conn, t time.Time) error {
				if time.Since(t) < time.Minute {
					return nil
				}
				_, err := c.ListTubeUsed(context.Background())
				return err
			},
			MaxIdle:     maxIdle,
			MaxActive:   maxActive,
			IdleTimeout: 5 * time.Minute,
			Wait:        true,
		}

		s := &http.Server{
			Addr:    net.JoinHostPort(httpHost, httpPort),
			Handler: monitor.NewRouter(pool, conf.DebugHTTP, log.Named("http")),
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		log.Info("Listening",
			zap.Any("config", conf),
			zap.String("httpHost", httpHost),
			zap.String("httpPort", httpPort))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if err := pool.Close(); err != nil {
			log.Error("Pool did not close cleanly", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}
