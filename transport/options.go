package transport

import (
	"time"

	"go.uber.org/zap"
)

type Options struct {
	// Host to connect to
	Host string

	// Port to connect to
	Port int

	// Persistent keeps the TCP connection alive with keep-alive probes, for
	// connections meant to outlive a single unit of work
	Persistent bool

	// ConnectTimeout bounds the dial. Zero means no timeout.
	ConnectTimeout time.Duration

	// Trace will log every line written and read. This is only useful in local debugging
	Trace bool

	Log *zap.Logger
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 11300

	keepAlivePeriod = 30 * time.Second
)
