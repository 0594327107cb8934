package client

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/protocol"
	"github.com/mariuswilms/beanstalk/transport"
)

var nowFunc = time.Now // for testing

// Dialer opens the stream a Conn talks over.
type Dialer func(ctx context.Context, options transport.Options) (transport.Stream, error)

// DialTCP is the default Dialer.
func DialTCP(ctx context.Context, options transport.Options) (transport.Stream, error) {
	return transport.Dial(ctx, options)
}

type Options struct {
	Host string
	Port int

	// Persistent connections are kept alive at the TCP level and are closed
	// without sending quit.
	Persistent bool

	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for each reply. reserve is never bounded
	// and reserve-with-timeout waits its own timeout plus ReadTimeout. Zero
	// disables it.
	ReadTimeout time.Duration

	// Trace logs every line on the wire at debug level.
	Trace bool

	// ErrorLogSize is how many errors Errors returns at most.
	ErrorLogSize int

	Log *zap.Logger

	// Dial defaults to DialTCP.
	Dial Dialer
}

// A Conn is a connection to a beanstalkd server.
//
// Commands are strictly one at a time: a Conn must not be used from more
// than one goroutine at once. Use one Conn per worker, or a Pool.
//
// A Conn never reconnects on its own. Any failure of the stream closes it,
// and every later command returns ErrNotConnected until Connect is called.
type Conn struct {
	options Options
	stream  transport.Stream
	errors  *ErrorLog
	log     *zap.Logger
}

// New returns a disconnected Conn.
func New(options Options) *Conn {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	if options.Dial == nil {
		options.Dial = DialTCP
	}

	return &Conn{
		options: options,
		errors:  NewErrorLog(options.ErrorLogSize),
		log:     options.Log,
	}
}

// Dial returns a connected Conn.
func Dial(ctx context.Context, options Options) (*Conn, error) {
	c := New(options)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// Connect opens the stream, replacing any stream already open.
func (c *Conn) Connect(ctx context.Context) error {
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.log.Debug("Failed to close replaced stream", zap.Error(err))
		}
		c.stream = nil
	}

	stream, err := c.options.Dial(ctx, transport.Options{
		Host:           c.options.Host,
		Port:           c.options.Port,
		Persistent:     c.options.Persistent,
		ConnectTimeout: c.options.ConnectTimeout,
		Trace:          c.options.Trace,
		Log:            c.log.Named("transport"),
	})
	if err != nil {
		return c.fail("connect", ConnError{Op: "connect", Err: err})
	}

	c.stream = stream

	return nil
}

// Disconnect sends quit, unless the connection is persistent, and closes
// the stream. It is safe to call on a disconnected Conn.
func (c *Conn) Disconnect() (err error) {
	if c.stream == nil {
		return nil
	}

	stream := c.stream
	c.stream = nil

	if !c.options.Persistent {
		err = multierr.Append(err, protocol.WriteCommand(stream, protocol.Quit()))
	}

	err = multierr.Append(err, stream.Close())
	if err != nil {
		return c.fail("disconnect", ConnError{Op: "disconnect", Err: err})
	}

	return nil
}

// Close is Disconnect.
func (c *Conn) Close() error {
	return c.Disconnect()
}

func (c *Conn) Connected() bool {
	return c.stream != nil
}

// Errors returns the most recent failures, oldest first.
func (c *Conn) Errors() []string {
	entries := c.errors.Entries()

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.String()
	}

	return out
}

// ErrorLog gives access to the remembered failures.
func (c *Conn) ErrorLog() *ErrorLog {
	return c.errors
}

// do runs a single command and returns its successful reply.
func (c *Conn) do(ctx context.Context, cmd *protocol.Command) (*protocol.Response, error) {
	op := string(cmd.Verb)

	if err := ctx.Err(); err != nil {
		return nil, c.fail(op, err)
	}

	if c.stream == nil {
		return nil, c.fail(op, ConnError{Op: op, Err: ErrNotConnected})
	}

	stream := c.stream

	// Closing the stream is the only way to abort a blocked read.
	stop := context.AfterFunc(ctx, func() {
		stream.Close()
	})

	resp, err := c.roundTrip(stream, cmd)

	if !stop() {
		c.stream = nil
		return nil, c.fail(op, ConnError{Op: op, Err: ctx.Err()})
	}

	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			return nil, c.fail(op, err)
		}

		// The exchange stopped half way, the stream cannot be trusted.
		c.drop()
		return nil, c.fail(op, ConnError{Op: op, Err: err})
	}

	return resp, nil
}

func (c *Conn) roundTrip(stream transport.Stream, cmd *protocol.Command) (*protocol.Response, error) {
	if err := stream.SetReadTimeout(c.readTimeout(cmd)); err != nil {
		return nil, err
	}

	if err := protocol.WriteCommand(stream, cmd); err != nil {
		return nil, err
	}

	return protocol.ReadReply(stream, cmd.Verb)
}

func (c *Conn) readTimeout(cmd *protocol.Command) time.Duration {
	switch cmd.Verb {
	case protocol.RESERVE:
		return 0

	case protocol.RESERVEWITHTIMEOUT:
		if c.options.ReadTimeout <= 0 {
			return 0
		}

		secs, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			return 0
		}

		return time.Duration(secs)*time.Second + c.options.ReadTimeout

	default:
		return c.options.ReadTimeout
	}
}

func (c *Conn) drop() {
	if c.stream == nil {
		return
	}

	if err := c.stream.Close(); err != nil {
		c.log.Debug("Failed to close broken stream", zap.Error(err))
	}
	c.stream = nil
}

// fail records err and returns it.
func (c *Conn) fail(op string, err error) error {
	c.errors.Add(op, err)

	var perr *protocol.Error
	if errors.As(err, &perr) {
		c.log.Info("Command failed", zap.String("command", op), zap.String("status", perr.Token))
	} else {
		c.log.Warn("Command failed", zap.String("command", op), zap.Error(err))
	}

	return err
}

// field is a positional field of a successful reply as an integer.
func (c *Conn) field(resp *protocol.Response, verb protocol.Verb, i int) (uint64, error) {
	n, err := resp.Uint(i)
	if err != nil {
		return 0, c.fail(string(verb), err)
	}

	return n, nil
}
