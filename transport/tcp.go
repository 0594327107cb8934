package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxLineLength bounds a single status line. Longer lines are returned
	// truncated at the bound.
	MaxLineLength = 16384

	// MaxExactRead bounds ReadExact: the largest beanstalkd body plus its
	// CRLF.
	MaxExactRead uint64 = math.MaxUint32 + 2
)

// Stream is the duplex byte stream the client talks over.
type Stream interface {
	Write(p []byte) (int, error)

	// ReadLine returns the next line without its CRLF.
	ReadLine() ([]byte, error)

	// ReadExact returns exactly n bytes, reading as often as needed.
	ReadExact(n int) ([]byte, error)

	// SetReadTimeout bounds the following reads. Zero disables the bound.
	SetReadTimeout(d time.Duration) error

	Close() error
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Conn is a Stream over an io.ReadWriteCloser.
type Conn struct {
	conn io.ReadWriteCloser
	r    *bufio.Reader

	log   *zap.Logger
	trace bool
}

var _ Stream = (*Conn)(nil)

// NewConn wraps conn. log may be nil.
func NewConn(conn io.ReadWriteCloser, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}

	return &Conn{
		conn: conn,
		r:    bufio.NewReaderSize(conn, MaxLineLength),
		log:  log,
	}
}

// Dial opens a TCP connection to options.Host and options.Port.
func Dial(ctx context.Context, options Options) (*Conn, error) {
	host := options.Host
	if host == "" {
		host = DefaultHost
	}

	port := options.Port
	if port == 0 {
		port = DefaultPort
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{
		Timeout:   options.ConnectTimeout,
		KeepAlive: -1,
	}
	if options.Persistent {
		dialer.KeepAlive = keepAlivePeriod
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	log.Debug("Connected",
		zap.String("addr", addr),
		zap.String("localAddr", conn.LocalAddr().String()),
		zap.Bool("persistent", options.Persistent))

	c := NewConn(conn, log)
	c.trace = options.Trace

	return c, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.trace {
		c.log.Debug("write", zap.ByteString("data", p))
	}

	return c.conn.Write(p)
}

// ReadLine reads up to and including the next '\n' and returns the line
// without its terminator. A line that does not fit in MaxLineLength bytes is
// returned as read so far; the rest of it is left in the stream.
func (c *Conn) ReadLine() ([]byte, error) {
	line, err := c.r.ReadSlice('\n')
	if err != nil && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}

	out := make([]byte, len(line))
	copy(out, line)

	out = bytes.TrimSuffix(out, []byte("\n"))
	out = bytes.TrimSuffix(out, []byte("\r"))

	if c.trace {
		c.log.Debug("read", zap.ByteString("line", out))
	}

	return out, nil
}

func (c *Conn) ReadExact(n int) ([]byte, error) {
	if n < 0 || uint64(n) > MaxExactRead {
		return nil, fmt.Errorf("read length %d out of range", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(c.r, data); err != nil {
		return nil, err
	}

	if c.trace {
		c.log.Debug("read", zap.Int("bytes", n))
	}

	return data, nil
}

// SetReadTimeout sets a read deadline d from now on the underlying
// connection, or clears it when d is zero. Connections without deadlines
// ignore it.
func (c *Conn) SetReadTimeout(d time.Duration) error {
	dl, ok := c.conn.(deadliner)
	if !ok {
		return nil
	}

	if d <= 0 {
		return dl.SetReadDeadline(time.Time{})
	}

	return dl.SetReadDeadline(time.Now().Add(d))
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
