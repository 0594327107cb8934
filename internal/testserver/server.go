// Package testserver is an in-memory beanstalkd for tests. It speaks the
// wire protocol over TCP and keeps every job in memory.
package testserver

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/transport"
)

// DefaultMaxJobSize matches beanstalkd's default -z.
const DefaultMaxJobSize = 65535

type Options struct {
	// Host to listen on, defaults to 127.0.0.1
	Host string

	// Port to listen on, zero picks a free port
	Port int

	MaxJobSize int

	Log *zap.Logger
}

type Server struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr     string
	listener net.Listener

	queue *queue

	mu          sync.Mutex
	activeConns map[*session]struct{}

	log *zap.Logger
}

func New(options Options) *Server {
	host := options.Host
	if host == "" {
		host = "127.0.0.1"
	}

	maxJobSize := options.MaxJobSize
	if maxJobSize < 1 {
		maxJobSize = DefaultMaxJobSize
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Server{
		addr:        net.JoinHostPort(host, strconv.Itoa(options.Port)),
		queue:       newQueue(maxJobSize, time.Now),
		activeConns: make(map[*session]struct{}),
		log:         log,
	}
}

// Start listens and serves connections until Close is called or parentCtx
// is cancelled. It returns once the listener is bound.
func (s *Server) Start(parentCtx context.Context) error {
	listener, err := reuseport.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel
	s.listener = listener
	s.addr = listener.Addr().String()

	s.log.Info("Listening", zap.String("addr", s.addr))

	s.stopWaiter.Add(1)
	go func() {
		defer s.stopWaiter.Done()
		s.acceptLoop(ctx)
	}()

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Warn("Listener did not close cleanly", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.addr)
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.addr)
	n, _ := strconv.Atoi(port)
	return n
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				s.log.Error("Failed to accept", zap.Error(err))
			}
			return
		}

		log := s.log.Named("conn").With(zap.String("remoteAddr", conn.RemoteAddr().String()))
		sess := newSession(ctx, transport.NewConn(conn, log), s.queue, log)
		s.addConn(sess)

		s.stopWaiter.Add(1)
		go func() {
			defer s.stopWaiter.Done()
			defer s.removeConn(sess)
			sess.ReadLoop()
		}()
	}
}

// Close immediately closes the listener and all client connections, and
// waits for them to finish.
func (s *Server) Close() (err error) {
	if s.cancel == nil {
		return nil
	}

	s.cancel()

	s.mu.Lock()
	for sess := range s.activeConns {
		if cerr := sess.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	s.mu.Unlock()

	s.stopWaiter.Wait()

	return err
}

func (s *Server) addConn(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeConns[sess] = struct{}{}
}

func (s *Server) removeConn(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activeConns[sess]; ok {
		delete(s.activeConns, sess)
		sess.Close()
	}
}
