package testserver

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/protocol"
	"github.com/mariuswilms/beanstalk/transport"
)

// session is the per connection state: the used tube and the watch list.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc

	stream *transport.Conn
	queue  *queue

	used    string
	watched []string

	log *zap.Logger
}

func newSession(parentCtx context.Context, stream *transport.Conn, q *queue, log *zap.Logger) *session {
	ctx, cancel := context.WithCancel(parentCtx)

	s := &session{
		ctx:     ctx,
		cancel:  cancel,
		stream:  stream,
		queue:   q,
		used:    protocol.DefaultTube,
		watched: []string{protocol.DefaultTube},
		log:     log,
	}

	q.mu.Lock()
	q.connections++
	t := q.tube(protocol.DefaultTube)
	t.using++
	t.watching++
	q.mu.Unlock()

	return s
}

func (s *session) Close() error {
	s.cancel()
	return s.stream.Close()
}

// ReadLoop serves commands until the client quits or the stream fails.
func (s *session) ReadLoop() {
	defer s.cleanup()

	for {
		cmd, err := protocol.ReadCommand(s.stream, s.queue.maxJobSize)
		if cmd == nil {
			if err != nil && s.ctx.Err() == nil {
				s.log.Debug("Client stream ended", zap.Error(err))
			}
			return
		}

		if err != nil {
			if werr := s.reject(err); werr != nil {
				s.log.Warn("Failed to reject command", zap.Error(werr))
				return
			}
			continue
		}

		if cmd.Verb == protocol.QUIT {
			s.log.Debug("Client QUIT, exiting...")
			return
		}

		s.queue.mu.Lock()
		s.queue.cmds[cmd.Verb]++
		s.queue.mu.Unlock()

		if err := s.dispatch(cmd); err != nil {
			if s.ctx.Err() == nil {
				s.log.Warn("Failed to reply", zap.String("command", string(cmd.Verb)), zap.Error(err))
			}
			return
		}
	}
}

func (s *session) cleanup() {
	q := s.queue

	q.mu.Lock()
	q.connections--
	q.disconnect(s)

	q.tube(s.used).using--
	q.gc(s.used)
	for _, name := range s.watched {
		q.tube(name).watching--
		q.gc(name)
	}
	q.mu.Unlock()
}

func (s *session) reject(err error) error {
	switch {
	case errors.Is(err, protocol.ErrJobTooBig):
		return protocol.WriteReply(s.stream, protocol.StatusJobTooBig)
	case errors.Is(err, protocol.ErrExpectedCRLF):
		return protocol.WriteReply(s.stream, protocol.StatusExpectedCRLF)
	case errors.Is(err, protocol.ErrUnknownVerb):
		return protocol.WriteReply(s.stream, protocol.StatusUnknownCommand)
	default:
		return protocol.WriteReply(s.stream, protocol.StatusBadFormat)
	}
}

type args []string

func (a args) uint(i int, bits int) (uint64, bool) {
	if i >= len(a) {
		return 0, false
	}

	n, err := strconv.ParseUint(a[i], 10, bits)
	return n, err == nil
}

func (a args) seconds(i int) (time.Duration, bool) {
	n, ok := a.uint(i, 32)
	return time.Duration(n) * time.Second, ok
}

func (a args) tube(i int) (string, bool) {
	if i >= len(a) || protocol.CheckTubeName(a[i]) != nil {
		return "", false
	}

	return a[i], true
}

func (s *session) dispatch(cmd *protocol.Command) error {
	a := args(cmd.Args)
	q := s.queue
	w := s.stream

	switch cmd.Verb {
	case protocol.RESERVE, protocol.RESERVEWITHTIMEOUT:
		return s.reserve(cmd.Verb, a)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	switch cmd.Verb {
	case protocol.PUT:
		pri, ok1 := a.uint(0, 32)
		delay, ok2 := a.seconds(1)
		ttr, ok3 := a.seconds(2)
		if !ok1 || !ok2 || !ok3 {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		j := q.put(s.used, uint32(pri), delay, ttr, cmd.Body)
		return protocol.WriteReply(w, protocol.StatusInserted, protocol.FormatUint(j.id))

	case protocol.USE:
		name, ok := a.tube(0)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		old := s.used
		q.tube(old).using--
		q.tube(name).using++
		s.used = name
		q.gc(old)

		return protocol.WriteReply(w, protocol.StatusUsing, name)

	case protocol.WATCH:
		name, ok := a.tube(0)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		if !s.watches(name) {
			s.watched = append(s.watched, name)
			q.tube(name).watching++
		}

		return protocol.WriteReply(w, protocol.StatusWatching, strconv.Itoa(len(s.watched)))

	case protocol.IGNORE:
		name, ok := a.tube(0)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		if s.watches(name) {
			if len(s.watched) == 1 {
				return protocol.WriteReply(w, protocol.StatusNotIgnored)
			}

			s.unwatch(name)
			q.tube(name).watching--
			q.gc(name)
		}

		return protocol.WriteReply(w, protocol.StatusWatching, strconv.Itoa(len(s.watched)))

	case protocol.DELETE:
		id, ok := a.uint(0, 64)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		return s.reply(q.delete(s, id), protocol.StatusDeleted)

	case protocol.RELEASE:
		id, ok1 := a.uint(0, 64)
		pri, ok2 := a.uint(1, 32)
		delay, ok3 := a.seconds(2)
		if !ok1 || !ok2 || !ok3 {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		return s.reply(q.release(s, id, uint32(pri), delay), protocol.StatusReleased)

	case protocol.BURY:
		id, ok1 := a.uint(0, 64)
		pri, ok2 := a.uint(1, 32)
		if !ok1 || !ok2 {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		return s.reply(q.bury(s, id, uint32(pri)), protocol.StatusBuried)

	case protocol.TOUCH:
		id, ok := a.uint(0, 64)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		return s.reply(q.touch(s, id), protocol.StatusTouched)

	case protocol.PEEK:
		id, ok := a.uint(0, 64)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		return s.found(q.find(id))

	case protocol.PEEKREADY:
		return s.found(q.peek(s.used, protocol.StateReady, before))

	case protocol.PEEKDELAYED:
		return s.found(q.peek(s.used, protocol.StateDelayed, byReadyAt))

	case protocol.PEEKBURIED:
		return s.found(q.peek(s.used, protocol.StateBuried, byBuriedSeq))

	case protocol.KICK:
		bound, ok := a.uint(0, 32)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		return protocol.WriteReply(w, protocol.StatusKicked, strconv.Itoa(q.kick(s.used, int(bound))))

	case protocol.KICKJOB:
		id, ok := a.uint(0, 64)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		return s.reply(q.kickJob(id), protocol.StatusKicked)

	case protocol.PAUSETUBE:
		name, ok1 := a.tube(0)
		delay, ok2 := a.seconds(1)
		if !ok1 || !ok2 {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		return s.reply(q.pause(name, delay), protocol.StatusPaused)

	case protocol.STATSJOB:
		id, ok := a.uint(0, 64)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		m, err := q.statsJob(id)
		return s.yaml(err, protocol.EncodeStats(m))

	case protocol.STATSTUBE:
		name, ok := a.tube(0)
		if !ok {
			return protocol.WriteReply(w, protocol.StatusBadFormat)
		}

		m, err := q.statsTube(name)
		return s.yaml(err, protocol.EncodeStats(m))

	case protocol.STATS:
		return s.yaml(nil, protocol.EncodeStats(q.stats()))

	case protocol.LISTTUBES:
		return s.yaml(nil, protocol.EncodeList(q.tubeNames()))

	case protocol.LISTTUBESWATCHED:
		return s.yaml(nil, protocol.EncodeList(s.watched))

	case protocol.LISTTUBEUSED:
		return protocol.WriteReply(w, protocol.StatusUsing, s.used)
	}

	return protocol.WriteReply(w, protocol.StatusUnknownCommand)
}

// reserve runs without q.mu held, it may block.
func (s *session) reserve(verb protocol.Verb, a args) error {
	var timeout time.Duration
	bounded := verb == protocol.RESERVEWITHTIMEOUT

	if bounded {
		var ok bool
		if timeout, ok = a.seconds(0); !ok {
			return protocol.WriteReply(s.stream, protocol.StatusBadFormat)
		}
	}

	j, err := s.queue.reserve(s.ctx, s, timeout, bounded)
	switch {
	case errors.Is(err, errTimedOut):
		return protocol.WriteReply(s.stream, protocol.StatusTimedOut)
	case errors.Is(err, errDeadlineSoon):
		return protocol.WriteReply(s.stream, protocol.StatusDeadlineSoon)
	case err != nil:
		return err
	}

	return protocol.WriteReplyBody(s.stream, protocol.StatusReserved, j.body, protocol.FormatUint(j.id))
}

func (s *session) reply(err error, success protocol.Status) error {
	switch {
	case errors.Is(err, errNotTouched):
		return protocol.WriteReply(s.stream, protocol.StatusNotTouched)
	case err != nil:
		return protocol.WriteReply(s.stream, protocol.StatusNotFound)
	}

	return protocol.WriteReply(s.stream, success)
}

func (s *session) found(j *job, err error) error {
	if err != nil {
		return protocol.WriteReply(s.stream, protocol.StatusNotFound)
	}

	return protocol.WriteReplyBody(s.stream, protocol.StatusFound, j.body, protocol.FormatUint(j.id))
}

func (s *session) yaml(err error, payload []byte) error {
	if err != nil {
		return protocol.WriteReply(s.stream, protocol.StatusNotFound)
	}

	return protocol.WriteReplyBody(s.stream, protocol.StatusOK, payload)
}

func (s *session) watches(name string) bool {
	for _, t := range s.watched {
		if t == name {
			return true
		}
	}

	return false
}

func (s *session) unwatch(name string) {
	for i, t := range s.watched {
		if t == name {
			s.watched = append(s.watched[:i], s.watched[i+1:]...)
			return
		}
	}
}
