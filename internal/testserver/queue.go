package testserver

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mariuswilms/beanstalk/protocol"
)

const pollInterval = 50 * time.Millisecond

var (
	errNotFound     = errors.New("not found")
	errTimedOut     = errors.New("timed out")
	errDeadlineSoon = errors.New("deadline soon")
	errNotTouched   = errors.New("not touched")
)

type job struct {
	id    uint64
	tube  string
	pri   uint32
	delay time.Duration
	ttr   time.Duration
	body  []byte

	state   protocol.JobState
	created time.Time

	// readyAt is when a delayed job becomes ready.
	readyAt time.Time

	// deadline is when a reserved job goes back to ready.
	deadline   time.Time
	reservedBy *session

	// buriedSeq orders buried jobs for kicking.
	buriedSeq uint64

	reserves, timeouts, releases, buries, kicks int
}

type tube struct {
	name        string
	pausedUntil time.Time
	pauseDelay  time.Duration
	using       int
	watching    int
	waiting     int
	deletes     int
	pauses      int
	totalJobs   int
}

// queue is the whole server state. Every method expects q.mu to be held
// unless it says otherwise.
type queue struct {
	mu sync.Mutex

	nextID    uint64
	buriedSeq uint64
	jobs      map[uint64]*job
	tubes     map[string]*tube

	// notify is closed and replaced whenever a job may have become ready.
	notify chan struct{}

	maxJobSize  int
	connections int
	started     time.Time
	now         func() time.Time

	cmds map[protocol.Verb]int
}

func newQueue(maxJobSize int, now func() time.Time) *queue {
	q := &queue{
		jobs:       make(map[uint64]*job),
		tubes:      make(map[string]*tube),
		notify:     make(chan struct{}),
		maxJobSize: maxJobSize,
		now:        now,
		cmds:       make(map[protocol.Verb]int),
	}
	q.started = now()
	q.tube(protocol.DefaultTube)

	return q
}

func (q *queue) tube(name string) *tube {
	t, ok := q.tubes[name]
	if !ok {
		t = &tube{name: name}
		q.tubes[name] = t
	}

	return t
}

// gc drops a tube nobody uses, watches or has jobs in.
func (q *queue) gc(name string) {
	t, ok := q.tubes[name]
	if !ok || name == protocol.DefaultTube || t.using > 0 || t.watching > 0 {
		return
	}

	for _, j := range q.jobs {
		if j.tube == name {
			return
		}
	}

	delete(q.tubes, name)
}

func (q *queue) signal() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// promote moves due delayed jobs and expired reservations to ready.
func (q *queue) promote() {
	now := q.now()

	for _, j := range q.jobs {
		switch {
		case j.state == protocol.StateDelayed && !now.Before(j.readyAt):
			j.state = protocol.StateReady

		case j.state == protocol.StateReserved && !now.Before(j.deadline):
			j.state = protocol.StateReady
			j.reservedBy = nil
			j.timeouts++
		}
	}
}

func before(a, b *job) bool {
	if a.pri != b.pri {
		return a.pri < b.pri
	}

	return a.id < b.id
}

func (q *queue) paused(t string) bool {
	return q.now().Before(q.tube(t).pausedUntil)
}

// nextReady returns the most urgent ready job in one of tubes.
func (q *queue) nextReady(tubes []string) *job {
	watched := make(map[string]bool, len(tubes))
	for _, t := range tubes {
		if !q.paused(t) {
			watched[t] = true
		}
	}

	var best *job
	for _, j := range q.jobs {
		if j.state != protocol.StateReady || !watched[j.tube] {
			continue
		}

		if best == nil || before(j, best) {
			best = j
		}
	}

	return best
}

func (q *queue) put(tubeName string, pri uint32, delay, ttr time.Duration, body []byte) *job {
	if ttr < time.Second {
		ttr = time.Second
	}

	q.nextID++
	j := &job{
		id:      q.nextID,
		tube:    tubeName,
		pri:     pri,
		delay:   delay,
		ttr:     ttr,
		body:    body,
		state:   protocol.StateReady,
		created: q.now(),
	}

	if delay > 0 {
		j.state = protocol.StateDelayed
		j.readyAt = j.created.Add(delay)
	}

	q.jobs[j.id] = j
	q.tube(tubeName).totalJobs++
	q.signal()

	return j
}

// reserve blocks until a job is ready in one of s's watched tubes. With
// bounded set it gives up after timeout. It takes q.mu itself.
func (q *queue) reserve(ctx context.Context, s *session, timeout time.Duration, bounded bool) (*job, error) {
	deadline := q.now().Add(timeout)

	for {
		q.mu.Lock()
		q.promote()

		if j := q.nextReady(s.watched); j != nil {
			j.state = protocol.StateReserved
			j.reservedBy = s
			j.deadline = q.now().Add(j.ttr)
			j.reserves++
			q.mu.Unlock()
			return j, nil
		}

		if q.deadlineSoon(s) {
			q.mu.Unlock()
			return nil, errDeadlineSoon
		}

		if bounded && !q.now().Before(deadline) {
			q.mu.Unlock()
			return nil, errTimedOut
		}

		for _, name := range s.watched {
			q.tube(name).waiting++
		}
		notify := q.notify
		q.mu.Unlock()

		wait := pollInterval
		if bounded {
			if left := deadline.Sub(q.now()); left < wait {
				wait = left
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-notify:
		case <-timer.C:
		case <-ctx.Done():
		}
		timer.Stop()

		q.mu.Lock()
		for _, name := range s.watched {
			q.tube(name).waiting--
		}
		q.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// deadlineSoon reports whether a job reserved by s has less than a second
// of its ttr left.
func (q *queue) deadlineSoon(s *session) bool {
	soon := q.now().Add(time.Second)
	for _, j := range q.jobs {
		if j.reservedBy == s && j.deadline.Before(soon) {
			return true
		}
	}

	return false
}

func (q *queue) find(id uint64) (*job, error) {
	q.promote()

	j, ok := q.jobs[id]
	if !ok {
		return nil, errNotFound
	}

	return j, nil
}

// owned returns the job if s holds its reservation.
func (q *queue) owned(s *session, id uint64) (*job, error) {
	j, err := q.find(id)
	if err != nil {
		return nil, err
	}

	if j.state != protocol.StateReserved || j.reservedBy != s {
		return nil, errNotFound
	}

	return j, nil
}

func (q *queue) delete(s *session, id uint64) error {
	j, err := q.find(id)
	if err != nil {
		return err
	}

	if j.state == protocol.StateReserved && j.reservedBy != s {
		return errNotFound
	}

	delete(q.jobs, id)
	q.tube(j.tube).deletes++
	q.gc(j.tube)

	return nil
}

func (q *queue) release(s *session, id uint64, pri uint32, delay time.Duration) error {
	j, err := q.owned(s, id)
	if err != nil {
		return err
	}

	j.pri = pri
	j.delay = delay
	j.reservedBy = nil
	j.releases++
	j.state = protocol.StateReady

	if delay > 0 {
		j.state = protocol.StateDelayed
		j.readyAt = q.now().Add(delay)
	}

	q.signal()

	return nil
}

func (q *queue) bury(s *session, id uint64, pri uint32) error {
	j, err := q.owned(s, id)
	if err != nil {
		return err
	}

	q.buriedSeq++
	j.pri = pri
	j.reservedBy = nil
	j.state = protocol.StateBuried
	j.buriedSeq = q.buriedSeq
	j.buries++

	return nil
}

func (q *queue) touch(s *session, id uint64) error {
	j, err := q.owned(s, id)
	if err != nil {
		return errNotTouched
	}

	j.deadline = q.now().Add(j.ttr)

	return nil
}

// peek returns the first job of tubeName in state, ordered by less.
func (q *queue) peek(tubeName string, state protocol.JobState, less func(a, b *job) bool) (*job, error) {
	q.promote()

	var best *job
	for _, j := range q.jobs {
		if j.tube != tubeName || j.state != state {
			continue
		}

		if best == nil || less(j, best) {
			best = j
		}
	}

	if best == nil {
		return nil, errNotFound
	}

	return best, nil
}

func byReadyAt(a, b *job) bool {
	if !a.readyAt.Equal(b.readyAt) {
		return a.readyAt.Before(b.readyAt)
	}

	return a.id < b.id
}

func byBuriedSeq(a, b *job) bool {
	return a.buriedSeq < b.buriedSeq
}

// kick moves up to bound buried jobs of tubeName to ready, or delayed jobs
// if none are buried.
func (q *queue) kick(tubeName string, bound int) int {
	state, less := protocol.StateBuried, byBuriedSeq
	if _, err := q.peek(tubeName, protocol.StateBuried, less); err != nil {
		state, less = protocol.StateDelayed, byReadyAt
	}

	n := 0
	for ; n < bound; n++ {
		j, err := q.peek(tubeName, state, less)
		if err != nil {
			break
		}

		j.state = protocol.StateReady
		j.kicks++
	}

	if n > 0 {
		q.signal()
	}

	return n
}

func (q *queue) kickJob(id uint64) error {
	j, err := q.find(id)
	if err != nil {
		return err
	}

	if j.state != protocol.StateBuried && j.state != protocol.StateDelayed {
		return errNotFound
	}

	j.state = protocol.StateReady
	j.kicks++
	q.signal()

	return nil
}

func (q *queue) pause(tubeName string, delay time.Duration) error {
	t, ok := q.tubes[tubeName]
	if !ok {
		return errNotFound
	}

	t.pauseDelay = delay
	t.pausedUntil = q.now().Add(delay)
	t.pauses++

	return nil
}

// disconnect puts the jobs reserved by s back into their ready queues.
func (q *queue) disconnect(s *session) {
	for _, j := range q.jobs {
		if j.reservedBy == s {
			j.reservedBy = nil
			j.state = protocol.StateReady
		}
	}

	q.signal()
}

type counts struct {
	urgent, ready, reserved, delayed, buried int
}

func (q *queue) count(match func(*job) bool) counts {
	var c counts
	for _, j := range q.jobs {
		if !match(j) {
			continue
		}

		switch j.state {
		case protocol.StateReady:
			c.ready++
			if j.pri < protocol.UrgentPriority {
				c.urgent++
			}
		case protocol.StateReserved:
			c.reserved++
		case protocol.StateDelayed:
			c.delayed++
		case protocol.StateBuried:
			c.buried++
		}
	}

	return c
}

func (q *queue) statsTube(name string) (map[string]string, error) {
	q.promote()

	t, ok := q.tubes[name]
	if !ok {
		return nil, errNotFound
	}

	c := q.count(func(j *job) bool { return j.tube == name })

	left := t.pausedUntil.Sub(q.now())
	if left < 0 {
		left = 0
	}

	return map[string]string{
		"name":                  t.name,
		"current-jobs-urgent":   strconv.Itoa(c.urgent),
		"current-jobs-ready":    strconv.Itoa(c.ready),
		"current-jobs-reserved": strconv.Itoa(c.reserved),
		"current-jobs-delayed":  strconv.Itoa(c.delayed),
		"current-jobs-buried":   strconv.Itoa(c.buried),
		"total-jobs":            strconv.Itoa(t.totalJobs),
		"current-using":         strconv.Itoa(t.using),
		"current-watching":      strconv.Itoa(t.watching),
		"current-waiting":       strconv.Itoa(t.waiting),
		"cmd-delete":            strconv.Itoa(t.deletes),
		"cmd-pause-tube":        strconv.Itoa(t.pauses),
		"pause":                 protocol.FormatSeconds(t.pauseDelay),
		"pause-time-left":       protocol.FormatSeconds(left),
	}, nil
}

func (q *queue) statsJob(id uint64) (map[string]string, error) {
	j, err := q.find(id)
	if err != nil {
		return nil, err
	}

	var left time.Duration
	switch j.state {
	case protocol.StateReserved:
		left = j.deadline.Sub(q.now())
	case protocol.StateDelayed:
		left = j.readyAt.Sub(q.now())
	}

	return map[string]string{
		"id":        protocol.FormatUint(j.id),
		"tube":      j.tube,
		"state":     j.state.String(),
		"pri":       protocol.FormatUint(uint64(j.pri)),
		"age":       protocol.FormatSeconds(q.now().Sub(j.created)),
		"delay":     protocol.FormatSeconds(j.delay),
		"ttr":       protocol.FormatSeconds(j.ttr),
		"time-left": protocol.FormatSeconds(left),
		"file":      "0",
		"reserves":  strconv.Itoa(j.reserves),
		"timeouts":  strconv.Itoa(j.timeouts),
		"releases":  strconv.Itoa(j.releases),
		"buries":    strconv.Itoa(j.buries),
		"kicks":     strconv.Itoa(j.kicks),
	}, nil
}

func (q *queue) stats() map[string]string {
	q.promote()

	c := q.count(func(*job) bool { return true })

	m := map[string]string{
		"current-jobs-urgent":   strconv.Itoa(c.urgent),
		"current-jobs-ready":    strconv.Itoa(c.ready),
		"current-jobs-reserved": strconv.Itoa(c.reserved),
		"current-jobs-delayed":  strconv.Itoa(c.delayed),
		"current-jobs-buried":   strconv.Itoa(c.buried),
		"total-jobs":            protocol.FormatUint(q.nextID),
		"max-job-size":          strconv.Itoa(q.maxJobSize),
		"current-tubes":         strconv.Itoa(len(q.tubes)),
		"current-connections":   strconv.Itoa(q.connections),
		"uptime":                protocol.FormatSeconds(q.now().Sub(q.started)),
		"version":               "testserver",
	}

	for verb, n := range q.cmds {
		m["cmd-"+string(verb)] = strconv.Itoa(n)
	}

	return m
}

func (q *queue) tubeNames() []string {
	names := make([]string, 0, len(q.tubes))
	for name := range q.tubes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
