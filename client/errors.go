package client

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNotConnected is returned by every command sent on a Conn that has
	// no open stream. Call Connect first.
	ErrNotConnected = errors.New("beanstalk: not connected")

	errPoolClosed = errors.New("beanstalk: connection pool closed")

	// ErrPoolExhausted is returned by Pool.Get when MaxActive connections
	// are in use and Wait is false.
	ErrPoolExhausted = errors.New("beanstalk: connection pool exhausted")
)

// DefaultErrorLogSize is the number of errors a Conn remembers.
const DefaultErrorLogSize = 200

// ConnError records a failure of the stream itself while running Op. After
// a ConnError the Conn is disconnected.
type ConnError struct {
	Op  string
	Err error
}

func (e ConnError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e ConnError) Unwrap() error {
	return e.Err
}

// ErrorEntry is one remembered failure.
type ErrorEntry struct {
	Time time.Time
	Op   string
	Err  error
}

func (e ErrorEntry) String() string {
	return fmt.Sprintf("%s %s: %v", e.Time.UTC().Format(time.RFC3339), e.Op, e.Err)
}

// ErrorLog is a bounded ring of the most recent errors.
type ErrorLog struct {
	mu      sync.Mutex
	entries []ErrorEntry
	next    int
	full    bool
}

func NewErrorLog(size int) *ErrorLog {
	if size < 1 {
		size = DefaultErrorLogSize
	}

	return &ErrorLog{entries: make([]ErrorEntry, size)}
}

func (l *ErrorLog) Add(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = ErrorEntry{Time: nowFunc(), Op: op, Err: err}
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Entries returns the remembered errors, oldest first.
func (l *ErrorLog) Entries() []ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		return append([]ErrorEntry(nil), l.entries[:l.next]...)
	}

	out := make([]ErrorEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.full {
		return len(l.entries)
	}

	return l.next
}

func (l *ErrorLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		l.entries[i] = ErrorEntry{}
	}
	l.next = 0
	l.full = false
}
