package protocol

import (
	"fmt"
	"strconv"
)

// Status is the first token of a server reply.
type Status int

const (
	// StatusUnknown is any token outside the protocol vocabulary.
	StatusUnknown Status = iota
	StatusInserted
	StatusBuried
	StatusExpectedCRLF
	StatusJobTooBig
	StatusDraining
	StatusUsing
	StatusPaused
	StatusReserved
	StatusDeadlineSoon
	StatusTimedOut
	StatusDeleted
	StatusNotFound
	StatusReleased
	StatusTouched
	StatusNotTouched
	StatusWatching
	StatusNotIgnored
	StatusFound
	StatusKicked
	StatusOK
	StatusOutOfMemory
	StatusInternalError
	StatusBadFormat
	StatusUnknownCommand
)

var statusTokens = map[Status]string{
	StatusInserted:       "INSERTED",
	StatusBuried:         "BURIED",
	StatusExpectedCRLF:   "EXPECTED_CRLF",
	StatusJobTooBig:      "JOB_TOO_BIG",
	StatusDraining:       "DRAINING",
	StatusUsing:          "USING",
	StatusPaused:         "PAUSED",
	StatusReserved:       "RESERVED",
	StatusDeadlineSoon:   "DEADLINE_SOON",
	StatusTimedOut:       "TIMED_OUT",
	StatusDeleted:        "DELETED",
	StatusNotFound:       "NOT_FOUND",
	StatusReleased:       "RELEASED",
	StatusTouched:        "TOUCHED",
	StatusNotTouched:     "NOT_TOUCHED",
	StatusWatching:       "WATCHING",
	StatusNotIgnored:     "NOT_IGNORED",
	StatusFound:          "FOUND",
	StatusKicked:         "KICKED",
	StatusOK:             "OK",
	StatusOutOfMemory:    "OUT_OF_MEMORY",
	StatusInternalError:  "INTERNAL_ERROR",
	StatusBadFormat:      "BAD_FORMAT",
	StatusUnknownCommand: "UNKNOWN_COMMAND",
}

var statusByToken = func() map[string]Status {
	m := make(map[string]Status, len(statusTokens))
	for status, token := range statusTokens {
		m[token] = status
	}
	return m
}()

// ParseStatus maps a reply token to its Status. Tokens outside the
// vocabulary map to StatusUnknown.
func ParseStatus(token string) Status {
	if status, ok := statusByToken[token]; ok {
		return status
	}

	return StatusUnknown
}

func (s Status) String() string {
	if token, ok := statusTokens[s]; ok {
		return token
	}

	return "UNKNOWN"
}

// Response is a single server reply: the status line split into its status
// and positional fields, plus the body for replies that carry one.
type Response struct {
	Status Status

	// Token is the status token exactly as received.
	Token string

	Fields []string

	Body []byte
}

// Uint returns field i as an unsigned 64 bit integer.
func (r *Response) Uint(i int) (uint64, error) {
	s, err := r.String(i)
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s field %d %q: %w", r.Token, i, s, ErrMalformedReply)
	}

	return n, nil
}

// Int returns field i as a non-negative int.
func (r *Response) Int(i int) (int, error) {
	n, err := r.Uint(i)
	if err != nil {
		return 0, err
	}

	if n > uint64(maxInt) {
		return 0, fmt.Errorf("%s field %d out of range: %w", r.Token, i, ErrMalformedReply)
	}

	return int(n), nil
}

// String returns field i verbatim.
func (r *Response) String(i int) (string, error) {
	if i < 0 || i >= len(r.Fields) {
		return "", fmt.Errorf("%s is missing field %d: %w", r.Token, i, ErrMalformedReply)
	}

	return r.Fields[i], nil
}

const maxInt = int(^uint(0) >> 1)
