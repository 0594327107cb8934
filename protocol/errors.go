package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("job or tube not found")
	ErrBuried           = errors.New("job buried")
	ErrJobTooBig        = errors.New("job body exceeds the server limit")
	ErrExpectedCRLF     = errors.New("job body was not followed by CRLF")
	ErrDraining         = errors.New("server is draining and refuses new jobs")
	ErrDeadlineSoon     = errors.New("a reserved job's ttr is about to expire")
	ErrTimedOut         = errors.New("timed out waiting for a job")
	ErrNotTouched       = errors.New("job is not reserved by this connection")
	ErrNotIgnored       = errors.New("cannot ignore the only watched tube")
	ErrOutOfMemory      = errors.New("server is out of memory")
	ErrInternalError    = errors.New("server internal error")
	ErrBadFormat        = errors.New("server rejected a badly formatted command")
	ErrUnknownCommand   = errors.New("server does not know the command")
	ErrUnexpectedStatus = errors.New("unexpected reply status")

	// ErrMalformedReply is returned when a reply has a known status but its
	// fields or body framing cannot be parsed.
	ErrMalformedReply = errors.New("malformed reply")

	ErrInvalidTubeName = errors.New("invalid tube name")

	ErrUnknownVerb = errors.New("unknown command verb")
)

var statusErrors = map[Status]error{
	StatusNotFound:       ErrNotFound,
	StatusBuried:         ErrBuried,
	StatusJobTooBig:      ErrJobTooBig,
	StatusExpectedCRLF:   ErrExpectedCRLF,
	StatusDraining:       ErrDraining,
	StatusDeadlineSoon:   ErrDeadlineSoon,
	StatusTimedOut:       ErrTimedOut,
	StatusNotTouched:     ErrNotTouched,
	StatusNotIgnored:     ErrNotIgnored,
	StatusOutOfMemory:    ErrOutOfMemory,
	StatusInternalError:  ErrInternalError,
	StatusBadFormat:      ErrBadFormat,
	StatusUnknownCommand: ErrUnknownCommand,
}

// Error is a reply whose status is not a success for the command that was
// sent. It is an expected outcome, not a broken connection.
type Error struct {
	Verb   Verb
	Status Status

	// Token is the status token as received, which is the only record of
	// statuses outside the vocabulary.
	Token string

	Line string
}

func newError(verb Verb, resp *Response, line string) *Error {
	return &Error{
		Verb:   verb,
		Status: resp.Status,
		Token:  resp.Token,
		Line:   line,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Verb, e.Token)
}

// Unwrap returns the sentinel matching the status, so callers can use
// errors.Is(err, protocol.ErrNotFound).
func (e *Error) Unwrap() error {
	if err, ok := statusErrors[e.Status]; ok {
		return err
	}

	return ErrUnexpectedStatus
}

// StatusOf returns the reply status carried by err, or StatusUnknown if err
// is not a protocol error.
func StatusOf(err error) Status {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Status
	}

	return StatusUnknown
}
