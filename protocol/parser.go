package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

// Reader is the read half of a transport stream.
type Reader interface {
	// ReadLine returns the next line without its line terminator.
	ReadLine() ([]byte, error)

	// ReadExact returns exactly n bytes or an error.
	ReadExact(n int) ([]byte, error)
}

type reply struct {
	success []Status

	// body is set when the last of fields is the length of a body that
	// follows the success line.
	body   bool
	fields int
}

func (r reply) accepts(status Status) bool {
	for _, s := range r.success {
		if s == status {
			return true
		}
	}

	return false
}

var (
	replyStats = reply{success: []Status{StatusOK}, body: true, fields: 1}
	replyJob   = reply{success: []Status{StatusFound}, body: true, fields: 2}

	replies = map[Verb]reply{
		PUT:                {success: []Status{StatusInserted, StatusBuried}},
		USE:                {success: []Status{StatusUsing}},
		PAUSETUBE:          {success: []Status{StatusPaused}},
		RESERVE:            {success: []Status{StatusReserved}, body: true, fields: 2},
		RESERVEWITHTIMEOUT: {success: []Status{StatusReserved}, body: true, fields: 2},
		DELETE:             {success: []Status{StatusDeleted}},
		RELEASE:            {success: []Status{StatusReleased, StatusBuried}},
		BURY:               {success: []Status{StatusBuried}},
		TOUCH:              {success: []Status{StatusTouched}},
		WATCH:              {success: []Status{StatusWatching}},
		IGNORE:             {success: []Status{StatusWatching}},
		PEEK:               replyJob,
		PEEKREADY:          replyJob,
		PEEKDELAYED:        replyJob,
		PEEKBURIED:         replyJob,
		KICK:               {success: []Status{StatusKicked}},
		KICKJOB:            {success: []Status{StatusKicked}},
		STATSJOB:           replyStats,
		STATSTUBE:          replyStats,
		STATS:              replyStats,
		LISTTUBES:          replyStats,
		LISTTUBESWATCHED:   replyStats,
		LISTTUBEUSED:       {success: []Status{StatusUsing}},
		QUIT:               {},
	}
)

// IsVerb reports whether v is a command this package can encode and
// dispatch replies for.
func IsVerb(v Verb) bool {
	_, ok := replies[v]
	return ok
}

// ParseLine splits a reply line on single spaces. The first token is the
// status, the rest are fields. It never fails: tokens outside the
// vocabulary, including an empty line, yield StatusUnknown.
func ParseLine(line []byte) *Response {
	tokens := strings.Split(string(line), " ")

	return &Response{
		Status: ParseStatus(tokens[0]),
		Token:  tokens[0],
		Fields: tokens[1:],
	}
}

// ReadReply reads the reply to a command with the given verb.
//
// A success status returns the Response, with Body filled in for replies
// that carry one. Any other status, known or not, returns an *Error. Errors
// from r are returned unchanged so that a broken stream is never mistaken
// for a server reply.
func ReadReply(r Reader, verb Verb) (*Response, error) {
	expected, ok := replies[verb]
	if !ok {
		return nil, fmt.Errorf("%q: %w", verb, ErrUnknownVerb)
	}

	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}

	resp := ParseLine(line)

	if !expected.accepts(resp.Status) {
		return nil, newError(verb, resp, string(line))
	}

	if expected.body {
		if len(resp.Fields) != expected.fields {
			return nil, fmt.Errorf("%s expects %d fields, got %d: %w",
				resp.Token, expected.fields, len(resp.Fields), ErrMalformedReply)
		}

		size, err := resp.Int(expected.fields - 1)
		if err != nil {
			return nil, err
		}

		if resp.Body, err = ReadBody(r, size); err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// ReadBody reads a body of size bytes and its CRLF terminator, and returns
// the body without the terminator. Sizes above MaxBodySize are refused
// before anything is read.
func ReadBody(r Reader, size int) ([]byte, error) {
	if size < 0 || uint64(size) > MaxBodySize {
		return nil, fmt.Errorf("body of %d bytes exceeds %d: %w", size, MaxBodySize, ErrMalformedReply)
	}

	data, err := r.ReadExact(size + len(Terminal))
	if err != nil {
		return nil, err
	}

	if !bytes.HasSuffix(data, Terminal) {
		return nil, fmt.Errorf("body of %d bytes is not terminated by CRLF: %w", size, ErrMalformedReply)
	}

	return data[:size], nil
}

// ReadCommand reads a client command. It is the server side of Encode.
//
// For put the trailing byte count is consumed and the body read into
// Command.Body. A body larger than maxBody is discarded in chunks without
// being held, and the command is returned together with ErrJobTooBig. A body not followed by
// CRLF returns ErrExpectedCRLF.
func ReadCommand(r Reader, maxBody int) (*Command, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}

	tokens := strings.Split(string(line), " ")
	cmd := &Command{Verb: Verb(tokens[0]), Args: tokens[1:]}

	if !IsVerb(cmd.Verb) {
		return cmd, fmt.Errorf("failed to parse '%s': %w", string(line), ErrUnknownVerb)
	}

	if !cmd.hasBody() {
		return cmd, nil
	}

	if len(cmd.Args) != 4 {
		return cmd, fmt.Errorf("put expects 4 arguments, got %d: %w", len(cmd.Args), ErrBadFormat)
	}

	resp := &Response{Token: string(PUT), Fields: cmd.Args}
	size, err := resp.Int(3)
	if err != nil {
		return cmd, fmt.Errorf("%v: %w", err, ErrBadFormat)
	}
	cmd.Args = cmd.Args[:3]

	if size > maxBody {
		if err := discard(r, uint64(size)+uint64(len(Terminal))); err != nil {
			return nil, err
		}
		return cmd, ErrJobTooBig
	}

	data, err := r.ReadExact(size + len(Terminal))
	if err != nil {
		return nil, err
	}

	if !bytes.HasSuffix(data, Terminal) {
		return cmd, ErrExpectedCRLF
	}

	cmd.Body = data[:size]

	return cmd, nil
}

const discardChunk = 4096

// discard reads and drops n bytes from r.
func discard(r Reader, n uint64) error {
	for n > 0 {
		chunk := uint64(discardChunk)
		if n < chunk {
			chunk = n
		}

		if _, err := r.ReadExact(int(chunk)); err != nil {
			return err
		}
		n -= chunk
	}

	return nil
}

// RemoveTrailingCR strips one trailing '\r' from data, if present.
func RemoveTrailingCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[:len(data)-1]
	}

	return data
}
