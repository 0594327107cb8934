package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"unicode"
)

var (
	Terminal = []byte("\r\n")
	space    = []byte(" ")
)

// Encode returns the exact bytes sent for c. For put the body length is
// appended to the arguments and the body follows on its own line.
func (c *Command) Encode() []byte {
	size := len(c.Verb) + len(Terminal)
	for _, arg := range c.Args {
		size += len(arg) + 1
	}
	if c.hasBody() {
		size += 21 + len(c.Body) + len(Terminal)
	}

	b := bytes.NewBuffer(make([]byte, 0, size))
	b.WriteString(string(c.Verb))

	for _, arg := range c.Args {
		b.Write(space)
		b.WriteString(arg)
	}

	if c.hasBody() {
		b.Write(space)
		b.WriteString(strconv.Itoa(len(c.Body)))
		b.Write(Terminal)
		b.Write(c.Body)
	}

	b.Write(Terminal)

	return b.Bytes()
}

// WriteCommand writes c to w in a single Write.
func WriteCommand(w io.Writer, c *Command) error {
	_, err := w.Write(c.Encode())
	return err
}

// WriteReply writes a status line made of status and fields.
func WriteReply(w io.Writer, status Status, fields ...string) error {
	_, err := w.Write(replyLine(status, fields))
	return err
}

// WriteReplyBody writes a status line followed by body. The body length is
// appended to fields.
func WriteReplyBody(w io.Writer, status Status, body []byte, fields ...string) error {
	fields = append(fields, strconv.Itoa(len(body)))

	b := replyLine(status, fields)
	b = append(b, body...)
	b = append(b, Terminal...)

	_, err := w.Write(b)
	return err
}

func replyLine(status Status, fields []string) []byte {
	b := []byte(status.String())
	for _, f := range fields {
		b = append(b, ' ')
		b = append(b, f...)
	}

	return append(b, Terminal...)
}

// CheckTubeName reports whether name can be sent as a tube argument without
// breaking the line framing.
func CheckTubeName(name string) error {
	if name == "" {
		return fmt.Errorf("empty tube name: %w", ErrInvalidTubeName)
	}

	if len(name) > MaxTubeNameLength {
		return fmt.Errorf("tube name is %d bytes, the limit is %d: %w",
			len(name), MaxTubeNameLength, ErrInvalidTubeName)
	}

	for _, r := range name {
		if unicode.IsSpace(r) {
			return fmt.Errorf("tube name %q contains whitespace: %w", name, ErrInvalidTubeName)
		}
	}

	return nil
}
