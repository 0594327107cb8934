package protocol

import (
	"strconv"
	"time"
)

// Command is a single client request. Only put carries a Body.
type Command struct {
	Verb Verb
	Args []string
	Body []byte
}

func (c *Command) hasBody() bool {
	return c.Verb == PUT
}

func newCommand(verb Verb, args ...string) *Command {
	return &Command{Verb: verb, Args: args}
}

func newTubeCommand(verb Verb, tube string, args ...string) (*Command, error) {
	if err := CheckTubeName(tube); err != nil {
		return nil, err
	}

	return newCommand(verb, append([]string{tube}, args...)...), nil
}

// Put builds a put command. The body length is appended when encoding.
func Put(pri uint32, delay, ttr time.Duration, body []byte) *Command {
	if body == nil {
		body = []byte{}
	}

	return &Command{
		Verb: PUT,
		Args: []string{FormatUint(uint64(pri)), FormatSeconds(delay), FormatSeconds(ttr)},
		Body: body,
	}
}

func Use(tube string) (*Command, error) {
	return newTubeCommand(USE, tube)
}

func PauseTube(tube string, delay time.Duration) (*Command, error) {
	return newTubeCommand(PAUSETUBE, tube, FormatSeconds(delay))
}

func Reserve() *Command {
	return newCommand(RESERVE)
}

func ReserveWithTimeout(timeout time.Duration) *Command {
	return newCommand(RESERVEWITHTIMEOUT, FormatSeconds(timeout))
}

func Delete(id uint64) *Command {
	return newCommand(DELETE, FormatUint(id))
}

func Release(id uint64, pri uint32, delay time.Duration) *Command {
	return newCommand(RELEASE, FormatUint(id), FormatUint(uint64(pri)), FormatSeconds(delay))
}

func Bury(id uint64, pri uint32) *Command {
	return newCommand(BURY, FormatUint(id), FormatUint(uint64(pri)))
}

func Touch(id uint64) *Command {
	return newCommand(TOUCH, FormatUint(id))
}

func Watch(tube string) (*Command, error) {
	return newTubeCommand(WATCH, tube)
}

func Ignore(tube string) (*Command, error) {
	return newTubeCommand(IGNORE, tube)
}

func Peek(id uint64) *Command {
	return newCommand(PEEK, FormatUint(id))
}

func PeekReady() *Command {
	return newCommand(PEEKREADY)
}

func PeekDelayed() *Command {
	return newCommand(PEEKDELAYED)
}

func PeekBuried() *Command {
	return newCommand(PEEKBURIED)
}

// Kick builds a kick command. A negative bound is sent as 0.
func Kick(bound int) *Command {
	if bound < 0 {
		bound = 0
	}

	return newCommand(KICK, strconv.Itoa(bound))
}

func KickJob(id uint64) *Command {
	return newCommand(KICKJOB, FormatUint(id))
}

func StatsJob(id uint64) *Command {
	return newCommand(STATSJOB, FormatUint(id))
}

func StatsTube(tube string) (*Command, error) {
	return newTubeCommand(STATSTUBE, tube)
}

func StatsCmd() *Command {
	return newCommand(STATS)
}

func ListTubes() *Command {
	return newCommand(LISTTUBES)
}

func ListTubeUsed() *Command {
	return newCommand(LISTTUBEUSED)
}

func ListTubesWatched() *Command {
	return newCommand(LISTTUBESWATCHED)
}

func Quit() *Command {
	return newCommand(QUIT)
}

// FormatUint formats n as plain decimal.
func FormatUint(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// FormatSeconds truncates d to whole seconds. Negative durations become 0.
func FormatSeconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	return strconv.FormatInt(int64(d/time.Second), 10)
}
