package protocol

import "math"

// Verb is the name of a client command as it appears on the wire.
type Verb string

const (
	PUT                Verb = "put"
	USE                Verb = "use"
	RESERVE            Verb = "reserve"
	RESERVEWITHTIMEOUT Verb = "reserve-with-timeout"
	DELETE             Verb = "delete"
	RELEASE            Verb = "release"
	BURY               Verb = "bury"
	TOUCH              Verb = "touch"
	WATCH              Verb = "watch"
	IGNORE             Verb = "ignore"
	PEEK               Verb = "peek"
	PEEKREADY          Verb = "peek-ready"
	PEEKDELAYED        Verb = "peek-delayed"
	PEEKBURIED         Verb = "peek-buried"
	KICK               Verb = "kick"
	KICKJOB            Verb = "kick-job"
	STATSJOB           Verb = "stats-job"
	STATSTUBE          Verb = "stats-tube"
	STATS              Verb = "stats"
	LISTTUBES          Verb = "list-tubes"
	LISTTUBEUSED       Verb = "list-tube-used"
	LISTTUBESWATCHED   Verb = "list-tubes-watched"
	PAUSETUBE          Verb = "pause-tube"
	QUIT               Verb = "quit"
)

const (
	// MinPriority is the most urgent priority a job can have.
	MinPriority uint32 = 0

	// MaxPriority is the least urgent priority a job can have.
	MaxPriority uint32 = math.MaxUint32

	// DefaultPriority is what beanstalkd's own clients use when no
	// priority is given.
	DefaultPriority uint32 = 1024

	// UrgentPriority is the bound below which beanstalkd counts a job as
	// urgent in its statistics.
	UrgentPriority uint32 = 1024

	// MaxTubeNameLength is the longest tube name the server accepts.
	MaxTubeNameLength = 200

	// MaxBodySize is the largest body beanstalkd can be configured to
	// accept (its -z limit). Longer body lengths in a reply are malformed.
	MaxBodySize uint64 = math.MaxUint32

	// DefaultTube is the tube every connection uses and watches initially.
	DefaultTube = "default"
)

// JobState is the server-side state of a job. The client never tracks it;
// it only appears in stats-job replies.
type JobState int

const (
	StateUnknown JobState = iota
	StateReady
	StateDelayed
	StateReserved
	StateBuried
	StateDeleted
)

var jobStateNames = map[JobState]string{
	StateReady:    "ready",
	StateDelayed:  "delayed",
	StateReserved: "reserved",
	StateBuried:   "buried",
	StateDeleted:  "deleted",
}

func (s JobState) String() string {
	if name, ok := jobStateNames[s]; ok {
		return name
	}

	return "unknown"
}

// ParseJobState maps the state value of a stats-job reply to a JobState.
func ParseJobState(s string) JobState {
	for state, name := range jobStateNames {
		if name == s {
			return state
		}
	}

	return StateUnknown
}
