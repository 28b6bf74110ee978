package playback

import (
	"fmt"
	"strings"

	"github.com/samse/lottiekit/internal/shared"
)

// State is the controller's lifecycle state.
type State int

const (
	// Idle: no composition.
	Idle State = iota
	// Ready: composition loaded, frame clock stopped.
	Ready
	// Playing: frame clock running.
	Playing
	// PlayingSuspended: playback wanted but the host is hidden; frame frozen.
	PlayingSuspended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case PlayingSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// RepeatMode decides what happens at the end of a pass when repeats remain.
type RepeatMode int

const (
	// Restart jumps back to the start of the range.
	Restart RepeatMode = iota + 1
	// Reverse plays the range backwards, then forwards, and so on.
	Reverse
)

// Infinite repeats forever.
const Infinite = -1

func (m RepeatMode) String() string {
	switch m {
	case Restart:
		return "restart"
	case Reverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// ParseRepeatMode reads "restart" or "reverse".
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "restart", "":
		return Restart, nil
	case "reverse":
		return Reverse, nil
	default:
		return 0, fmt.Errorf("%w: repeat mode %q", shared.ErrInvalidArgument, s)
	}
}

// PlaybackState is a read-only snapshot of the controller.
type PlaybackState struct {
	State                 State
	CurrentFrame          float64
	MinFrame              float64
	MaxFrame              float64
	Progress              float64
	Speed                 float64
	RepeatMode            RepeatMode
	RepeatCount           int
	IsPlaying             bool
	SuspendedByVisibility bool
}

// EventKind classifies controller events.
type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
	EventCancel
	EventRepeat
	EventPause
	EventResume
	EventUpdate
)

func (k EventKind) String() string {
	return [...]string{"start", "end", "cancel", "repeat", "pause", "resume", "update"}[k]
}

// Event is delivered to listeners on the presentation context.
type Event struct {
	Kind     EventKind
	Frame    float64
	Progress float64
}

// ListenerID identifies a registered listener.
type ListenerID uint64
