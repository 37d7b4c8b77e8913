package astro

import "time"

type State uint8

const (
	Idle State = iota
	InitialDelay
	Exposing
	Interval
	Paused
	Stopped
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InitialDelay:
		return "initial-delay"
	case Exposing:
		return "exposing"
	case Interval:
		return "interval"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Error:
		return "error"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Running reports whether the state belongs to an active sequence. Paused
// counts as running: it can still be stopped.
func (s State) Running() bool {
	return s != Idle && s != Stopped && s != Error
}

type Status struct {
	State                 State     `json:"state"`
	CompletedFrames       uint16    `json:"completedFrames"`
	TotalFrames           uint16    `json:"totalFrames"`
	SequenceStartTime     time.Time `json:"sequenceStartTime"`
	CurrentFrameStartTime time.Time `json:"currentFrameStartTime"`
	ElapsedSec            uint32    `json:"elapsedSec"`
	RemainingSec          uint32    `json:"remainingSec"`
	CameraConnected       bool      `json:"cameraConnected"`
	ErrorCode             ErrorCode `json:"errorCode"`
}

type EventKind int

const (
	StatusChanged EventKind = iota
	ParametersChanged
)

func (k EventKind) String() string {
	if k == ParametersChanged {
		return "parameters"
	}
	return "status"
}

// Event is published on every transition, status or parameter change.
type Event struct {
	Kind       EventKind
	RunID      string
	Parameters Parameters
	Status     Status
}
