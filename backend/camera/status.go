package camera

import (
	"context"
	"sync"
	"time"
)

type FocusState int

const (
	FocusLost FocusState = iota
	FocusAcquired
)

func (s FocusState) String() string {
	if s == FocusAcquired {
		return "acquired"
	}
	return "lost"
}

type ShutterState int

const (
	ShutterReady ShutterState = iota
	ShutterActive
)

func (s ShutterState) String() string {
	if s == ShutterActive {
		return "active"
	}
	return "ready"
}

type RecordingState int

const (
	RecordingStopped RecordingState = iota
	RecordingStarted
)

func (s RecordingState) String() string {
	if s == RecordingStarted {
		return "started"
	}
	return "stopped"
}

// Status is the last known state of the camera controls.
type Status struct {
	Focus      FocusState     `json:"focus"`
	Shutter    ShutterState   `json:"shutter"`
	Recording  RecordingState `json:"recording"`
	LastUpdate time.Time      `json:"lastUpdate"`
}

func (s Status) FocusAcquired() bool { return s.Focus == FocusAcquired }
func (s Status) ShutterActive() bool { return s.Shutter == ShutterActive }
func (s Status) IsRecording() bool   { return s.Recording == RecordingStarted }

func (s Status) apply(u StatusUpdate) Status {
	switch u.Kind {
	case KindFocus:
		s.Focus = FocusLost
		if u.On {
			s.Focus = FocusAcquired
		}
	case KindShutter:
		s.Shutter = ShutterReady
		if u.On {
			s.Shutter = ShutterActive
		}
	case KindRecording:
		s.Recording = RecordingStopped
		if u.On {
			s.Recording = RecordingStarted
		}
	}
	return s
}

// StatusStore holds the camera status. Updates arrive from the BLE stack's
// notification context; readers and waiters live on the control loop.
type StatusStore struct {
	mu       sync.Mutex
	status   Status
	changed  chan struct{}
	now      func() time.Time
	onChange func(Status)
}

func NewStatusStore() *StatusStore {
	return &StatusStore{
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// OnChange registers a hook called after every applied update or reset,
// outside the store lock.
func (s *StatusStore) OnChange(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *StatusStore) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *StatusStore) Apply(u StatusUpdate) {
	s.mu.Lock()
	s.status = s.status.apply(u)
	s.status.LastUpdate = s.now()
	snapshot, hook := s.signalLocked()
	s.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
}

// HandleNotification decodes raw notification bytes and applies them.
// Unrecognized payloads are dropped by Decode.
func (s *StatusStore) HandleNotification(b []byte) {
	if u, ok := Decode(b); ok {
		s.Apply(u)
	}
}

// Reset returns the status to its disconnected defaults.
func (s *StatusStore) Reset() {
	s.mu.Lock()
	s.status = Status{}
	snapshot, hook := s.signalLocked()
	s.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
}

func (s *StatusStore) signalLocked() (Status, func(Status)) {
	close(s.changed)
	s.changed = make(chan struct{})
	return s.status, s.onChange
}

// WaitFor blocks until pred holds for the current status or ctx is done.
func (s *StatusStore) WaitFor(ctx context.Context, pred func(Status) bool) error {
	for {
		s.mu.Lock()
		ok := pred(s.status)
		ch := s.changed
		s.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
