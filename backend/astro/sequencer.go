package astro

import (
	"fmt"
	"sync"
	"time"

	"astroremote/backend/bus"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Camera is what the sequencer needs from the camera controller.
type Camera interface {
	Connected() bool
	StartBulb() error
	StopBulb() error
	EmergencyStop() error
}

// Sequencer runs timed bulb exposures. Every transition happens under mu,
// either from Tick on the control loop or from a command call; events are
// published after mu is released.
type Sequencer struct {
	mu             sync.Mutex
	camera         Camera
	events         *bus.Bus[Event]
	now            func() time.Time
	params         Parameters
	status         Status
	runID          string
	exposureActive bool
	pending        []Event
}

func NewSequencer(camera Camera, events *bus.Bus[Event]) *Sequencer {
	return &Sequencer{
		camera: camera,
		events: events,
		now:    time.Now,
		params: DefaultParameters(),
	}
}

func (s *Sequencer) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Sequencer) Running() bool {
	return s.Status().State.Running()
}

// RunID identifies the current sequence in logs and on the websocket stream.
func (s *Sequencer) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Start begins a new sequence from Idle, Stopped or Paused.
func (s *Sequencer) Start() error {
	s.mu.Lock()
	defer s.flush()

	switch s.status.State {
	case InitialDelay, Exposing, Interval, Error:
		return fmt.Errorf("start in %s: %w", s.status.State, ErrRejectedState)
	}

	s.status.CameraConnected = s.camera.Connected()
	if err := s.params.Validate(); err != nil {
		return s.failLocked(CodeInvalidParameters, err)
	}
	if !s.status.CameraConnected {
		return s.failLocked(CodeCameraNotConnected, nil)
	}

	now := s.now()
	s.runID = uuid.NewString()
	s.exposureActive = false
	s.status = Status{
		State:             s.status.State,
		TotalFrames:       s.params.SubframeCount,
		SequenceStartTime: now,
		CameraConnected:   true,
	}
	s.setStateLocked(InitialDelay)
	s.updateTimingsLocked(now)
	s.logger().Infof("sequence started: %d x %ds, total %ds",
		s.params.SubframeCount, s.params.ExposureSec, s.params.TotalDurationSec())
	return nil
}

// Tick advances the state machine. It is the only place where time driven
// transitions happen.
func (s *Sequencer) Tick(now time.Time) {
	s.mu.Lock()
	defer s.flush()

	before := s.status
	s.status.CameraConnected = s.camera.Connected()

	if s.status.State.Running() {
		s.updateTimingsLocked(now)
	}

	switch s.status.State {
	case InitialDelay:
		if s.status.ElapsedSec >= uint32(s.params.InitialDelaySec) {
			s.startExposureLocked(now)
		}
	case Exposing:
		if seconds(now.Sub(s.status.CurrentFrameStartTime)) >= uint32(s.params.ExposureSec) {
			if err := s.releaseLocked(); err != nil {
				s.failLocked(CodeExposureStopFailed, err)
				break
			}
			s.status.CompletedFrames++
			if s.status.CompletedFrames >= s.status.TotalFrames {
				s.setStateLocked(Stopped)
				s.updateTimingsLocked(now)
				s.logger().Infof("sequence complete: %d frames", s.status.CompletedFrames)
				break
			}
			s.status.CurrentFrameStartTime = now
			s.setStateLocked(Interval)
		}
	case Interval:
		if seconds(now.Sub(s.status.CurrentFrameStartTime)) >= uint32(s.params.IntervalSec) {
			s.startExposureLocked(now)
		}
	}

	if len(s.pending) == 0 && s.status != before {
		s.queueLocked(StatusChanged)
	}
}

func (s *Sequencer) Pause() error {
	return s.halt(Paused)
}

func (s *Sequencer) Stop() error {
	return s.halt(Stopped)
}

// halt releases a held exposure, then moves to the target state. The
// transition happens even when the release fails.
func (s *Sequencer) halt(target State) error {
	s.mu.Lock()
	defer s.flush()

	if !s.status.State.Running() || s.status.State == target {
		return nil
	}
	err := s.releaseLocked()
	s.setStateLocked(target)
	if target == Stopped {
		s.updateTimingsLocked(s.now())
	}
	return err
}

// Reset releases any held exposure and returns to Idle with zeroed
// counters.
func (s *Sequencer) Reset() error {
	s.mu.Lock()
	defer s.flush()

	err := s.releaseLocked()
	s.runID = ""
	s.status = Status{
		State:           s.status.State,
		CameraConnected: s.status.CameraConnected,
	}
	if s.status.State == Idle {
		s.queueLocked(StatusChanged)
	} else {
		s.setStateLocked(Idle)
	}
	return err
}

func (s *Sequencer) SetParameters(p Parameters) error {
	s.mu.Lock()
	defer s.flush()

	if err := s.editableLocked(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.applyParamsLocked(p)
	return nil
}

func (s *Sequencer) SetParameter(name string, value int) error {
	s.mu.Lock()
	defer s.flush()

	if err := s.editableLocked(); err != nil {
		return err
	}
	p, err := s.params.With(name, value)
	if err != nil {
		return err
	}
	s.applyParamsLocked(p)
	return nil
}

func (s *Sequencer) editableLocked() error {
	if s.status.State != Idle && s.status.State != Stopped {
		return fmt.Errorf("parameters in %s: %w", s.status.State, ErrRejectedState)
	}
	return nil
}

func (s *Sequencer) applyParamsLocked(p Parameters) {
	if p == s.params {
		return
	}
	s.params = p
	s.updateTimingsLocked(s.now())
	s.queueLocked(ParametersChanged)
}

func (s *Sequencer) startExposureLocked(now time.Time) {
	if !s.status.CameraConnected {
		s.failLocked(CodeExposureStartFailed, fmt.Errorf("camera not connected"))
		return
	}
	s.status.CurrentFrameStartTime = now
	if err := s.camera.StartBulb(); err != nil {
		if stopErr := s.camera.EmergencyStop(); stopErr != nil {
			s.logger().Warnf("emergency stop after failed start: %v", stopErr)
		}
		s.failLocked(CodeExposureStartFailed, err)
		return
	}
	s.exposureActive = true
	s.setStateLocked(Exposing)
	s.logger().Debugf("frame %d/%d exposing", s.status.CompletedFrames+1, s.status.TotalFrames)
}

// releaseLocked lets go of a held exposure. If the ordered release fails
// every control is released unconditionally.
func (s *Sequencer) releaseLocked() error {
	if !s.exposureActive {
		return nil
	}
	s.exposureActive = false
	err := s.camera.StopBulb()
	if err == nil {
		return nil
	}
	s.logger().Warnf("release failed, emergency stop: %v", err)
	if stopErr := s.camera.EmergencyStop(); stopErr != nil {
		s.logger().Warnf("emergency stop: %v", stopErr)
	}
	return err
}

func (s *Sequencer) failLocked(code ErrorCode, cause error) error {
	s.status.ErrorCode = code
	s.setStateLocked(Error)
	s.status.RemainingSec = 0
	err := &SequencerError{Code: code, Err: cause}
	s.logger().Error(err)
	return err
}

func (s *Sequencer) updateTimingsLocked(now time.Time) {
	if !s.status.SequenceStartTime.IsZero() && s.status.State.Running() {
		s.status.ElapsedSec = seconds(now.Sub(s.status.SequenceStartTime))
	}
	if !s.status.State.Running() {
		s.status.RemainingSec = 0
		return
	}
	total := s.params.TotalDurationSec()
	if s.status.ElapsedSec >= total {
		s.status.RemainingSec = 0
		return
	}
	s.status.RemainingSec = total - s.status.ElapsedSec
}

func (s *Sequencer) setStateLocked(next State) {
	if s.status.State == next {
		return
	}
	s.logger().Debugf("state %s -> %s", s.status.State, next)
	s.status.State = next
	s.queueLocked(StatusChanged)
}

// queueLocked records an event; the snapshot is taken when the lock is
// released so that a burst of changes publishes the final state.
func (s *Sequencer) queueLocked(kind EventKind) {
	for _, e := range s.pending {
		if e.Kind == kind {
			return
		}
	}
	s.pending = append(s.pending, Event{Kind: kind})
}

// flush unlocks mu and publishes the queued events.
func (s *Sequencer) flush() {
	pending := s.pending
	s.pending = nil
	for i := range pending {
		pending[i].RunID = s.runID
		pending[i].Parameters = s.params
		pending[i].Status = s.status
	}
	s.mu.Unlock()

	if s.events == nil {
		return
	}
	for _, e := range pending {
		s.events.Publish(e)
	}
}

func (s *Sequencer) logger() *log.Entry {
	entry := log.WithField("component", "astro")
	if s.runID != "" {
		entry = entry.WithField("run", s.runID)
	}
	return entry
}

func seconds(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	return uint32(d / time.Second)
}
