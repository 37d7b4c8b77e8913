package astro

import (
	"errors"
	"testing"
	"time"

	"astroremote/backend/bus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCamera struct {
	connected bool
	failStart bool
	failStop  bool
	calls     []string
}

func (c *fakeCamera) Connected() bool { return c.connected }

func (c *fakeCamera) StartBulb() error {
	c.calls = append(c.calls, "start")
	if c.failStart {
		return errors.New("write failed")
	}
	return nil
}

func (c *fakeCamera) StopBulb() error {
	c.calls = append(c.calls, "stop")
	if c.failStop {
		return errors.New("write failed")
	}
	return nil
}

func (c *fakeCamera) EmergencyStop() error {
	c.calls = append(c.calls, "emergency")
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(sec int) time.Time {
	c.t = c.t.Add(time.Duration(sec) * time.Second)
	return c.t
}

func newTestSequencer(cam *fakeCamera) (*Sequencer, *clock, *[]Event) {
	events := bus.New[Event]()
	var got []Event
	events.Subscribe(func(e Event) { got = append(got, e) })

	clk := &clock{t: time.Date(2024, 8, 12, 22, 30, 0, 0, time.UTC)}
	s := NewSequencer(cam, events)
	s.now = clk.now
	return s, clk, &got
}

func smallRun(t *testing.T, s *Sequencer) {
	require.NoError(t, s.SetParameters(Parameters{InitialDelaySec: 5, ExposureSec: 30, SubframeCount: 10, IntervalSec: 2}))
}

func TestStartWithoutCameraFails(t *testing.T) {
	s, _, _ := newTestSequencer(&fakeCamera{})

	err := s.Start()
	var serr *SequencerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeCameraNotConnected, serr.Code)
	assert.Equal(t, Error, s.Status().State)
	assert.Equal(t, CodeCameraNotConnected, s.Status().ErrorCode)

	assert.ErrorIs(t, s.Start(), ErrRejectedState, "error is terminal until reset")

	require.NoError(t, s.Reset())
	st := s.Status()
	assert.Equal(t, Idle, st.State)
	assert.Zero(t, st.CompletedFrames)
	assert.Zero(t, st.TotalFrames)
	assert.Zero(t, st.ElapsedSec)
	assert.Zero(t, st.RemainingSec)
	assert.Equal(t, CodeNone, st.ErrorCode)
	assert.True(t, st.SequenceStartTime.IsZero())
}

func TestFullSequence(t *testing.T) {
	cam := &fakeCamera{connected: true}
	s, clk, events := newTestSequencer(cam)
	smallRun(t, s)

	require.NoError(t, s.Start())
	st := s.Status()
	assert.Equal(t, InitialDelay, st.State)
	assert.Equal(t, uint16(10), st.TotalFrames)
	assert.Equal(t, uint32(325), st.RemainingSec)
	assert.NotEmpty(t, s.RunID())

	s.Tick(clk.advance(4))
	assert.Equal(t, InitialDelay, s.Status().State)
	s.Tick(clk.advance(1))
	assert.Equal(t, Exposing, s.Status().State)

	for frame := 1; frame <= 10; frame++ {
		s.Tick(clk.advance(29))
		require.Equal(t, Exposing, s.Status().State)
		s.Tick(clk.advance(1))
		st := s.Status()
		require.Equal(t, uint16(frame), st.CompletedFrames)
		require.LessOrEqual(t, st.CompletedFrames, st.TotalFrames)
		if frame == 10 {
			break
		}
		require.Equal(t, Interval, st.State)
		s.Tick(clk.advance(2))
		require.Equal(t, Exposing, s.Status().State)
	}

	st = s.Status()
	assert.Equal(t, Stopped, st.State)
	assert.Zero(t, st.RemainingSec)

	s.Tick(clk.advance(100))
	assert.Equal(t, Stopped, s.Status().State, "never back to exposing")
	assert.Equal(t, uint16(10), s.Status().CompletedFrames)

	starts, stops := 0, 0
	for _, c := range cam.calls {
		switch c {
		case "start":
			starts++
		case "stop":
			stops++
		}
	}
	assert.Equal(t, 10, starts)
	assert.Equal(t, 10, stops)

	last := (*events)[len(*events)-1]
	assert.Equal(t, StatusChanged, last.Kind)
	assert.Equal(t, Stopped, last.Status.State)
}

func TestRemainingTracksElapsed(t *testing.T) {
	s, clk, _ := newTestSequencer(&fakeCamera{connected: true})
	require.NoError(t, s.Start())

	s.Tick(clk.advance(100))
	st := s.Status()
	assert.Equal(t, uint32(100), st.ElapsedSec)
	assert.Equal(t, uint32(555), st.RemainingSec)
}

func TestStartFailureMovesToError(t *testing.T) {
	cam := &fakeCamera{connected: true, failStart: true}
	s, clk, _ := newTestSequencer(cam)
	require.NoError(t, s.Start())

	s.Tick(clk.advance(5))
	st := s.Status()
	assert.Equal(t, Error, st.State)
	assert.Equal(t, CodeExposureStartFailed, st.ErrorCode)
	assert.Contains(t, cam.calls, "emergency")
}

func TestCameraLostBeforeExposure(t *testing.T) {
	cam := &fakeCamera{connected: true}
	s, clk, _ := newTestSequencer(cam)
	require.NoError(t, s.Start())

	cam.connected = false
	s.Tick(clk.advance(5))
	st := s.Status()
	assert.Equal(t, Error, st.State)
	assert.Equal(t, CodeExposureStartFailed, st.ErrorCode)
	assert.False(t, st.CameraConnected)
	assert.Empty(t, cam.calls)
}

func TestStopFailureUsesEmergencyStop(t *testing.T) {
	cam := &fakeCamera{connected: true, failStop: true}
	s, clk, _ := newTestSequencer(cam)
	require.NoError(t, s.Start())
	s.Tick(clk.advance(5))
	require.Equal(t, Exposing, s.Status().State)

	s.Tick(clk.advance(60))
	assert.Equal(t, Error, s.Status().State)
	assert.Equal(t, CodeExposureStopFailed, s.Status().ErrorCode)
	assert.Equal(t, []string{"start", "stop", "emergency"}, cam.calls)
}

func TestPauseAndStopReleaseShutter(t *testing.T) {
	cam := &fakeCamera{connected: true}
	s, clk, _ := newTestSequencer(cam)
	require.NoError(t, s.Start())
	s.Tick(clk.advance(5))
	require.Equal(t, Exposing, s.Status().State)

	require.NoError(t, s.Pause())
	assert.Equal(t, Paused, s.Status().State)
	assert.Equal(t, []string{"start", "stop"}, cam.calls)

	require.NoError(t, s.Pause())
	s.Tick(clk.advance(600))
	assert.Equal(t, Paused, s.Status().State, "no automatic transition")

	require.NoError(t, s.Stop())
	assert.Equal(t, Stopped, s.Status().State)
	assert.Equal(t, []string{"start", "stop"}, cam.calls, "nothing held any more")

	require.NoError(t, s.Stop())
	assert.Equal(t, Stopped, s.Status().State)
}

func TestResetMidExposure(t *testing.T) {
	cam := &fakeCamera{connected: true}
	s, clk, _ := newTestSequencer(cam)
	require.NoError(t, s.Start())
	s.Tick(clk.advance(5))

	require.NoError(t, s.Reset())
	assert.Equal(t, []string{"start", "stop"}, cam.calls)
	assert.Equal(t, Idle, s.Status().State)
	assert.Empty(t, s.RunID())
}

func TestParametersOnlyEditableWhenIdleOrStopped(t *testing.T) {
	s, _, events := newTestSequencer(&fakeCamera{connected: true})

	err := s.SetParameter("exposureSec", 45)
	var verr *ParameterValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, DefaultParameters(), s.Parameters())
	assert.Empty(t, *events)

	require.NoError(t, s.SetParameter("exposureSec", 90))
	assert.Equal(t, uint16(90), s.Parameters().ExposureSec)
	require.Len(t, *events, 1)
	assert.Equal(t, ParametersChanged, (*events)[0].Kind)
	assert.Equal(t, uint16(90), (*events)[0].Parameters.ExposureSec)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.SetParameter("exposureSec", 120), ErrRejectedState)
	assert.ErrorIs(t, s.SetParameters(DefaultParameters()), ErrRejectedState)
	assert.Equal(t, uint16(90), s.Parameters().ExposureSec)

	require.NoError(t, s.Stop())
	require.NoError(t, s.SetParameters(DefaultParameters()))
	assert.Equal(t, DefaultParameters(), s.Parameters())
}

func TestStartRejectedWhileRunning(t *testing.T) {
	s, _, _ := newTestSequencer(&fakeCamera{connected: true})
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrRejectedState)
}

func TestInvalidParametersAtStart(t *testing.T) {
	s, _, _ := newTestSequencer(&fakeCamera{connected: true})
	s.params.ExposureSec = 45

	err := s.Start()
	var serr *SequencerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvalidParameters, serr.Code)
	var verr *ParameterValidationError
	assert.ErrorAs(t, err, &verr)
}
