package manual

import (
	"context"

	"astroremote/backend/camera"
	"astroremote/backend/remote"

	log "github.com/sirupsen/logrus"
)

// Sensitivity is the focus nudge amount.
type Sensitivity byte

const (
	Fine   Sensitivity = 0x10
	Medium Sensitivity = 0x25
	High   Sensitivity = 0x50
	Coarse Sensitivity = 0x7F
)

const zoomAmount byte = 0x70

func (s Sensitivity) String() string {
	switch s {
	case Fine:
		return "fine"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Coarse:
		return "coarse"
	}
	return "unknown"
}

// Next cycles Fine, Medium, High, Coarse and back to Fine.
func (s Sensitivity) Next() Sensitivity {
	switch s {
	case Fine:
		return Medium
	case Medium:
		return High
	case High:
		return Coarse
	}
	return Fine
}

type Camera interface {
	Connected() bool
	TakePhoto(ctx context.Context) error
	ToggleRecording() error
	HalfPress(pressed bool) error
	Nudge(a camera.Action, amount byte) error
	EmergencyStop() error
}

type Input interface {
	WasPressed(id remote.ButtonID) bool
	IsPressed(id remote.ButtonID) bool
}

type Sequencer interface {
	Running() bool
	Stop() error
}

// Controller maps companion buttons to camera actions. It runs on the
// control loop, so camera I/O never happens in the stack's context.
type Controller struct {
	cam         Camera
	input       Input
	seq         Sequencer
	focusing    bool
	sensitivity Sensitivity
	onAction    func(action string, err error)
}

func NewController(cam Camera, input Input, seq Sequencer) *Controller {
	return &Controller{
		cam:         cam,
		input:       input,
		seq:         seq,
		sensitivity: Medium,
	}
}

// OnAction registers a hook called after every executed action.
func (c *Controller) OnAction(fn func(action string, err error)) {
	c.onAction = fn
}

func (c *Controller) Sensitivity() Sensitivity {
	return c.sensitivity
}

func (c *Controller) Focusing() bool {
	return c.focusing
}

// Tick consumes pending button presses. Emergency stop always runs; the
// other actions are dropped while a sequence owns the camera.
func (c *Controller) Tick(ctx context.Context) {
	if c.input.WasPressed(remote.ButtonBack) || c.input.WasPressed(remote.ButtonEmergency) {
		c.emergencyStop()
		return
	}

	photo := c.input.WasPressed(remote.ButtonA)
	record := c.input.WasPressed(remote.ButtonB)
	cycle := c.input.WasPressed(remote.ButtonPower)
	tele := c.input.WasPressed(remote.ButtonUpID)
	wide := c.input.WasPressed(remote.ButtonDownID)
	focusIn := c.input.WasPressed(remote.ButtonLeft)
	focusOut := c.input.WasPressed(remote.ButtonRight)
	half := c.input.IsPressed(remote.ButtonConfirm)

	if cycle {
		c.sensitivity = c.sensitivity.Next()
		log.WithField("component", "manual").Infof("focus sensitivity %s", c.sensitivity)
	}

	if c.seq.Running() || !c.cam.Connected() {
		if c.focusing {
			c.setFocusing(false)
		}
		return
	}

	if half != c.focusing {
		c.setFocusing(half)
	}
	if photo {
		c.run("photo", func() error { return c.cam.TakePhoto(ctx) })
	}
	if record {
		c.run("record", c.cam.ToggleRecording)
	}
	if tele {
		c.run("zoom-tele", func() error { return c.cam.Nudge(camera.ZoomTele, zoomAmount) })
	}
	if wide {
		c.run("zoom-wide", func() error { return c.cam.Nudge(camera.ZoomWide, zoomAmount) })
	}
	if focusIn {
		c.run("focus-in", func() error { return c.cam.Nudge(camera.FocusIn, byte(c.sensitivity)) })
	}
	if focusOut {
		c.run("focus-out", func() error { return c.cam.Nudge(camera.FocusOut, byte(c.sensitivity)) })
	}
}

func (c *Controller) setFocusing(on bool) {
	c.focusing = on
	c.run("half-press", func() error { return c.cam.HalfPress(on) })
}

func (c *Controller) emergencyStop() {
	if c.seq.Running() {
		if err := c.seq.Stop(); err != nil {
			log.WithField("component", "manual").Warnf("stop sequence: %v", err)
		}
	}
	c.focusing = false
	c.run("emergency-stop", c.cam.EmergencyStop)
}

func (c *Controller) run(action string, fn func() error) {
	err := fn()
	if err != nil {
		log.WithField("component", "manual").Warnf("%s: %v", action, err)
	} else {
		log.WithField("component", "manual").Debug(action)
	}
	if c.onAction != nil {
		c.onAction(action, err)
	}
}
