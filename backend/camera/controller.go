package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultHandshakeTimeout = 5 * time.Second
	emergencySpacing        = 20 * time.Millisecond
	recordSpacing           = 100 * time.Millisecond
	nudgeSpacing            = 30 * time.Millisecond
)

// Channel is the open control link to the camera.
type Channel interface {
	Connected() bool
	WriteCommand(buf []byte) error
}

// Controller issues camera commands over a Channel. It does not retry;
// retry policy belongs to the caller.
type Controller struct {
	ch               Channel
	status           *StatusStore
	HandshakeTimeout time.Duration
	sleep            func(time.Duration)
}

func NewController(ch Channel, status *StatusStore) *Controller {
	return &Controller{
		ch:               ch,
		status:           status,
		HandshakeTimeout: DefaultHandshakeTimeout,
		sleep:            time.Sleep,
	}
}

func (c *Controller) Connected() bool {
	return c.ch.Connected()
}

func (c *Controller) Status() Status {
	return c.status.Snapshot()
}

func (c *Controller) Send(cmd Command) error {
	if !c.ch.Connected() {
		return ErrNotConnected
	}
	buf := cmd.Bytes()
	log.WithField("component", "camera").Debugf("send %s [% X]", cmd, buf)
	if err := c.ch.WriteCommand(buf); err != nil {
		if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrWriteFailed) {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		return fmt.Errorf("%s: %w: %v", cmd, ErrWriteFailed, err)
	}
	return nil
}

// PressAndRelease sends down, waits until confirm holds and then clears
// again, and sends up. Up is always attempted once down went out, also
// when the wait fails.
func (c *Controller) PressAndRelease(ctx context.Context, down, up Opcode, confirm func(Status) bool, timeout time.Duration) error {
	if err := c.Send(NewCommand(down)); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.status.WaitFor(waitCtx, confirm)
	if err == nil {
		err = c.status.WaitFor(waitCtx, func(s Status) bool { return !confirm(s) })
	}
	releaseErr := c.Send(NewCommand(up))

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s after %s: %w", down, timeout, ErrTimeout)
		}
		if releaseErr != nil {
			return errors.Join(err, releaseErr)
		}
		return err
	}
	return releaseErr
}

// TakePhoto runs the full press handshake and waits for the shutter to
// report active and then ready.
func (c *Controller) TakePhoto(ctx context.Context) error {
	log.WithField("component", "camera").Info("take photo")
	return c.PressAndRelease(ctx, ShutterFullDown, ShutterFullUp, Status.ShutterActive, c.HandshakeTimeout)
}

// StartBulb opens the shutter and keeps it held until StopBulb.
func (c *Controller) StartBulb() error {
	if err := c.Send(NewCommand(ShutterHalfDown)); err != nil {
		return err
	}
	if err := c.Send(NewCommand(ShutterFullDown)); err != nil {
		if relErr := c.Send(NewCommand(ShutterHalfUp)); relErr != nil {
			return errors.Join(err, relErr)
		}
		return err
	}
	return nil
}

// StopBulb releases the shutter in reverse order. Both releases are sent
// even if the first one fails.
func (c *Controller) StopBulb() error {
	return errors.Join(
		c.Send(NewCommand(ShutterFullUp)),
		c.Send(NewCommand(ShutterHalfUp)),
	)
}

// ToggleRecording presses and releases the record button. The camera
// starts or stops recording depending on its own state.
func (c *Controller) ToggleRecording() error {
	if err := c.Send(NewCommand(RecordDown)); err != nil {
		return err
	}
	c.sleep(recordSpacing)
	return c.Send(NewCommand(RecordUp))
}

func (c *Controller) HalfPress(pressed bool) error {
	if pressed {
		return c.Send(NewCommand(ShutterHalfDown))
	}
	return c.Send(NewCommand(ShutterHalfUp))
}

// Nudge sends a short press of a zoom or focus action with the given
// amount, clamped to the range the camera accepts.
func (c *Controller) Nudge(a Action, amount byte) error {
	if !a.HasParam {
		return fmt.Errorf("%s does not take an amount", a.Name)
	}
	if amount < MinAmount {
		amount = MinAmount
	}
	if amount > MaxAmount {
		amount = MaxAmount
	}
	if err := c.Send(NewCommandWithParam(a.Press, amount)); err != nil {
		return err
	}
	c.sleep(nudgeSpacing)
	return c.Send(NewCommandWithParam(a.Release, 0x00))
}

// EmergencyStop sends the release opcode of every registered action,
// whatever the tracked state, and keeps going past failures.
func (c *Controller) EmergencyStop() error {
	log.WithField("component", "camera").Warn("emergency stop")
	var errs []error
	for i, a := range registry {
		if i > 0 {
			c.sleep(emergencySpacing)
		}
		cmd := NewCommand(a.Release)
		if a.HasParam {
			cmd = NewCommandWithParam(a.Release, 0x00)
		}
		if err := c.Send(cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
