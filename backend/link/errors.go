package link

import (
	"errors"
	"fmt"
)

var (
	ErrServiceNotFound        = errors.New("service not found")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	ErrNoPairedDevice         = errors.New("no paired device")
)

type Stage int

const (
	StageLink Stage = iota
	StageService
	StageControlCharacteristic
	StageStatusCharacteristic
)

func (s Stage) String() string {
	switch s {
	case StageLink:
		return "link"
	case StageService:
		return "service"
	case StageControlCharacteristic:
		return "control characteristic"
	case StageStatusCharacteristic:
		return "status characteristic"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ConnectFailure reports the connection step that exhausted its retries.
type ConnectFailure struct {
	Stage    Stage
	Attempts int
	Err      error
}

func (e *ConnectFailure) Error() string {
	return fmt.Sprintf("connect failed at %s after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *ConnectFailure) Unwrap() error {
	return e.Err
}
