package astro

import (
	"errors"
	"fmt"
)

// ErrRejectedState is returned when an operation is not allowed in the
// current sequencer state.
var ErrRejectedState = errors.New("rejected in current state")

type ErrorCode uint8

const (
	CodeNone ErrorCode = iota
	CodeInvalidParameters
	CodeCameraNotConnected
	CodeExposureStartFailed
	CodeExposureStopFailed
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeInvalidParameters:
		return "invalid parameters"
	case CodeCameraNotConnected:
		return "camera not connected"
	case CodeExposureStartFailed:
		return "failed to start exposure"
	case CodeExposureStopFailed:
		return "failed to stop exposure"
	}
	return fmt.Sprintf("code %d", uint8(c))
}

type ParameterValidationError struct {
	Name   string
	Value  int
	Reason string
}

func (e *ParameterValidationError) Error() string {
	return fmt.Sprintf("invalid %s=%d: %s", e.Name, e.Value, e.Reason)
}

// SequencerError is the error that moved the sequencer to the Error state.
type SequencerError struct {
	Code ErrorCode
	Err  error
}

func (e *SequencerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sequencer error %d (%s): %v", uint8(e.Code), e.Code, e.Err)
	}
	return fmt.Sprintf("sequencer error %d (%s)", uint8(e.Code), e.Code)
}

func (e *SequencerError) Unwrap() error {
	return e.Err
}
