package camera

import "errors"

var (
	ErrNotConnected = errors.New("camera not connected")
	ErrWriteFailed  = errors.New("camera write failed")
	ErrTimeout      = errors.New("camera did not confirm in time")
)
