package remote

import "errors"

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrButtonState    = errors.New("invalid button transition")
)

// FeedbackFor maps a processing error to the feedback code sent back to
// the peer.
func FeedbackFor(err error) Feedback {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrButtonState):
		return ButtonStateError
	default:
		return Invalid
	}
}
