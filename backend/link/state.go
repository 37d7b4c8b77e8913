package link

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
