package link

// Adapter opens central-role links. The production implementation wraps
// tinygo.org/x/bluetooth; tests use fakes.
type Adapter interface {
	Connect(address string) (Device, error)
}

type Device interface {
	DiscoverService(uuid string) (Service, error)
	Disconnect() error
	// Alive reports whether the stack still considers the link up.
	Alive() bool
}

type Service interface {
	DiscoverCharacteristic(uuid string) (Characteristic, error)
}

type Characteristic interface {
	Write(p []byte) error
	Read() ([]byte, error)
	EnableNotifications(handler func(buf []byte)) error
}
