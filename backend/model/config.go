package model

const (
	DefaultBrightness  uint8 = 128
	DefaultAutoConnect       = true
)

// Settings is the persisted settings file.
type Settings struct {
	DeviceAddress string `json:"device_address"`
	DeviceName    string `json:"device_name,omitempty"`
	AutoConnect   bool   `json:"autoconnect"`
	Brightness    uint8  `json:"brightness"`
}

func DefaultSettings() Settings {
	return Settings{
		AutoConnect: DefaultAutoConnect,
		Brightness:  DefaultBrightness,
	}
}

// ApplicationConfig is the on-disk form: settings plus the websocket JWT
// secret.
type ApplicationConfig struct {
	Settings
	JwtSecretData string `json:"jwtSecret,omitempty"`
	JwtData       []byte `json:"-"`
}
