package model

// PairedDevice is the camera remembered between sessions.
type PairedDevice struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

func (d PairedDevice) String() string {
	if len(d.Name) == 0 {
		return d.Address
	}
	return d.Name + " (" + d.Address + ")"
}
