package ble

import (
	"errors"

	"astroremote/backend/remote"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

var prefixName = "AstroRemote"

// Handler processes writes on the companion characteristics.
type Handler interface {
	OnWrite(payload []byte) remote.Feedback
	OnAstroWrite(payload []byte) remote.Feedback
}

// Peripheral is the companion-facing GATT service.
type Peripheral struct {
	adapter *bluetooth.Adapter
	name    string

	controlChar      bluetooth.Characteristic
	feedbackChar     bluetooth.Characteristic
	astroStatusChar  bluetooth.Characteristic
	astroControlChar bluetooth.Characteristic
	registered       bool
}

func NewPeripheral(stack *Stack, name string) *Peripheral {
	return &Peripheral{adapter: stack.adapter, name: name}
}

// AdvertisedName is the local name the companion looks for.
func AdvertisedName(name string) string {
	if len(name) == 0 {
		return prefixName
	}
	return prefixName + "-" + name
}

func mustUUID(s string) bluetooth.UUID {
	id, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Register adds the companion service. Writes are handed to h in the
// stack's context.
func (p *Peripheral) Register(h Handler) error {
	err := p.adapter.AddService(&bluetooth.Service{
		UUID: mustUUID(remote.ServiceUUID),
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &p.controlChar,
				UUID:   mustUUID(remote.ControlCharUUID),
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					h.OnWrite(append([]byte(nil), value...))
				},
			},
			{
				Handle: &p.feedbackChar,
				UUID:   mustUUID(remote.FeedbackCharUUID),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
			{
				Handle: &p.astroStatusChar,
				UUID:   mustUUID(remote.AstroStatusCharUUID),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
			{
				Handle: &p.astroControlChar,
				UUID:   mustUUID(remote.AstroControlCharUUID),
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					h.OnAstroWrite(append([]byte(nil), value...))
				},
			},
		},
	})
	if err != nil {
		return err
	}
	p.registered = true
	log.WithField("component", "ble").Info("companion service registered")
	return nil
}

var errNotRegistered = errors.New("companion service not registered")

func (p *Peripheral) SendFeedback(code remote.Feedback) error {
	if !p.registered {
		return errNotRegistered
	}
	_, err := p.feedbackChar.Write([]byte{byte(code)})
	return err
}

func (p *Peripheral) SendAstroStatus(buf []byte) error {
	if !p.registered {
		return errNotRegistered
	}
	_, err := p.astroStatusChar.Write(buf)
	return err
}

// Advertise (re)starts advertising the companion service.
func (p *Peripheral) Advertise() error {
	bleName := AdvertisedName(p.name)

	adv := p.adapter.DefaultAdvertisement()
	err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    bleName,
		ServiceUUIDs: []bluetooth.UUID{mustUUID(remote.ServiceUUID)},
	})
	if err != nil {
		return err
	}
	if err := adv.Start(); err != nil {
		return err
	}
	log.WithField("component", "ble").Infof("advertising as %s", bleName)
	return nil
}
