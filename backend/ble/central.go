package ble

import (
	"fmt"

	"astroremote/backend/link"

	"tinygo.org/x/bluetooth"
)

const readBufferSize = 64

type centralDevice struct {
	stack   *Stack
	address string
	dev     bluetooth.Device
}

func (d *centralDevice) DiscoverService(uuid string) (link.Service, error) {
	id, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}
	services, err := d.dev.DiscoverServices([]bluetooth.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", link.ErrServiceNotFound, err)
	}
	if len(services) == 0 {
		return nil, link.ErrServiceNotFound
	}
	return &centralService{svc: services[0]}, nil
}

func (d *centralDevice) Disconnect() error {
	d.stack.mu.Lock()
	d.stack.alive[d.address] = false
	d.stack.mu.Unlock()
	return d.dev.Disconnect()
}

func (d *centralDevice) Alive() bool {
	return d.stack.isAlive(d.address)
}

type centralService struct {
	svc bluetooth.DeviceService
}

func (s *centralService) DiscoverCharacteristic(uuid string) (link.Characteristic, error) {
	id, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}
	chars, err := s.svc.DiscoverCharacteristics([]bluetooth.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", link.ErrCharacteristicNotFound, err)
	}
	if len(chars) == 0 {
		return nil, link.ErrCharacteristicNotFound
	}
	return &centralCharacteristic{char: chars[0]}, nil
}

type centralCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *centralCharacteristic) Write(p []byte) error {
	_, err := c.char.WriteWithoutResponse(p)
	return err
}

func (c *centralCharacteristic) Read() ([]byte, error) {
	buf := make([]byte, readBufferSize)
	n, err := c.char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *centralCharacteristic) EnableNotifications(handler func(buf []byte)) error {
	return c.char.EnableNotifications(handler)
}
