package ble

import (
	"strings"
	"sync"

	"astroremote/backend/link"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// CameraLink receives connect events for the paired camera.
type CameraLink interface {
	IsCamera(address string) bool
	HandleLinkEvent(connected bool)
}

// PeerLink receives connect events for every other device.
type PeerLink interface {
	OnPeerConnect()
	OnPeerDisconnect()
}

// Stack owns the host adapter and its single connect handler. It is also
// the central-role link.Adapter used by the supervisor.
type Stack struct {
	adapter *bluetooth.Adapter

	mu     sync.Mutex
	alive  map[string]bool
	camera CameraLink
	peer   PeerLink
}

func NewStack() *Stack {
	return &Stack{
		adapter: bluetooth.DefaultAdapter,
		alive:   make(map[string]bool),
	}
}

// Route sets where connect events go. Must be called before Enable.
func (s *Stack) Route(camera CameraLink, peer PeerLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = camera
	s.peer = peer
}

func (s *Stack) Enable() error {
	log.WithField("component", "ble").Info("enabling BLE adapter")
	if err := s.adapter.Enable(); err != nil {
		return err
	}
	s.adapter.SetConnectHandler(s.onConnect)
	return nil
}

// onConnect runs in the stack's context.
func (s *Stack) onConnect(device bluetooth.Device, connected bool) {
	address := normalize(device.Address.String())

	s.mu.Lock()
	s.alive[address] = connected
	camera := s.camera
	peer := s.peer
	s.mu.Unlock()

	log.WithField("component", "ble").Debugf("%s connected=%v", address, connected)
	if camera != nil && camera.IsCamera(address) {
		camera.HandleLinkEvent(connected)
		return
	}
	if peer == nil {
		return
	}
	if connected {
		peer.OnPeerConnect()
	} else {
		peer.OnPeerDisconnect()
	}
}

func (s *Stack) isAlive(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive[address]
}

// Connect opens a central-role link to address.
func (s *Stack) Connect(address string) (link.Device, error) {
	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, err
	}
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}
	dev, err := s.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}
	key := normalize(address)
	s.mu.Lock()
	s.alive[key] = true
	s.mu.Unlock()
	return &centralDevice{stack: s, address: key, dev: dev}, nil
}

func normalize(address string) string {
	return strings.ToUpper(address)
}
