package link

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"astroremote/backend/camera"
	"astroremote/backend/model"

	log "github.com/sirupsen/logrus"
)

// PairingStore is the slice of the settings store the supervisor needs.
type PairingStore interface {
	PairedDevice() (model.PairedDevice, bool)
	SavePairedDevice(d model.PairedDevice) error
	ClearPairedDevice() error
	AutoConnect() bool
}

type Config struct {
	MaxAttempts          int
	SettleDelay          time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:          3,
		SettleDelay:          500 * time.Millisecond,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

// Supervisor owns the central-role link to the camera. Main loop calls and
// stack events both go through mu.
type Supervisor struct {
	mu      sync.Mutex
	adapter Adapter
	store   PairingStore
	status  *camera.StatusStore
	cfg     Config
	sleep   func(time.Duration)

	state       State
	paired      model.PairedDevice
	device      Device
	control     Characteristic
	notify      Characteristic
	manual      bool
	dialing     bool
	attempts    int
	lastAttempt time.Time
	onState     func(State)
}

func NewSupervisor(adapter Adapter, store PairingStore, status *camera.StatusStore, cfg Config) *Supervisor {
	s := &Supervisor{
		adapter: adapter,
		store:   store,
		status:  status,
		cfg:     cfg,
		sleep:   time.Sleep,
	}
	if d, ok := store.PairedDevice(); ok {
		s.paired = d
	}
	return s
}

// OnStateChange registers a hook called outside the lock after every
// state transition.
func (s *Supervisor) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Connected() bool {
	return s.State() == Connected
}

func (s *Supervisor) PairedDevice() model.PairedDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paired
}

func (s *Supervisor) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// IsCamera reports whether address belongs to the paired camera.
func (s *Supervisor) IsCamera(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paired.Address != "" && strings.EqualFold(s.paired.Address, address)
}

// Connect is the explicit, user initiated connect. It clears the manual
// disconnect flag and the reconnect attempt budget. When a dial is already
// in flight it only does that and leaves the dial to finish.
func (s *Supervisor) Connect(device model.PairedDevice) error {
	s.mu.Lock()
	if s.state == Connected {
		s.mu.Unlock()
		return nil
	}
	s.manual = false
	s.attempts = 0
	if s.dialing {
		s.mu.Unlock()
		return nil
	}
	s.dialing = true
	s.paired = device
	hook := s.setStateLocked(Connecting)
	s.mu.Unlock()
	notifyState(hook, Connecting)

	return s.dial(device)
}

// Disconnect tears the link down and keeps it down until the next Connect.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	s.manual = true
	dev, hook := s.dropLocked(Disconnected)
	s.mu.Unlock()

	s.teardown(dev)
	s.status.Reset()
	notifyState(hook, Disconnected)
}

// Forget disconnects and removes the paired camera from the settings.
func (s *Supervisor) Forget() error {
	s.Disconnect()
	s.mu.Lock()
	s.paired = model.PairedDevice{}
	s.mu.Unlock()
	return s.store.ClearPairedDevice()
}

// HandleLinkEvent applies a connect/disconnect event reported by the stack
// for the camera address.
func (s *Supervisor) HandleLinkEvent(connected bool) {
	if connected {
		log.WithField("component", "link").Debug("stack reports camera link up")
		return
	}
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return
	}
	log.WithField("component", "link").Warn("camera disconnected")
	_, hook := s.dropLocked(Disconnected)
	s.mu.Unlock()

	s.status.Reset()
	notifyState(hook, Disconnected)
}

// Tick runs the liveness check and the auto-reconnect policy.
func (s *Supervisor) Tick(now time.Time) {
	s.mu.Lock()
	switch s.state {
	case Connected:
		if s.device != nil && !s.device.Alive() {
			log.WithField("component", "link").Warn("camera link lost silently")
			dev, hook := s.dropLocked(Disconnected)
			s.mu.Unlock()
			s.teardown(dev)
			s.status.Reset()
			notifyState(hook, Disconnected)
			return
		}
		s.mu.Unlock()
		return
	case Connecting, Failed:
		s.mu.Unlock()
		return
	}

	if s.dialing || s.manual || s.paired.Address == "" || !s.store.AutoConnect() {
		s.mu.Unlock()
		return
	}
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.cfg.ReconnectInterval {
		s.mu.Unlock()
		return
	}
	if s.attempts >= s.cfg.MaxReconnectAttempts {
		hook := s.setStateLocked(Failed)
		s.mu.Unlock()
		log.WithField("component", "link").Errorf("giving up after %d reconnect attempts", s.cfg.MaxReconnectAttempts)
		notifyState(hook, Failed)
		return
	}
	s.attempts++
	s.lastAttempt = now
	s.dialing = true
	device := s.paired
	attempt := s.attempts
	hook := s.setStateLocked(Reconnecting)
	s.mu.Unlock()
	notifyState(hook, Reconnecting)

	log.WithField("component", "link").Infof("reconnect attempt %d/%d to %s", attempt, s.cfg.MaxReconnectAttempts, device.Address)
	if err := s.dial(device); err != nil {
		log.WithField("component", "link").Warnf("reconnect failed: %v", err)
	}
}

// WriteCommand writes an encoded command on the control characteristic.
func (s *Supervisor) WriteCommand(buf []byte) error {
	s.mu.Lock()
	ch := s.control
	connected := s.state == Connected
	s.mu.Unlock()

	if !connected || ch == nil {
		return camera.ErrNotConnected
	}
	if err := ch.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", camera.ErrWriteFailed, err)
	}
	return nil
}

func (s *Supervisor) dial(device model.PairedDevice) error {
	dev, control, notify, err := s.open(device.Address)
	if err != nil {
		s.mu.Lock()
		s.dialing = false
		next := Disconnected
		if !s.manual && s.attempts > 0 {
			next = Reconnecting
			if s.attempts >= s.cfg.MaxReconnectAttempts {
				next = Failed
			}
		}
		hook := s.setStateLocked(next)
		s.mu.Unlock()
		notifyState(hook, next)
		return err
	}

	if err := notify.EnableNotifications(s.status.HandleNotification); err != nil {
		log.WithField("component", "link").Warnf("can't enable status notifications: %v", err)
	}

	s.mu.Lock()
	s.dialing = false
	if s.manual {
		s.mu.Unlock()
		s.teardown(dev)
		return fmt.Errorf("connect to %s aborted by disconnect", device.Address)
	}
	s.device = dev
	s.control = control
	s.notify = notify
	s.paired = device
	s.attempts = 0
	s.lastAttempt = time.Time{}
	hook := s.setStateLocked(Connected)
	s.mu.Unlock()

	log.WithField("component", "link").Infof("connected to camera %s", device.Address)
	if err := s.store.SavePairedDevice(device); err != nil {
		log.WithField("component", "link").Warnf("can't save paired device: %v", err)
	}
	notifyState(hook, Connected)
	return nil
}

// open performs link and discovery, each stage retried with a settle
// delay. Nothing is committed to the supervisor here.
func (s *Supervisor) open(address string) (Device, Characteristic, Characteristic, error) {
	dev, err := retry(s, StageLink, func() (Device, error) {
		return s.adapter.Connect(address)
	})
	if err != nil {
		return nil, nil, nil, err
	}

	svc, err := retry(s, StageService, func() (Service, error) {
		return dev.DiscoverService(camera.ServiceUUID)
	})
	if err != nil {
		s.teardown(dev)
		return nil, nil, nil, err
	}

	control, err := retry(s, StageControlCharacteristic, func() (Characteristic, error) {
		return svc.DiscoverCharacteristic(camera.ControlCharUUID)
	})
	if err != nil {
		s.teardown(dev)
		return nil, nil, nil, err
	}

	notify, err := retry(s, StageStatusCharacteristic, func() (Characteristic, error) {
		return svc.DiscoverCharacteristic(camera.StatusCharUUID)
	})
	if err != nil {
		s.teardown(dev)
		return nil, nil, nil, err
	}

	s.seedStatus(svc)
	return dev, control, notify, nil
}

// seedStatus reads the optional status characteristic once.
func (s *Supervisor) seedStatus(svc Service) {
	ch, err := svc.DiscoverCharacteristic(camera.StatusReadCharUUID)
	if err != nil {
		return
	}
	buf, err := ch.Read()
	if err != nil {
		log.WithField("component", "link").Debugf("can't read initial status: %v", err)
		return
	}
	s.status.HandleNotification(buf)
}

func retry[T any](s *Supervisor, stage Stage, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for i := 1; i <= s.cfg.MaxAttempts; i++ {
		v, err = fn()
		if err == nil {
			return v, nil
		}
		log.WithField("component", "link").Debugf("%s attempt %d/%d: %v", stage, i, s.cfg.MaxAttempts, err)
		if i < s.cfg.MaxAttempts {
			s.sleep(s.cfg.SettleDelay)
		}
	}
	return v, &ConnectFailure{Stage: stage, Attempts: s.cfg.MaxAttempts, Err: err}
}

func (s *Supervisor) teardown(dev Device) {
	if dev == nil {
		return
	}
	if err := dev.Disconnect(); err != nil {
		log.WithField("component", "link").Debugf("disconnect: %v", err)
	}
}

// dropLocked clears every cached handle. Callers reset the camera status
// once the lock is released.
func (s *Supervisor) dropLocked(next State) (Device, func(State)) {
	dev := s.device
	s.device = nil
	s.control = nil
	s.notify = nil
	return dev, s.setStateLocked(next)
}

func (s *Supervisor) setStateLocked(next State) func(State) {
	if s.state == next {
		return nil
	}
	log.WithField("component", "link").Debugf("state %s -> %s", s.state, next)
	s.state = next
	return s.onState
}

func notifyState(hook func(State), st State) {
	if hook != nil {
		hook(st)
	}
}
