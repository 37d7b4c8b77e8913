package link

import (
	"errors"
	"sync"
	"testing"
	"time"

	"astroremote/backend/camera"
	"astroremote/backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChar struct {
	mu      sync.Mutex
	written [][]byte
	value   []byte
	handler func([]byte)
	failW   bool
}

func (c *fakeChar) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failW {
		return errors.New("att error")
	}
	c.written = append(c.written, p)
	return nil
}

func (c *fakeChar) Read() ([]byte, error) {
	if c.value == nil {
		return nil, errors.New("not readable")
	}
	return c.value, nil
}

func (c *fakeChar) EnableNotifications(h func([]byte)) error {
	c.handler = h
	return nil
}

type fakeService struct {
	chars    map[string]*fakeChar
	failures map[string]int
}

func (s *fakeService) DiscoverCharacteristic(uuid string) (Characteristic, error) {
	if s.failures[uuid] > 0 {
		s.failures[uuid]--
		return nil, ErrCharacteristicNotFound
	}
	c, ok := s.chars[uuid]
	if !ok {
		return nil, ErrCharacteristicNotFound
	}
	return c, nil
}

type fakeDevice struct {
	svc          *fakeService
	serviceFails int
	alive        bool
	disconnects  int
}

func (d *fakeDevice) DiscoverService(uuid string) (Service, error) {
	if d.serviceFails > 0 {
		d.serviceFails--
		return nil, ErrServiceNotFound
	}
	if uuid != camera.ServiceUUID {
		return nil, ErrServiceNotFound
	}
	return d.svc, nil
}

func (d *fakeDevice) Disconnect() error {
	d.disconnects++
	d.alive = false
	return nil
}

func (d *fakeDevice) Alive() bool { return d.alive }

type fakeAdapter struct {
	dev       *fakeDevice
	linkFails int
	calls     int
}

func (a *fakeAdapter) Connect(address string) (Device, error) {
	a.calls++
	if a.linkFails > 0 {
		a.linkFails--
		return nil, errors.New("le-connection-abort-by-local")
	}
	a.dev.alive = true
	return a.dev, nil
}

type fakeStore struct {
	paired      model.PairedDevice
	autoconnect bool
	saved       []model.PairedDevice
}

func (s *fakeStore) PairedDevice() (model.PairedDevice, bool) {
	return s.paired, s.paired.Address != ""
}

func (s *fakeStore) SavePairedDevice(d model.PairedDevice) error {
	s.paired = d
	s.saved = append(s.saved, d)
	return nil
}

func (s *fakeStore) ClearPairedDevice() error {
	s.paired = model.PairedDevice{}
	return nil
}

func (s *fakeStore) AutoConnect() bool { return s.autoconnect }

var testCamera = model.PairedDevice{Address: "AA:BB:CC:DD:EE:FF", Name: "ILCE-7M4"}

func newFakeDevice() *fakeDevice {
	control := &fakeChar{}
	notify := &fakeChar{}
	read := &fakeChar{value: []byte{0x02, 0x3F, 0x20}}
	return &fakeDevice{svc: &fakeService{
		chars: map[string]*fakeChar{
			camera.ControlCharUUID:    control,
			camera.StatusCharUUID:     notify,
			camera.StatusReadCharUUID: read,
		},
		failures: map[string]int{},
	}}
}

func newFixture() (*Supervisor, *fakeAdapter, *fakeStore, *camera.StatusStore) {
	adapter := &fakeAdapter{dev: newFakeDevice()}
	store := &fakeStore{autoconnect: true}
	status := camera.NewStatusStore()
	s := NewSupervisor(adapter, store, status, DefaultConfig())
	s.sleep = func(time.Duration) {}
	return s, adapter, store, status
}

func TestConnectDiscoversAndSavesDevice(t *testing.T) {
	s, adapter, store, status := newFixture()
	var states []State
	s.OnStateChange(func(st State) { states = append(states, st) })

	require.NoError(t, s.Connect(testCamera))
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, []State{Connecting, Connected}, states)
	assert.Equal(t, []model.PairedDevice{testCamera}, store.saved)
	assert.True(t, status.Snapshot().FocusAcquired(), "seeded from the read characteristic")

	require.NoError(t, s.WriteCommand([]byte{0x01, 0x07}))
	control := adapter.dev.svc.chars[camera.ControlCharUUID]
	assert.Equal(t, [][]byte{{0x01, 0x07}}, control.written)

	notify := adapter.dev.svc.chars[camera.StatusCharUUID]
	require.NotNil(t, notify.handler)
	notify.handler([]byte{0x02, 0xD5, 0x20})
	assert.True(t, status.Snapshot().IsRecording())
}

func TestConnectRetriesEachStage(t *testing.T) {
	s, adapter, _, _ := newFixture()
	adapter.linkFails = 2
	adapter.dev.serviceFails = 2
	adapter.dev.svc.failures[camera.StatusCharUUID] = 2

	require.NoError(t, s.Connect(testCamera))
	assert.Equal(t, 3, adapter.calls)
}

func TestConnectReportsExhaustedStage(t *testing.T) {
	s, adapter, _, _ := newFixture()
	adapter.dev.svc.failures[camera.ControlCharUUID] = 3

	err := s.Connect(testCamera)
	var failure *ConnectFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, StageControlCharacteristic, failure.Stage)
	assert.Equal(t, 3, failure.Attempts)
	assert.ErrorIs(t, err, ErrCharacteristicNotFound)
	assert.Equal(t, Disconnected, s.State())
	assert.Equal(t, 1, adapter.dev.disconnects)

	adapter.linkFails = 3
	err = s.Connect(testCamera)
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, StageLink, failure.Stage)
}

func TestDisconnectClearsHandlesAndStatus(t *testing.T) {
	s, _, _, status := newFixture()
	require.NoError(t, s.Connect(testCamera))
	require.True(t, status.Snapshot().FocusAcquired())

	s.Disconnect()
	assert.Equal(t, Disconnected, s.State())
	assert.Equal(t, camera.Status{}, status.Snapshot())
	assert.ErrorIs(t, s.WriteCommand([]byte{0x01, 0x06}), camera.ErrNotConnected)

	// manual disconnect suppresses auto-reconnect
	s.Tick(time.Now())
	assert.Equal(t, Disconnected, s.State())
}

func TestWriteFailureIsWrapped(t *testing.T) {
	s, adapter, _, _ := newFixture()
	require.NoError(t, s.Connect(testCamera))
	adapter.dev.svc.chars[camera.ControlCharUUID].failW = true

	assert.ErrorIs(t, s.WriteCommand([]byte{0x01, 0x07}), camera.ErrWriteFailed)
}

func TestTickDetectsSilentDrop(t *testing.T) {
	s, adapter, _, _ := newFixture()
	require.NoError(t, s.Connect(testCamera))

	adapter.dev.alive = false
	s.Tick(time.Now())
	assert.Equal(t, Disconnected, s.State())
	assert.ErrorIs(t, s.WriteCommand([]byte{0x01, 0x07}), camera.ErrNotConnected)
}

func TestStackDisconnectEvent(t *testing.T) {
	s, _, _, status := newFixture()
	require.NoError(t, s.Connect(testCamera))

	s.HandleLinkEvent(false)
	assert.Equal(t, Disconnected, s.State())
	assert.Equal(t, camera.Status{}, status.Snapshot())
}

func TestReconnectIsRateLimitedAndCapped(t *testing.T) {
	s, adapter, store, _ := newFixture()
	store.paired = testCamera
	s.paired = testCamera
	adapter.linkFails = 1000

	start := time.Date(2024, 8, 12, 23, 0, 0, 0, time.UTC)
	s.Tick(start)
	assert.Equal(t, Reconnecting, s.State())
	assert.Equal(t, 1, s.ReconnectAttempts())

	s.Tick(start.Add(time.Second))
	assert.Equal(t, 1, s.ReconnectAttempts(), "within the retry interval")

	now := start
	for i := 0; i < 10; i++ {
		now = now.Add(s.cfg.ReconnectInterval)
		s.Tick(now)
	}
	assert.Equal(t, Failed, s.State())
	assert.Equal(t, s.cfg.MaxReconnectAttempts, s.ReconnectAttempts())
	assert.Equal(t, s.cfg.MaxReconnectAttempts*s.cfg.MaxAttempts, adapter.calls)

	adapter.linkFails = 0
	require.NoError(t, s.Connect(testCamera))
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, 0, s.ReconnectAttempts())
}

func TestReconnectSucceeds(t *testing.T) {
	s, _, store, _ := newFixture()
	store.paired = testCamera
	s.paired = testCamera

	s.Tick(time.Now())
	assert.Equal(t, Connected, s.State())
}

func TestNoReconnectWhenAutoConnectDisabled(t *testing.T) {
	s, adapter, store, _ := newFixture()
	store.paired = testCamera
	store.autoconnect = false
	s.paired = testCamera

	s.Tick(time.Now())
	assert.Equal(t, Disconnected, s.State())
	assert.Zero(t, adapter.calls)
}

func TestForgetClearsPairing(t *testing.T) {
	s, _, store, _ := newFixture()
	require.NoError(t, s.Connect(testCamera))
	assert.True(t, s.IsCamera("aa:bb:cc:dd:ee:ff"))

	require.NoError(t, s.Forget())
	assert.Equal(t, Disconnected, s.State())
	assert.Empty(t, store.paired.Address)
	assert.False(t, s.IsCamera(testCamera.Address))
}

// gatedAdapter holds every link attempt until release is closed, handing
// out a fresh device per attempt.
type gatedAdapter struct {
	mu      sync.Mutex
	opened  []*fakeDevice
	entered chan struct{}
	release chan struct{}
}

func (a *gatedAdapter) Connect(address string) (Device, error) {
	a.entered <- struct{}{}
	<-a.release
	dev := newFakeDevice()
	dev.alive = true
	a.mu.Lock()
	a.opened = append(a.opened, dev)
	a.mu.Unlock()
	return dev, nil
}

func (a *gatedAdapter) openedDevices() []*fakeDevice {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*fakeDevice(nil), a.opened...)
}

func TestConnectDuringReconnectJoinsDialInFlight(t *testing.T) {
	store := &fakeStore{paired: testCamera, autoconnect: true}
	adapter := &gatedAdapter{entered: make(chan struct{}, 2), release: make(chan struct{})}
	s := NewSupervisor(adapter, store, camera.NewStatusStore(), DefaultConfig())
	s.sleep = func(time.Duration) {}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Tick(time.Now())
	}()
	<-adapter.entered
	assert.Equal(t, Reconnecting, s.State())

	require.NoError(t, s.Connect(testCamera))
	assert.Equal(t, 0, s.ReconnectAttempts())

	close(adapter.release)
	<-done

	assert.Equal(t, Connected, s.State())
	opened := adapter.openedDevices()
	require.Len(t, opened, 1)
	assert.Len(t, adapter.entered, 0, "no second link attempt")

	// a new dial is possible once the first one settled
	s.Disconnect()
	require.NoError(t, s.Connect(testCamera))
	assert.Len(t, adapter.openedDevices(), 2)
	assert.Equal(t, 1, opened[0].disconnects)
}

// Stack events arrive on their own goroutine while the loop ticks.
func TestLinkEventsRaceWithTick(t *testing.T) {
	s, _, store, _ := newFixture()
	store.paired = testCamera
	s.cfg.ReconnectInterval = 0
	s.cfg.MaxReconnectAttempts = 1000
	require.NoError(t, s.Connect(testCamera))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		now := time.Now()
		for i := 0; i < 200; i++ {
			now = now.Add(time.Millisecond)
			s.Tick(now)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.HandleLinkEvent(false)
			_ = s.WriteCommand([]byte{0x01, 0x07})
			s.IsCamera(testCamera.Address)
			s.State()
		}
	}()
	wg.Wait()

	s.Tick(time.Now().Add(time.Hour))
	assert.Equal(t, Connected, s.State())
}
