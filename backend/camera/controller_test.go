package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	writes    [][]byte
	fail      map[Opcode]bool
	onWrite   func(Opcode)
}

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) WriteCommand(buf []byte) error {
	op := Opcode(uint16(buf[0])<<8 | uint16(buf[1]))
	f.mu.Lock()
	f.writes = append(f.writes, append([]byte(nil), buf...))
	fail := f.fail[op]
	hook := f.onWrite
	f.mu.Unlock()
	if fail {
		return errors.New("gatt write refused")
	}
	if hook != nil {
		hook(op)
	}
	return nil
}

func (f *fakeChannel) opcodes() []Opcode {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Opcode, 0, len(f.writes))
	for _, w := range f.writes {
		out = append(out, Opcode(uint16(w[0])<<8|uint16(w[1])))
	}
	return out
}

func newTestController(ch *fakeChannel) (*Controller, *StatusStore) {
	store := NewStatusStore()
	c := NewController(ch, store)
	c.sleep = func(time.Duration) {}
	return c, store
}

func TestSendRequiresConnection(t *testing.T) {
	ch := &fakeChannel{}
	c, _ := newTestController(ch)

	err := c.Send(NewCommand(ShutterHalfDown))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, ch.opcodes())
}

func TestSendWrapsWriteFailure(t *testing.T) {
	ch := &fakeChannel{connected: true, fail: map[Opcode]bool{RecordDown: true}}
	c, _ := newTestController(ch)

	err := c.ToggleRecording()
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, []Opcode{RecordDown}, ch.opcodes())
}

func TestTakePhotoWaitsForShutterCycle(t *testing.T) {
	ch := &fakeChannel{connected: true}
	c, store := newTestController(ch)
	ch.onWrite = func(op Opcode) {
		if op != ShutterFullDown {
			return
		}
		store.Apply(StatusUpdate{Kind: KindShutter, On: true})
		go func() {
			time.Sleep(10 * time.Millisecond)
			store.Apply(StatusUpdate{Kind: KindShutter, On: false})
		}()
	}

	require.NoError(t, c.TakePhoto(context.Background()))
	assert.Equal(t, []Opcode{ShutterFullDown, ShutterFullUp}, ch.opcodes())
	assert.False(t, store.Snapshot().ShutterActive())
}

func TestPressAndReleaseTimesOutButStillReleases(t *testing.T) {
	ch := &fakeChannel{connected: true}
	c, _ := newTestController(ch)

	err := c.PressAndRelease(context.Background(), ShutterFullDown, ShutterFullUp, Status.ShutterActive, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []Opcode{ShutterFullDown, ShutterFullUp}, ch.opcodes())
}

func TestBulbHoldsAndReleasesInOrder(t *testing.T) {
	ch := &fakeChannel{connected: true}
	c, _ := newTestController(ch)

	require.NoError(t, c.StartBulb())
	require.NoError(t, c.StopBulb())
	assert.Equal(t, []Opcode{ShutterHalfDown, ShutterFullDown, ShutterFullUp, ShutterHalfUp}, ch.opcodes())
}

func TestNudgeClampsAmount(t *testing.T) {
	ch := &fakeChannel{connected: true}
	c, _ := newTestController(ch)

	require.NoError(t, c.Nudge(FocusIn, 0x01))
	require.NoError(t, c.Nudge(ZoomTele, 0xFF))
	assert.Equal(t, [][]byte{
		{0x02, 0x6B, 0x10}, {0x02, 0x6A, 0x00},
		{0x02, 0x45, 0x7F}, {0x02, 0x44, 0x00},
	}, ch.writes)

	assert.Error(t, c.Nudge(Record, 0x20))
}

func TestEmergencyStopReleasesEverythingShutterFirst(t *testing.T) {
	ch := &fakeChannel{connected: true, fail: map[Opcode]bool{RecordUp: true}}
	c, _ := newTestController(ch)

	err := c.EmergencyStop()
	assert.ErrorIs(t, err, ErrWriteFailed)

	var want []Opcode
	for _, a := range Actions() {
		want = append(want, a.Release)
	}
	got := ch.opcodes()
	assert.Equal(t, want, got)
	assert.Equal(t, ShutterFullUp, got[0])
	assert.Equal(t, []byte{0x02, 0x44, 0x00}, ch.writes[5])
}
