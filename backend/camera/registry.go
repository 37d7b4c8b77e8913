package camera

import "fmt"

// GATT profile of the camera remote control service.
const (
	ServiceUUID        = "8000FF00-FF00-FFFF-FFFF-FFFFFFFFFFFF"
	ControlCharUUID    = "0000FF01-0000-1000-8000-00805F9B34FB"
	StatusCharUUID     = "0000FF02-0000-1000-8000-00805F9B34FB"
	StatusReadCharUUID = "0000CC05-0000-1000-8000-00805F9B34FB"
)

const statusPrefix byte = 0x02

type Opcode uint16

const (
	ShutterHalfUp   Opcode = 0x0106
	ShutterHalfDown Opcode = 0x0107
	ShutterFullUp   Opcode = 0x0108
	ShutterFullDown Opcode = 0x0109

	RecordUp   Opcode = 0x010E
	RecordDown Opcode = 0x010F

	AFOnUp   Opcode = 0x0114
	AFOnDown Opcode = 0x0115

	C1Up   Opcode = 0x0120
	C1Down Opcode = 0x0121

	ZoomTeleRelease Opcode = 0x0244
	ZoomTelePress   Opcode = 0x0245
	ZoomWideRelease Opcode = 0x0246
	ZoomWidePress   Opcode = 0x0247

	FocusInRelease  Opcode = 0x026A
	FocusInPress    Opcode = 0x026B
	FocusOutRelease Opcode = 0x026C
	FocusOutPress   Opcode = 0x026D
)

// Param bounds for zoom and focus presses.
const (
	MinAmount byte = 0x10
	MaxAmount byte = 0x7F
)

// Action is one physical control of the camera: a press opcode and the
// release opcode that undoes it.
type Action struct {
	Name     string
	Press    Opcode
	Release  Opcode
	HasParam bool
}

var (
	ShutterHalf = Action{Name: "shutter-half", Press: ShutterHalfDown, Release: ShutterHalfUp}
	ShutterFull = Action{Name: "shutter-full", Press: ShutterFullDown, Release: ShutterFullUp}
	Record      = Action{Name: "record", Press: RecordDown, Release: RecordUp}
	AFOn        = Action{Name: "af-on", Press: AFOnDown, Release: AFOnUp}
	C1          = Action{Name: "c1", Press: C1Down, Release: C1Up}
	ZoomTele    = Action{Name: "zoom-tele", Press: ZoomTelePress, Release: ZoomTeleRelease, HasParam: true}
	ZoomWide    = Action{Name: "zoom-wide", Press: ZoomWidePress, Release: ZoomWideRelease, HasParam: true}
	FocusIn     = Action{Name: "focus-in", Press: FocusInPress, Release: FocusInRelease, HasParam: true}
	FocusOut    = Action{Name: "focus-out", Press: FocusOutPress, Release: FocusOutRelease, HasParam: true}
)

// registry is the closed set of actions. Order matters: EmergencyStop
// releases in this order, shutter first.
var registry = []Action{
	ShutterFull,
	ShutterHalf,
	Record,
	AFOn,
	C1,
	ZoomTele,
	ZoomWide,
	FocusIn,
	FocusOut,
}

// Actions returns a copy of the registry.
func Actions() []Action {
	out := make([]Action, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds the action an opcode belongs to and whether the opcode is
// its press half.
func Lookup(op Opcode) (Action, bool, bool) {
	for _, a := range registry {
		if a.Press == op {
			return a, true, true
		}
		if a.Release == op {
			return a, false, true
		}
	}
	return Action{}, false, false
}

func (op Opcode) String() string {
	if a, press, ok := Lookup(op); ok {
		if press {
			return a.Name + "-press"
		}
		return a.Name + "-release"
	}
	return fmt.Sprintf("0x%04X", uint16(op))
}

// StatusKind is the statusType byte of a status notification.
type StatusKind byte

const (
	KindFocus     StatusKind = 0x3F
	KindShutter   StatusKind = 0xA0
	KindRecording StatusKind = 0xD5
)

const (
	valueOff byte = 0x00
	valueOn  byte = 0x20
)

func (k StatusKind) String() string {
	switch k {
	case KindFocus:
		return "focus"
	case KindShutter:
		return "shutter"
	case KindRecording:
		return "recording"
	}
	return fmt.Sprintf("0x%02X", byte(k))
}

// statusTable lists every (kind, value) pair the camera is known to emit.
var statusTable = []StatusUpdate{
	{Kind: KindFocus, On: false},
	{Kind: KindFocus, On: true},
	{Kind: KindShutter, On: false},
	{Kind: KindShutter, On: true},
	{Kind: KindRecording, On: false},
	{Kind: KindRecording, On: true},
}

// StatusTable returns a copy of the known status notifications.
func StatusTable() []StatusUpdate {
	out := make([]StatusUpdate, len(statusTable))
	copy(out, statusTable)
	return out
}
