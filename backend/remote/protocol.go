package remote

import (
	"encoding/binary"
	"fmt"
	"time"

	"astroremote/backend/astro"
)

// Companion GATT profile.
const (
	ServiceUUID          = "180F1000-1234-5678-90AB-CDEF12345678"
	ControlCharUUID      = "180F1001-1234-5678-90AB-CDEF12345678"
	FeedbackCharUUID     = "180F1002-1234-5678-90AB-CDEF12345678"
	AstroStatusCharUUID  = "180F1003-1234-5678-90AB-CDEF12345678"
	AstroControlCharUUID = "180F1004-1234-5678-90AB-CDEF12345678"
)

// Command word categories, the high byte of the big-endian command word.
const (
	CategoryButton byte = 0x01
	CategoryAstro  byte = 0x02
	CategorySystem byte = 0x03
)

type CommandWord uint16

const (
	ButtonDown CommandWord = 0x0100
	ButtonUp   CommandWord = 0x0101

	AstroStart     CommandWord = 0x0200
	AstroPause     CommandWord = 0x0201
	AstroStop      CommandWord = 0x0202
	AstroReset     CommandWord = 0x0203
	AstroSetParams CommandWord = 0x0204
)

func (c CommandWord) Category() byte { return byte(c >> 8) }
func (c CommandWord) Sub() byte      { return byte(c) }

func (c CommandWord) String() string {
	switch c {
	case ButtonDown:
		return "button-down"
	case ButtonUp:
		return "button-up"
	case AstroStart:
		return "astro-start"
	case AstroPause:
		return "astro-pause"
	case AstroStop:
		return "astro-stop"
	case AstroReset:
		return "astro-reset"
	case AstroSetParams:
		return "astro-set-params"
	}
	return fmt.Sprintf("0x%04X", uint16(c))
}

// Feedback is the single status byte notified after every processed write.
type Feedback uint8

const (
	Success Feedback = iota
	Failure
	Busy
	Invalid
	ButtonStateError
	AstroError
)

func (f Feedback) String() string {
	switch f {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Busy:
		return "busy"
	case Invalid:
		return "invalid"
	case ButtonStateError:
		return "button-state-error"
	case AstroError:
		return "astro-error"
	}
	return fmt.Sprintf("feedback(%d)", uint8(f))
}

const (
	wordSize           = 2
	ParamPacketSize    = 8
	StatusSnapshotSize = 23
)

// DecodeParams reads four little-endian u16 in parameter order. Values are
// not validated here.
func DecodeParams(b []byte) (astro.Parameters, error) {
	if len(b) != ParamPacketSize {
		return astro.Parameters{}, fmt.Errorf("%w: parameter packet is %d bytes, want %d", ErrInvalidCommand, len(b), ParamPacketSize)
	}
	return astro.Parameters{
		InitialDelaySec: binary.LittleEndian.Uint16(b[0:]),
		ExposureSec:     binary.LittleEndian.Uint16(b[2:]),
		SubframeCount:   binary.LittleEndian.Uint16(b[4:]),
		IntervalSec:     binary.LittleEndian.Uint16(b[6:]),
	}, nil
}

func EncodeParams(p astro.Parameters) []byte {
	b := make([]byte, 0, ParamPacketSize)
	b = binary.LittleEndian.AppendUint16(b, p.InitialDelaySec)
	b = binary.LittleEndian.AppendUint16(b, p.ExposureSec)
	b = binary.LittleEndian.AppendUint16(b, p.SubframeCount)
	b = binary.LittleEndian.AppendUint16(b, p.IntervalSec)
	return b
}

// EncodeStatus serializes the astro status snapshot, little-endian:
//
//	state u8, completed u16, total u16, sequenceStart u32, frameStart u32,
//	elapsed u32, remaining u32, cameraConnected u8, errorCode u8
//
// Timestamps are Unix seconds, 0 when unset.
func EncodeStatus(st astro.Status) []byte {
	b := make([]byte, 0, StatusSnapshotSize)
	b = append(b, byte(st.State))
	b = binary.LittleEndian.AppendUint16(b, st.CompletedFrames)
	b = binary.LittleEndian.AppendUint16(b, st.TotalFrames)
	b = binary.LittleEndian.AppendUint32(b, unixSeconds(st.SequenceStartTime))
	b = binary.LittleEndian.AppendUint32(b, unixSeconds(st.CurrentFrameStartTime))
	b = binary.LittleEndian.AppendUint32(b, st.ElapsedSec)
	b = binary.LittleEndian.AppendUint32(b, st.RemainingSec)
	connected := byte(0)
	if st.CameraConnected {
		connected = 1
	}
	b = append(b, connected, byte(st.ErrorCode))
	return b
}

func unixSeconds(t time.Time) uint32 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint32(t.Unix())
}
