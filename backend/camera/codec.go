package camera

import (
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Command is an opcode with an optional one byte parameter.
type Command struct {
	Opcode Opcode
	Param  *byte
}

func NewCommand(op Opcode) Command {
	return Command{Opcode: op}
}

func NewCommandWithParam(op Opcode, param byte) Command {
	return Command{Opcode: op, Param: &param}
}

func (c Command) Bytes() []byte {
	if c.Param == nil {
		return Encode(c.Opcode, nil)
	}
	return Encode(c.Opcode, c.Param)
}

func (c Command) String() string {
	if c.Param == nil {
		return c.Opcode.String()
	}
	return fmt.Sprintf("%s(0x%02X)", c.Opcode, *c.Param)
}

// Encode serializes an opcode MSB first, followed by the parameter when
// present.
func Encode(op Opcode, param *byte) []byte {
	size := 2
	if param != nil {
		size = 3
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf, uint16(op))
	if param != nil {
		buf[2] = *param
	}
	return buf
}

// StatusUpdate is one decoded status notification.
type StatusUpdate struct {
	Kind StatusKind
	On   bool
}

func (u StatusUpdate) value() byte {
	if u.On {
		return valueOn
	}
	return valueOff
}

// Bytes returns the wire form [0x02, kind, value].
func (u StatusUpdate) Bytes() []byte {
	return []byte{statusPrefix, byte(u.Kind), u.value()}
}

func (u StatusUpdate) String() string {
	return fmt.Sprintf("%s=%v", u.Kind, u.On)
}

// Decode parses a status notification. Anything other than a known
// [0x02, kind, value] triple is logged and dropped.
func Decode(b []byte) (StatusUpdate, bool) {
	if len(b) != 3 || b[0] != statusPrefix {
		log.WithField("component", "camera").Debugf("ignoring notification % X", b)
		return StatusUpdate{}, false
	}
	kind := StatusKind(b[1])
	for _, known := range statusTable {
		if known.Kind == kind && known.value() == b[2] {
			return known, true
		}
	}
	log.WithField("component", "camera").Warnf("unknown status type 0x%02X value 0x%02X", b[1], b[2])
	return StatusUpdate{}, false
}
