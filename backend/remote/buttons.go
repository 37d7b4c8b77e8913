package remote

import (
	"fmt"
	"sync"
)

type ButtonID uint8

const (
	ButtonUpID      ButtonID = 0x01
	ButtonDownID    ButtonID = 0x02
	ButtonLeft      ButtonID = 0x03
	ButtonRight     ButtonID = 0x04
	ButtonConfirm   ButtonID = 0x05
	ButtonBack      ButtonID = 0x06
	ButtonA         ButtonID = 0x10
	ButtonB         ButtonID = 0x11
	ButtonPower     ButtonID = 0x12
	ButtonEmergency ButtonID = 0x13
)

var buttonNames = map[ButtonID]string{
	ButtonUpID:      "UP",
	ButtonDownID:    "DOWN",
	ButtonLeft:      "LEFT",
	ButtonRight:     "RIGHT",
	ButtonConfirm:   "CONFIRM",
	ButtonBack:      "BACK",
	ButtonA:         "BTN_A",
	ButtonB:         "BTN_B",
	ButtonPower:     "BTN_PWR",
	ButtonEmergency: "BTN_EMERGENCY",
}

func (b ButtonID) Valid() bool {
	_, ok := buttonNames[b]
	return ok
}

func (b ButtonID) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return fmt.Sprintf("button(0x%02X)", uint8(b))
}

// ButtonConsumer receives accepted button transitions.
type ButtonConsumer interface {
	OnButton(id ButtonID, pressed bool)
}

type inputButton struct {
	pressed bool
	pending bool
}

// InputState tracks button edges for the control loop. OnButton is called
// from the stack's context, the query methods from the loop.
type InputState struct {
	mu      sync.Mutex
	buttons map[ButtonID]*inputButton
}

func NewInputState() *InputState {
	return &InputState{buttons: make(map[ButtonID]*inputButton)}
}

func (s *InputState) OnButton(id ButtonID, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buttons[id]
	if !ok {
		b = &inputButton{}
		s.buttons[id] = b
	}
	b.pressed = pressed
	if pressed {
		b.pending = true
	}
}

// WasPressed reports a press once, even if the button was released again
// before the loop looked. Later calls return false until the next press.
func (s *InputState) WasPressed(id ButtonID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buttons[id]
	if !ok || !b.pending {
		return false
	}
	b.pending = false
	return true
}

func (s *InputState) IsPressed(id ButtonID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buttons[id]
	return ok && b.pressed
}

func (s *InputState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttons = make(map[ButtonID]*inputButton)
}
