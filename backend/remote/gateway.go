package remote

import (
	"encoding/binary"
	"fmt"
	"sync"

	"astroremote/backend/astro"
	"astroremote/backend/bus"

	log "github.com/sirupsen/logrus"
)

// Notifier is the outward side of the companion service.
type Notifier interface {
	SendFeedback(code Feedback) error
	SendAstroStatus(buf []byte) error
	Advertise() error
}

// Sequencer is the part of the exposure sequencer the gateway drives.
type Sequencer interface {
	Start() error
	Pause() error
	Stop() error
	Reset() error
	SetParameters(p astro.Parameters) error
}

// Gateway ingests companion writes. The button table is written from the
// stack's context and read from the control loop, always under mu.
type Gateway struct {
	mu        sync.Mutex
	buttons   map[ButtonID]bool
	connected bool

	seq      Sequencer
	consumer ButtonConsumer
	notifier Notifier

	events *bus.Bus[astro.Event]
	token  bus.Token

	onFeedback func(CommandWord, Feedback)
}

func NewGateway(seq Sequencer, consumer ButtonConsumer, notifier Notifier) *Gateway {
	return &Gateway{
		buttons:  make(map[ButtonID]bool),
		seq:      seq,
		consumer: consumer,
		notifier: notifier,
	}
}

// Attach subscribes to sequencer events and notifies every status change
// as a snapshot.
func (g *Gateway) Attach(events *bus.Bus[astro.Event]) {
	g.events = events
	g.token = events.Subscribe(func(e astro.Event) {
		if e.Kind != astro.StatusChanged {
			return
		}
		if err := g.notifier.SendAstroStatus(EncodeStatus(e.Status)); err != nil {
			log.WithField("component", "remote").Debugf("can't notify astro status: %v", err)
		}
	})
}

func (g *Gateway) Close() {
	if g.events != nil {
		g.events.Unsubscribe(g.token)
		g.events = nil
	}
}

// OnFeedback registers a hook observing every processed write.
func (g *Gateway) OnFeedback(fn func(CommandWord, Feedback)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onFeedback = fn
}

// OnWrite handles a write on the control characteristic and notifies the
// feedback code.
func (g *Gateway) OnWrite(payload []byte) Feedback {
	word, err := g.Handle(payload)
	return g.reply(word, err)
}

// OnAstroWrite handles a write on the astro-control characteristic. Only
// the astro category is accepted there.
func (g *Gateway) OnAstroWrite(payload []byte) Feedback {
	if len(payload) < wordSize {
		return g.reply(0, fmt.Errorf("%w: %d byte payload", ErrInvalidCommand, len(payload)))
	}
	word := CommandWord(binary.BigEndian.Uint16(payload))
	if word.Category() != CategoryAstro {
		return g.reply(word, fmt.Errorf("%w: %s on astro control", ErrInvalidCommand, word))
	}
	return g.reply(word, g.handleAstro(word, payload[wordSize:]))
}

// Handle validates and applies a command without notifying feedback.
func (g *Gateway) Handle(payload []byte) (CommandWord, error) {
	if len(payload) < wordSize {
		return 0, fmt.Errorf("%w: %d byte payload", ErrInvalidCommand, len(payload))
	}
	word := CommandWord(binary.BigEndian.Uint16(payload))
	switch word.Category() {
	case CategoryButton:
		return word, g.handleButton(word, payload[wordSize:])
	case CategoryAstro:
		return word, g.handleAstro(word, payload[wordSize:])
	}
	return word, fmt.Errorf("%w: category 0x%02X", ErrInvalidCommand, word.Category())
}

func (g *Gateway) handleButton(word CommandWord, args []byte) error {
	if word != ButtonDown && word != ButtonUp {
		return fmt.Errorf("%w: %s", ErrInvalidCommand, word)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: %s takes one button id, got %d bytes", ErrInvalidCommand, word, len(args))
	}
	id := ButtonID(args[0])
	if !id.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidCommand, id)
	}
	pressed := word == ButtonDown

	g.mu.Lock()
	if g.buttons[id] == pressed {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s already %s", ErrButtonState, id, direction(pressed))
	}
	g.buttons[id] = pressed
	g.mu.Unlock()

	if g.consumer != nil {
		g.consumer.OnButton(id, pressed)
	}
	return nil
}

func (g *Gateway) handleAstro(word CommandWord, args []byte) error {
	if word == AstroSetParams {
		p, err := DecodeParams(args)
		if err != nil {
			return err
		}
		if err := g.seq.SetParameters(p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		return nil
	}

	var op func() error
	switch word {
	case AstroStart:
		op = g.seq.Start
	case AstroPause:
		op = g.seq.Pause
	case AstroStop:
		op = g.seq.Stop
	case AstroReset:
		op = g.seq.Reset
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCommand, word)
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: %s takes no arguments, got %d bytes", ErrInvalidCommand, word, len(args))
	}
	// The outcome is published through the status snapshot.
	if err := op(); err != nil {
		log.WithField("component", "remote").Infof("%s: %v", word, err)
	}
	return nil
}

func (g *Gateway) reply(word CommandWord, err error) Feedback {
	code := FeedbackFor(err)
	if err != nil {
		log.WithField("component", "remote").Warnf("rejected %s: %v", word, err)
	}
	if sendErr := g.notifier.SendFeedback(code); sendErr != nil {
		log.WithField("component", "remote").Debugf("can't notify feedback: %v", sendErr)
	}
	g.mu.Lock()
	hook := g.onFeedback
	g.mu.Unlock()
	if hook != nil {
		hook(word, code)
	}
	return code
}

func (g *Gateway) OnPeerConnect() {
	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()
	log.WithField("component", "remote").Info("companion connected")
}

// OnPeerDisconnect releases every held button, forwards the releases and
// resumes advertising.
func (g *Gateway) OnPeerDisconnect() {
	g.mu.Lock()
	g.connected = false
	var held []ButtonID
	for id, pressed := range g.buttons {
		if pressed {
			held = append(held, id)
		}
	}
	g.buttons = make(map[ButtonID]bool)
	g.mu.Unlock()

	log.WithField("component", "remote").Infof("companion disconnected, releasing %d buttons", len(held))
	if g.consumer != nil {
		for _, id := range held {
			g.consumer.OnButton(id, false)
		}
	}
	if err := g.notifier.Advertise(); err != nil {
		log.WithField("component", "remote").Errorf("can't resume advertising: %v", err)
	}
}

func (g *Gateway) PeerConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *Gateway) Pressed(id ButtonID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buttons[id]
}

func direction(pressed bool) string {
	if pressed {
		return "down"
	}
	return "up"
}
