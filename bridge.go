package main

import (
	"context"
	"time"

	"astroremote/backend/astro"
	"astroremote/backend/bus"
	"astroremote/backend/camera"
	"astroremote/backend/link"
	"astroremote/backend/manual"
	"astroremote/backend/preference"
	"astroremote/backend/remote"
	"astroremote/backend/wsapi"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	streamAstroStatus  = "astro.status"
	streamAstroParams  = "astro.params"
	streamCameraStatus = "camera.status"
	streamLinkState    = "link.state"
)

// Bridge owns every component instance and the websocket clients.
type Bridge struct {
	prefs        *preference.Store
	promRegistry *prometheus.Registry

	status     *camera.StatusStore
	supervisor *link.Supervisor
	camera     *camera.Controller
	sequencer  *astro.Sequencer
	input      *remote.InputState
	gateway    *remote.Gateway
	manual     *manual.Controller

	astroEvents  *bus.Bus[astro.Event]
	cameraEvents *bus.Bus[camera.Status]
	linkEvents   *bus.Bus[link.State]

	ws wsClients
}

func newBridge(prefs *preference.Store, adapter link.Adapter, notifier remote.Notifier) *Bridge {
	b := &Bridge{
		prefs:        prefs,
		promRegistry: prometheus.NewRegistry(),
		status:       camera.NewStatusStore(),
		input:        remote.NewInputState(),
		astroEvents:  bus.New[astro.Event](),
		cameraEvents: bus.New[camera.Status](),
		linkEvents:   bus.New[link.State](),
	}

	b.supervisor = link.NewSupervisor(adapter, prefs, b.status, link.DefaultConfig())
	b.camera = camera.NewController(b.supervisor, b.status)
	b.sequencer = astro.NewSequencer(b.camera, b.astroEvents)
	b.gateway = remote.NewGateway(b.sequencer, b.input, notifier)
	b.manual = manual.NewController(b.camera, b.input, b.sequencer)

	b.status.OnChange(b.cameraEvents.Publish)
	b.supervisor.OnStateChange(b.linkEvents.Publish)
	b.gateway.Attach(b.astroEvents)

	b.astroEvents.Subscribe(b.onAstroEvent)
	b.cameraEvents.Subscribe(b.onCameraStatus)
	b.linkEvents.Subscribe(b.onLinkState)
	b.gateway.OnFeedback(b.onFeedback)
	b.manual.OnAction(b.onManualAction)
	return b
}

// autoConnect dials the paired camera in the background when one is
// remembered and auto-connect is enabled.
func (b *Bridge) autoConnect() {
	device, ok := b.prefs.PairedDevice()
	if !ok || !b.prefs.AutoConnect() {
		return
	}
	go func() {
		if err := b.supervisor.Connect(device); err != nil {
			log.WithField("component", "bridge").Warnf("auto-connect to %s: %v", device, err)
		}
	}()
}

func (b *Bridge) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.tick(ctx, now)
		}
	}
}

func (b *Bridge) tick(ctx context.Context, now time.Time) {
	b.supervisor.Tick(now)
	b.sequencer.Tick(now)
	b.manual.Tick(ctx)
	linkReconnectAttempts.Set(float64(b.supervisor.ReconnectAttempts()))
}

// close releases a held shutter and drops the camera link.
func (b *Bridge) close() {
	if b.sequencer.Running() {
		if err := b.sequencer.Stop(); err != nil {
			log.WithField("component", "bridge").Errorf("stop sequence on shutdown: %v", err)
		}
	}
	b.gateway.Close()
	b.supervisor.Disconnect()
	b.ws.closeAll()
}

type BridgeSnapshot struct {
	Link          link.State       `json:"link"`
	Device        interface{}      `json:"device,omitempty"`
	Camera        camera.Status    `json:"camera"`
	Astro         astro.Status     `json:"astro"`
	Parameters    astro.Parameters `json:"parameters"`
	Sensitivity   string           `json:"sensitivity"`
	Focusing      bool             `json:"focusing"`
	PeerConnected bool             `json:"peerConnected"`
	AutoConnect   bool             `json:"autoconnect"`
	Brightness    uint8            `json:"brightness"`
}

func (b *Bridge) snapshot() BridgeSnapshot {
	s := BridgeSnapshot{
		Link:          b.supervisor.State(),
		Camera:        b.status.Snapshot(),
		Astro:         b.sequencer.Status(),
		Parameters:    b.sequencer.Parameters(),
		Sensitivity:   b.manual.Sensitivity().String(),
		Focusing:      b.manual.Focusing(),
		PeerConnected: b.gateway.PeerConnected(),
		AutoConnect:   b.prefs.AutoConnect(),
		Brightness:    b.prefs.Brightness(),
	}
	if device, ok := b.prefs.PairedDevice(); ok {
		s.Device = device
	}
	return s
}

func (b *Bridge) onAstroEvent(e astro.Event) {
	switch e.Kind {
	case astro.StatusChanged:
		sequencerState.Set(float64(e.Status.State))
		sequencerCompletedFrames.Set(float64(e.Status.CompletedFrames))
		sequencerRemainingSeconds.Set(float64(e.Status.RemainingSec))
		b.broadcast(wsapi.WebsocketPacket{Stream: streamAstroStatus, Data: e.Status})
	case astro.ParametersChanged:
		b.broadcast(wsapi.WebsocketPacket{Stream: streamAstroParams, Data: e.Parameters})
	}
}

func (b *Bridge) onCameraStatus(s camera.Status) {
	cameraFocusAcquired.Set(boolGauge(s.FocusAcquired()))
	cameraShutterActive.Set(boolGauge(s.ShutterActive()))
	cameraRecording.Set(boolGauge(s.IsRecording()))
	b.broadcast(wsapi.WebsocketPacket{Stream: streamCameraStatus, Data: s})
}

func (b *Bridge) onLinkState(st link.State) {
	linkState.Set(float64(st))
	log.WithField("component", "bridge").Infof("camera link %s", st)
	b.broadcast(wsapi.WebsocketPacket{Stream: streamLinkState, Data: st})
}

func (b *Bridge) onFeedback(word remote.CommandWord, fb remote.Feedback) {
	feedbackTotal.WithLabelValues(fb.String()).Inc()
}

func (b *Bridge) onManualAction(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	manualActionsTotal.WithLabelValues(action, result).Inc()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
