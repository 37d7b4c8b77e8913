package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	linkState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "astro_link_state",
		Help: "camera link state: 0 disconnected, 1 connecting, 2 connected, 3 reconnecting, 4 failed",
	},
	)

	linkReconnectAttempts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "astro_link_reconnect_attempts",
		Help: "reconnect attempts since the link dropped",
	},
	)

	cameraFocusAcquired = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "astro_camera_focus_acquired",
		Help: "1 when the camera reports focus acquired",
	},
	)

	cameraShutterActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "astro_camera_shutter_active",
		Help: "1 when the camera reports the shutter active",
	},
	)

	cameraRecording = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "astro_camera_recording",
		Help: "1 when the camera reports recording",
	},
	)

	sequencerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "astro_sequencer_state",
		Help: "sequencer state: 0 idle, 1 initial delay, 2 exposing, 3 interval, 4 paused, 5 stopped, 6 error",
	},
	)

	sequencerCompletedFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "astro_sequencer_completed_frames",
		Help: "frames completed in the current sequence",
	},
	)

	sequencerRemainingSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "astro_sequencer_remaining_seconds",
		Help: "estimated seconds left in the current sequence",
	},
	)

	feedbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "astro_remote_feedback_total",
		Help: "feedback codes sent to the companion",
	},
		[]string{"code"},
	)

	manualActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "astro_manual_actions_total",
		Help: "camera actions triggered by the companion buttons",
	},
		[]string{"action", "result"},
	)
)

func (b *Bridge) registerMetrics() {
	b.promRegistry.MustRegister(linkState)
	b.promRegistry.MustRegister(linkReconnectAttempts)
	b.promRegistry.MustRegister(cameraFocusAcquired)
	b.promRegistry.MustRegister(cameraShutterActive)
	b.promRegistry.MustRegister(cameraRecording)
	b.promRegistry.MustRegister(sequencerState)
	b.promRegistry.MustRegister(sequencerCompletedFrames)
	b.promRegistry.MustRegister(sequencerRemainingSeconds)
	b.promRegistry.MustRegister(feedbackTotal)
	b.promRegistry.MustRegister(manualActionsTotal)
}
