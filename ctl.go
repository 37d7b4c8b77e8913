package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"astroremote/backend/astro"
	"astroremote/backend/model"

	log "github.com/sirupsen/logrus"
)

var errUsage = errors.New("usage")

type ctlReply struct {
	Ok    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// handleCtl runs one control socket command and returns a JSON reply line.
func (b *Bridge) handleCtl(line string) string {
	fields := strings.Fields(line)
	reply := ctlReply{Ok: true}
	var err error
	if len(fields) == 0 {
		err = fmt.Errorf("%w: empty command", errUsage)
	} else {
		reply.Data, err = b.runCtl(fields[0], fields[1:])
	}
	if err != nil {
		log.WithField("component", "ctl").Infof("%s: %v", line, err)
		reply = ctlReply{Error: err.Error()}
	}
	raw, _ := json.Marshal(reply)
	return string(raw)
}

func (b *Bridge) runCtl(cmd string, args []string) (interface{}, error) {
	switch cmd {
	case "status":
		return b.snapshot(), nil
	case "connect":
		if len(args) < 1 {
			return nil, fmt.Errorf("%w: connect <address> [name]", errUsage)
		}
		device := model.PairedDevice{Address: args[0]}
		if len(args) > 1 {
			device.Name = strings.Join(args[1:], " ")
		}
		return nil, b.supervisor.Connect(device)
	case "disconnect":
		b.supervisor.Disconnect()
		return nil, nil
	case "forget":
		return nil, b.supervisor.Forget()
	case "start":
		return b.sequencerOp(b.sequencer.Start)
	case "pause":
		return b.sequencerOp(b.sequencer.Pause)
	case "stop":
		return b.sequencerOp(b.sequencer.Stop)
	case "reset":
		return b.sequencerOp(b.sequencer.Reset)
	case "set":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: set <name> <value>", errUsage)
		}
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, err
		}
		if err := b.sequencer.SetParameter(args[0], value); err != nil {
			return nil, err
		}
		return b.sequencer.Parameters(), nil
	case "photo":
		if b.sequencer.Running() {
			return nil, fmt.Errorf("photo while a sequence runs: %w", astro.ErrRejectedState)
		}
		return nil, b.camera.TakePhoto(context.Background())
	case "estop":
		var errs []error
		if b.sequencer.Running() {
			errs = append(errs, b.sequencer.Stop())
		}
		errs = append(errs, b.camera.EmergencyStop())
		return nil, errors.Join(errs...)
	case "autoconnect":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return nil, fmt.Errorf("%w: autoconnect on|off", errUsage)
		}
		return nil, b.prefs.SetAutoConnect(args[0] == "on")
	case "brightness":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: brightness <0-255>", errUsage)
		}
		value, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return nil, err
		}
		return nil, b.prefs.SetBrightness(uint8(value))
	}
	return nil, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (b *Bridge) sequencerOp(op func() error) (interface{}, error) {
	if err := op(); err != nil {
		return nil, err
	}
	return b.sequencer.Status(), nil
}
