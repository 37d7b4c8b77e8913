package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"astroremote/backend/auth"
	"astroremote/backend/remote"
	"astroremote/backend/wsapi"

	log "github.com/sirupsen/logrus"
)

var errForbidden = errors.New("control role required")

type wsClients struct {
	mu    sync.Mutex
	conns []*wsapi.WsSafeConn
}

func (c *wsClients) add(conn *wsapi.WsSafeConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns = append(c.conns, conn)
}

func (c *wsClients) remove(conn *wsapi.WsSafeConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.conns {
		if existing == conn {
			c.conns = append(c.conns[0:i], c.conns[i+1:]...)
			return
		}
	}
}

func (c *wsClients) list() []*wsapi.WsSafeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*wsapi.WsSafeConn(nil), c.conns...)
}

func (c *wsClients) closeAll() {
	for _, conn := range c.list() {
		conn.Close()
	}
}

func (b *Bridge) checkWebsocketOrigin(r *http.Request) bool {
	return true
}

func (b *Bridge) websocket(w http.ResponseWriter, r *http.Request) {
	secret := b.prefs.JwtSecret()
	if !auth.HasReadRole(secret, r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("component", "ws").Debugf("upgrade error: %v", err)
		return
	}
	conn := wsapi.NewWsSafeConn(c, auth.HasControlRole(secret, r))
	b.ws.add(conn)
	defer func() {
		b.ws.remove(conn)
		conn.Close()
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			break
		}
		conn.Mu.Lock()
		conn.Last = time.Now()
		conn.Mu.Unlock()
		b.handleWebsocketMessage(conn, message)
	}
}

func (b *Bridge) handleWebsocketMessage(conn *wsapi.WsSafeConn, message []byte) {
	var packet wsapi.WebsocketAction
	if err := json.Unmarshal(message, &packet); err != nil {
		b.sendError(conn, packet.Id, err)
		return
	}

	switch a := packet.Data.(type) {
	case *wsapi.PingActionData:
		b.send(conn, wsapi.WebsocketAction{Id: packet.Id, Action: "pong", Data: a})
	case *wsapi.RegisterActionData:
		conn.Register(a.Stream)
		if initial, ok := b.streamValue(a.Stream); ok {
			b.send(conn, wsapi.WebsocketPacket{Stream: a.Stream, Data: initial})
		}
	case *wsapi.UnregisterActionData:
		conn.Unregister(a.Stream)
	case *wsapi.CommandActionData:
		if !conn.Control {
			b.sendError(conn, packet.Id, errForbidden)
			return
		}
		payload, err := a.Bytes()
		if err != nil {
			b.sendError(conn, packet.Id, err)
			return
		}
		word, err := b.gateway.Handle(payload)
		b.send(conn, wsapi.WebsocketResponse{Id: packet.Id, Data: wsapi.CommandResult{
			Command:  word.String(),
			Feedback: remote.FeedbackFor(err).String(),
		}})
	case *wsapi.ParamActionData:
		if !conn.Control {
			b.sendError(conn, packet.Id, errForbidden)
			return
		}
		if err := b.sequencer.SetParameter(a.Name, a.Value); err != nil {
			b.sendError(conn, packet.Id, err)
			return
		}
		b.send(conn, wsapi.WebsocketResponse{Id: packet.Id, Data: b.sequencer.Parameters()})
	}
}

// streamValue returns the current value of a stream, sent once on
// registration so clients don't wait for the next change.
func (b *Bridge) streamValue(stream string) (interface{}, bool) {
	switch stream {
	case streamAstroStatus:
		return b.sequencer.Status(), true
	case streamAstroParams:
		return b.sequencer.Parameters(), true
	case streamCameraStatus:
		return b.status.Snapshot(), true
	case streamLinkState:
		return b.supervisor.State(), true
	}
	return nil, false
}

func (b *Bridge) broadcast(v wsapi.WebsocketPacket) {
	for _, conn := range b.ws.list() {
		if conn.IsRegistered(v.Stream) {
			b.send(conn, v)
		}
	}
}

func (b *Bridge) send(conn *wsapi.WsSafeConn, v interface{}) {
	if err := conn.Send(v); err != nil {
		log.WithField("component", "ws").Debugf("send: %v", err)
	}
}

func (b *Bridge) sendError(conn *wsapi.WsSafeConn, id *int64, err error) {
	b.send(conn, wsapi.WebsocketErrorResponse{Id: id, Error: wsapi.ErrorMessage{Message: err.Error()}})
}
