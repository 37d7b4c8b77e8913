package wsapi

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const KeepaliveInterval = 30 * time.Second

// WsSafeConn serializes writes to one websocket and keeps it alive with
// pings when nothing else was sent for KeepaliveInterval.
type WsSafeConn struct {
	Ws      *websocket.Conn
	Mu      sync.Mutex
	Last    time.Time
	Next    *time.Timer
	Streams []string
	Control bool
	closed  bool
}

func NewWsSafeConn(ws *websocket.Conn, control bool) *WsSafeConn {
	conn := &WsSafeConn{Ws: ws, Last: time.Now(), Control: control}
	conn.Next = time.AfterFunc(KeepaliveInterval, conn.next)
	return conn
}

func (conn *WsSafeConn) next() {
	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	if conn.closed {
		return
	}
	conn.Last = time.Now()
	if err := conn.Ws.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
		return
	}
	conn.Next = time.AfterFunc(KeepaliveInterval, conn.next)
}

func (conn *WsSafeConn) Send(v interface{}) error {
	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	if conn.closed {
		return websocket.ErrCloseSent
	}
	if conn.Next != nil {
		conn.Next.Stop()
	}
	conn.Last = time.Now()
	err := conn.Ws.WriteJSON(v)
	conn.Next = time.AfterFunc(KeepaliveInterval, conn.next)
	return err
}

func (conn *WsSafeConn) Close() error {
	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	conn.closed = true
	if conn.Next != nil {
		conn.Next.Stop()
	}
	return conn.Ws.Close()
}

func (conn *WsSafeConn) Register(stream string) {
	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	for _, s := range conn.Streams {
		if s == stream {
			return
		}
	}
	conn.Streams = append(conn.Streams, stream)
}

func (conn *WsSafeConn) Unregister(stream string) {
	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	conn.Streams = removeString(conn.Streams, stream)
}

func (conn *WsSafeConn) IsRegistered(stream string) bool {
	conn.Mu.Lock()
	defer conn.Mu.Unlock()
	for _, s := range conn.Streams {
		if s == stream {
			return true
		}
	}
	return false
}

func removeString(arr []string, search string) []string {
	newArr := make([]string, 0)
	for _, s := range arr {
		if s != search {
			newArr = append(newArr, s)
		}
	}
	return newArr
}
