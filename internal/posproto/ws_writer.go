package posproto

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

var ErrNilConn = errors.New("websocket connection is nil")

const defaultWriteTimeout = 10 * time.Second

// WriteFrame encodes v and sends it as a single text frame, bounded by
// writeTimeout. The connection is closed when the write fails so the peer
// does not observe a half-written frame followed by more traffic.
func WriteFrame(conn *websocket.Conn, v any, writeTimeout time.Duration) error {
	if conn == nil {
		return ErrNilConn
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	payload, err := Encode(v)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}
