package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/koltyakov/posbridge/internal/domain"
	"github.com/koltyakov/posbridge/internal/posproto"
)

var errSessionNotOpen = errors.New("connection not open")

const maxLoggedPayload = 256

// session is one device connection. Its state only moves forward:
// connecting, open, closed.
type session struct {
	id     string
	remote string

	mu    sync.Mutex
	state string
	conn  *websocket.Conn

	writeMu sync.Mutex
}

func newSession(remote string) *session {
	return &session{
		id:     uuid.NewString(),
		remote: remote,
		state:  domain.ConnStateConnecting,
	}
}

func (c *session) attach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.ConnStateClosed {
		_ = conn.Close()
		return
	}
	c.conn = conn
}

// open moves a connecting session to open. It fails once closed.
func (c *session) open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.ConnStateConnecting || c.conn == nil {
		return false
	}
	c.state = domain.ConnStateOpen
	return true
}

// close is idempotent and severs the socket without a close frame.
func (c *session) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.ConnStateClosed {
		return
	}
	c.state = domain.ConnStateClosed
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *session) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *session) writeFrame(v any, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.State() != domain.ConnStateOpen {
		return errSessionNotOpen
	}
	return posproto.WriteFrame(c.conn, v, timeout)
}

// serveSession greets the peer, then acknowledges each inbound frame in
// arrival order until the connection fails or is closed.
func (s *Server) serveSession(sess *session) {
	if !sess.open() {
		return
	}
	s.log.Info("websocket connection opened", "conn_id", sess.id, "remote", sess.remote)
	defer func() {
		sess.close()
		s.log.Info("websocket connection closed", "conn_id", sess.id, "remote", sess.remote)
	}()

	identity := posproto.NewIdentity(s.cfg.InstanceID, s.cfg.SharedKey, s.cfg.BuildVersion)
	if err := sess.writeFrame(identity, s.cfg.WriteTimeout); err != nil {
		s.log.Warn("identity send failed", "conn_id", sess.id, "remote", sess.remote, "err", err)
		return
	}

	sess.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	for {
		_, payload, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read failed", "conn_id", sess.id, "remote", sess.remote, "err", err)
			}
			return
		}
		if err := s.onMessage(sess, payload); err != nil {
			s.log.Warn("ack send failed", "conn_id", sess.id, "remote", sess.remote, "err", err)
			return
		}
	}
}

// onMessage acknowledges one inbound frame. The payload is not interpreted.
func (s *Server) onMessage(sess *session, payload []byte) error {
	if s.log.Enabled(context.Background(), slog.LevelDebug) {
		logged := payload
		if len(logged) > maxLoggedPayload {
			logged = logged[:maxLoggedPayload]
		}
		s.log.Debug("message received", "conn_id", sess.id, "remote", sess.remote, "bytes", len(payload), "payload", string(logged))
	}
	return sess.writeFrame(posproto.NewAck(s.cfg.InstanceID), s.cfg.WriteTimeout)
}

// hub is the registry of open device connections for one run of the
// server. wg counts upgrade handlers from entry to exit, so waiting on it
// also covers handlers that have not registered a session yet.
type hub struct {
	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

func newHub() *hub {
	return &hub{sessions: map[string]*session{}}
}

// enter admits an upgrade handler unless the hub is shutting down. Every
// successful enter must be paired with leave.
func (h *hub) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *hub) leave() {
	h.wg.Done()
}

// add registers sess unless the hub is shutting down.
func (h *hub) add(sess *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[sess.id] = sess
	return true
}

func (h *hub) remove(sess *session) {
	h.mu.Lock()
	delete(h.sessions, sess.id)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// closeAll refuses further handlers and registrations and severs every open
// session. A closed hub is never reused.
func (h *hub) closeAll() int {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	return len(sessions)
}

// wait blocks until every admitted upgrade handler has returned.
func (h *hub) wait() {
	h.wg.Wait()
}
