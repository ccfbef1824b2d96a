package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koltyakov/posbridge/internal/access"
	"github.com/koltyakov/posbridge/internal/config"
	"github.com/koltyakov/posbridge/internal/domain"
)

var (
	// ErrAlreadyStarted is returned by Start when the server is not Stopped.
	ErrAlreadyStarted = errors.New("server already started")
	// ErrNotRunning is returned by Stop when the server is not Running.
	ErrNotRunning = errors.New("server not running")
)

// State is the lifecycle position of a [Server].
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (st State) String() string {
	switch st {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// AccessRecorder persists allowlist decisions. It is optional.
type AccessRecorder interface {
	RecordAccessEvent(ctx context.Context, evt domain.AccessEvent) error
	PurgeAccessEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Server owns the listener and serves the static info route and the device
// websocket route on a single port.
type Server struct {
	cfg      config.ServiceConfig
	log      *slog.Logger
	gate     *access.Gate
	conns    atomic.Pointer[hub]
	upgrader websocket.Upgrader

	audit        AccessRecorder
	auditQueue   chan domain.AccessEvent
	auditDropped atomic.Int64

	state atomic.Int32

	mu         sync.Mutex
	ln         net.Listener
	httpServer *http.Server
	serveDone  chan struct{}
	serveErr   chan error
	stopAudit  context.CancelFunc
	auditWG    sync.WaitGroup
}

// Option customizes a [Server].
type Option func(*Server)

// WithAccessRecorder sends every allowlist decision to rec in the background.
func WithAccessRecorder(rec AccessRecorder) Option {
	return func(s *Server) { s.audit = rec }
}

const (
	defaultPollInterval    = time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultMaxMessageBytes = 1 << 20
	defaultWSPath          = "/codenerix_pos_client/"
	auditQueueSize         = 256
)

func New(cfg config.ServiceConfig, logger *slog.Logger, opts ...Option) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	if cfg.WSPath == "" {
		cfg.WSPath = defaultWSPath
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Device clients are identified by remote IP; the gate runs
			// before Upgrade, so the browser Origin header is not consulted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.conns.Store(newHub())
	if s.audit != nil {
		s.auditQueue = make(chan domain.AccessEvent, auditQueueSize)
	}
	s.gate = access.NewGate(cfg.AllowedOrigins, logger, access.WithObserver(s.recordAccess))
	return s
}

// State reports the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound listener address, or nil when not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveConnections returns the number of open device connections.
func (s *Server) ActiveConnections() int {
	return s.conns.Load().count()
}
