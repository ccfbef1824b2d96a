package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/koltyakov/posbridge/internal/worker"
)

const readHeaderTimeout = 10 * time.Second

// Start binds the listener and serves in the background. It returns as soon
// as the port is bound; a bind failure is returned and the server stays
// Stopped.
func (s *Server) Start() error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyStarted
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := newHub()
	handler, err := s.buildHandler(conns)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return err
	}

	addr := s.cfg.ListenAddr()
	s.log.Info("starting websocket server", "addr", addr, "ws_path", s.cfg.WSPath)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.conns.Store(conns)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelDebug),
	}
	serveDone := make(chan struct{})
	serveErr := make(chan error, 1)

	auditCtx, stopAudit := context.WithCancel(context.Background())
	if s.auditQueue != nil {
		s.auditWG.Add(1)
		go func() {
			defer s.auditWG.Done()
			s.runAuditWorker(auditCtx)
		}()
	}

	go func() {
		defer close(serveDone)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	s.ln = ln
	s.httpServer = srv
	s.serveDone = serveDone
	s.serveErr = serveErr
	s.stopAudit = stopAudit
	s.state.Store(int32(StateRunning))
	s.log.Info("websocket server is up", "addr", ln.Addr().String())
	return nil
}

// Stop refuses new connections, drops every open device connection and
// blocks until the serve goroutine, all connection goroutines and the audit
// worker have returned. Open connections are severed without a close frame.
func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrNotRunning
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("shutting down websocket server")
	conns := s.conns.Load()
	closeErr := s.httpServer.Close()
	if dropped := conns.closeAll(); dropped > 0 {
		s.log.Info("dropped open connections", "count", dropped)
	}
	<-s.serveDone
	conns.wait()
	s.stopAudit()
	s.auditWG.Wait()

	s.ln = nil
	s.httpServer = nil
	s.serveDone = nil
	s.serveErr = nil
	s.stopAudit = nil
	s.state.Store(int32(StateStopped))
	s.log.Info("websocket server is down")

	if closeErr != nil && !errors.Is(closeErr, http.ErrServerClosed) && !errors.Is(closeErr, net.ErrClosed) {
		return closeErr
	}
	return nil
}

// Run starts the server and keeps it up until sig reports a stop request.
// The request is observed every PollInterval, so shutdown begins at most one
// interval after it is raised. Run also stops early when serving fails.
func (s *Server) Run(sig worker.StopSignal) error {
	if err := s.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	serveErr := s.serveErr
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var runErr error
loop:
	for !sig.IsStopRequested() {
		select {
		case <-ticker.C:
		case err := <-serveErr:
			s.log.Error("websocket server failed", "err", err)
			runErr = fmt.Errorf("serve: %w", err)
			break loop
		}
	}

	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return errors.Join(runErr, err)
	}
	return runErr
}
