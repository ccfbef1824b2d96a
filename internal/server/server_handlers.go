package server

import (
	"fmt"
	"net/http"

	"github.com/koltyakov/posbridge/internal/netutil"
)

func (s *Server) routes() http.Handler {
	return s.newMux(s.conns.Load())
}

// newMux binds the websocket route to h, so handlers of a stopped run can
// never register with the registry of a later run.
func (s *Server) newMux(h *hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.cfg.WSPath+"{$}", func(w http.ResponseWriter, r *http.Request) {
		s.handleUpgrade(h, w, r)
	})
	mux.HandleFunc("GET /{$}", s.handleStaticInfo)
	return mux
}

// buildHandler is newMux with route registration panics reported as errors.
func (s *Server) buildHandler(h *hub) (handler http.Handler, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register routes: %v", r)
		}
	}()
	return s.newMux(h), nil
}

func (s *Server) handleStaticInfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.cfg.StaticInfoBody))
}

func (s *Server) handleUpgrade(h *hub, w http.ResponseWriter, r *http.Request) {
	if !h.enter() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer h.leave()

	if !s.gate.Allow(r.RemoteAddr) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	sess := newSession(netutil.RemoteHost(r.RemoteAddr))
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sess.close()
		s.log.Debug("websocket upgrade failed", "remote", sess.remote, "err", err)
		return
	}
	sess.attach(conn)

	if !h.add(sess) {
		sess.close()
		s.log.Debug("connection refused during shutdown", "remote", sess.remote)
		return
	}
	defer h.remove(sess)

	s.serveSession(sess)
}
