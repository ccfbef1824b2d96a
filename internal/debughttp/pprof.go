// Package debughttp serves runtime profiles on a side port, away from the
// device-facing listener.
package debughttp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	httppprof "net/http/pprof"
	"strings"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Listener is a running pprof server.
type Listener struct {
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// Listen binds addr and serves pprof in the background. It returns a nil
// Listener and no error when addr is empty, so callers can pass the
// configured value through unconditionally.
func Listen(addr string, log *slog.Logger) (*Listener, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		srv: &http.Server{
			Handler:           newPprofMux(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:   ln,
		done: make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		if log != nil {
			log.Info("pprof listening", "addr", ln.Addr().String())
		}
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && log != nil {
			log.Error("pprof server error", "err", err)
		}
	}()
	return l, nil
}

func (l *Listener) Addr() net.Addr {
	if l == nil {
		return nil
	}
	return l.ln.Addr()
}

// Close shuts the server down and waits for it. Safe on a nil Listener.
func (l *Listener) Close() error {
	if l == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := l.srv.Shutdown(ctx)
	<-l.done
	return err
}

func newPprofMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", httppprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", httppprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", httppprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", httppprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", httppprof.Trace)
	return mux
}
