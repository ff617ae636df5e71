// Package server exposes experiment viewer sessions over HTTP.
//
// Each session wraps a session.Session: clients upload a log, change the
// selection and read back the debounced chart as JSON or a rendered image.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/vanderheijden86/expview/pkg/config"
)

const shutdownTimeout = 5 * time.Second

// Server is an HTTP server over a Handler.
type Server struct {
	handler *Handler
	http    *http.Server
}

// New creates a server listening on cfg.Server.Addr.
func New(cfg config.Config) *Server {
	h := NewHandler(cfg)
	return &Server{
		handler: h,
		http: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           logRequests(h.Routes()),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the server's request handler.
func (s *Server) Handler() *Handler { return s.handler }

// Run serves until ctx is cancelled, then shuts down and closes every
// session.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server available", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.handler.sessionStore.CloseAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down", "sessions", s.handler.sessionStore.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	s.handler.sessionStore.CloseAll()
	<-errCh
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("Request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// queryInt returns a positive integer query parameter, or 0.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
