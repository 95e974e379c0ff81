// Package web is the daemon's optional read-only status server: a JSON
// snapshot, an SSE event stream and the latest image per camera. Nothing
// here can start or stop captures.
package web

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
	log      *zap.Logger
}

func NewServer(addr string, b *Broadcaster, status StatusFunc, preview PreviewFunc, log *zap.Logger) *Server {
	return &Server{
		addr:     addr,
		handlers: NewHandlers(b, status, preview, log),
		log:      log,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handlers.HandleStatus)
	mux.HandleFunc("GET /events", s.handlers.HandleEvents)
	mux.HandleFunc("GET /cameras/{prefix}/last.jpg", s.handlers.HandlePreview)

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
