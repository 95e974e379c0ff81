package web

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Status is the daemon snapshot served on /status.
type Status struct {
	Started time.Time      `json:"started"`
	Version string         `json:"version,omitempty"`
	Sources []SourceStatus `json:"sources"`
}

// SourceStatus is one camera stream in the status snapshot.
type SourceStatus struct {
	Name     string `json:"name"`
	Prefix   string `json:"prefix"`
	Kind     string `json:"kind"`
	Interval string `json:"interval"`
	Enabled  bool   `json:"enabled"`
	Last     *Event `json:"last,omitempty"`
}

// StatusFunc returns the daemon's current status snapshot.
type StatusFunc func() Status

// PreviewFunc resolves a camera prefix to its preview image path. It must
// return false for prefixes that are not configured, which also keeps
// request paths from reaching into the filesystem.
type PreviewFunc func(prefix string) (string, bool)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	broadcaster *Broadcaster
	status      StatusFunc
	preview     PreviewFunc
	log         *zap.Logger
}

func NewHandlers(b *Broadcaster, status StatusFunc, preview PreviewFunc, log *zap.Logger) *Handlers {
	return &Handlers{broadcaster: b, status: status, preview: preview, log: log}
}

// HandleStatus serves the daemon snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.status()); err != nil {
		h.log.Warn("status encode failed", zap.Error(err))
	}
}

// HandlePreview serves the most recent image for one camera.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	prefix := r.PathValue("prefix")
	path, ok := h.preview(prefix)
	if !ok {
		http.Error(w, "unknown camera", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

// HandleEvents streams capture events over SSE.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.broadcaster.Subscribe()
	defer unsub()

	// Initial comment so clients see the stream is up before the first capture.
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
