package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/borevitzlab/go-eyepi/internal/scheduler"
)

// Event is the wire form of a completed capture cycle.
type Event struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	Prefix string    `json:"prefix"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Files  []string  `json:"files,omitempty"`
	Error  string    `json:"error,omitempty"`
	OK     bool      `json:"ok"`
}

// NewEvent converts a scheduler event for clients.
func NewEvent(ev scheduler.Event) Event {
	out := Event{
		ID:     ev.ID.String(),
		Source: ev.Source,
		Prefix: ev.Prefix,
		Start:  ev.Start,
		End:    ev.End,
		Files:  ev.Files,
		OK:     ev.OK(),
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}

// Broadcaster distributes capture events to multiple SSE clients.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[chan string]struct{})}
}

// Subscribe returns a channel of JSON payloads and a cleanup function.
// The caller must call the cleanup when done (e.g. on client disconnect).
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast fans one event out to all subscribed clients. Sends are
// non-blocking; a client that stopped draining misses events rather than
// stalling the capture pipeline.
func (b *Broadcaster) Broadcast(ev scheduler.Event) {
	data, err := json.Marshal(NewEvent(ev))
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}
