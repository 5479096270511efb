// Package realtime defines the events a search session publishes to
// presentation code and an in-process hub that fans them out to any number of
// listeners (the terminal renderer, websocket connections, tests).
//
// Delivery is best effort: a listener whose buffer is full misses progress
// events instead of stalling the session loop. Events that end a query
// (see Terminal) wait up to the hub's terminal wait for room before they are
// dropped.
package realtime

import (
	"sync"
	"time"

	"github.com/rubiojr/mithril/pkg/core"
)

// Event types.
const (
	TypeLoadingStarted = "loading-started"
	TypeResultsReady   = "results-ready"
	TypeSnippetReady   = "snippet-ready"
	TypeSnippetsDone   = "snippets-done"
	TypeMathResult     = "math-result"
	TypeError          = "error"
)

// DefaultTerminalWait bounds how long Broadcast blocks on a full listener
// for a terminal event.
const DefaultTerminalWait = time.Second

// Terminal reports whether an event of type typ ends a query. Presenters
// wait for these, so they are not dropped lightly.
func Terminal(typ string) bool {
	switch typ {
	case TypeResultsReady, TypeSnippetsDone, TypeMathResult, TypeError:
		return true
	}
	return false
}

// Event is the envelope for everything a session tells presentation code.
// Only the fields relevant to Type are set.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`

	// results-ready
	Results   *core.ResultSet    `json:"results,omitempty"`
	Groups    []core.ResultGroup `json:"groups,omitempty"`
	FromCache bool               `json:"from_cache,omitempty"`
	// Elapsed is ResultSet.ElapsedMs formatted with three decimals, e.g. "0.042s".
	Elapsed string `json:"elapsed,omitempty"`

	// snippet-ready
	DocID   string `json:"doc_id,omitempty"`
	Snippet string `json:"snippet,omitempty"`

	// snippets-done
	Count int `json:"count,omitempty"`

	// math-result
	Value string `json:"value,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// Hub is a concurrency-safe fan-out dispatcher. Each listener has its own
// buffered channel.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
	wait      time.Duration
}

// NewHub constructs a hub. bufSize <= 0 selects 64.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
		wait:      DefaultTerminalWait,
	}
}

// SetTerminalWait changes how long terminal events wait for a full
// listener. Zero makes every event best effort.
func (h *Hub) SetTerminalWait(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wait = d
}

// Register adds a listener. Callers must Unregister the returned id.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes a listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers ev to every listener and returns how many listeners
// missed it. Progress events go only to listeners with room in their buffer.
// Terminal events wait for room, sharing one deadline across all listeners.
func (h *Hub) Broadcast(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	terminal := Terminal(ev.Type) && h.wait > 0
	var deadline *time.Timer
	expired := false
	dropped := 0
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
			continue
		default:
		}
		if !terminal || expired {
			dropped++
			continue
		}
		if deadline == nil {
			deadline = time.NewTimer(h.wait)
			defer deadline.Stop()
		}
		select {
		case ch <- ev:
		case <-deadline.C:
			expired = true
			dropped++
		}
	}
	return dropped
}

// Close unregisters every listener.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.listeners {
		delete(h.listeners, id)
		close(ch)
	}
}

// Size returns the number of registered listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
