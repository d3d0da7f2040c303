// Package hooks is the host-facing callback registry: a fixed set of named
// hooks with at most one handler each.
package hooks

import (
	"fmt"
	"sync"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"go.uber.org/zap"
)

// Hook names a lifecycle point the host can subscribe to.
type Hook string

const (
	AdStart       Hook = "onAdStart"
	AdComplete    Hook = "onAdComplete"
	AdError       Hook = "onAdError"
	AdClose       Hook = "onAdClose"
	GameplayStart Hook = "onGameplayStart"
	GameplayStop  Hook = "onGameplayStop"
)

// All lists every hook.
var All = []Hook{AdStart, AdComplete, AdError, AdClose, GameplayStart, GameplayStop}

// Valid reports whether h is one of the known hooks.
func (h Hook) Valid() bool {
	for _, k := range All {
		if k == h {
			return true
		}
	}
	return false
}

// Event is passed to handlers and observers.
type Event struct {
	Hook      Hook            `json:"hook"`
	Slot      models.SlotType `json:"slot,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	AdID      string          `json:"adId,omitempty"`
	Err       error           `json:"-"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	At        time.Time       `json:"at"`
}

// Handler receives hook events.
type Handler func(Event)

// Registry maps each hook to at most one handler. The last Subscribe wins.
// Observers see every fired event without displacing host handlers.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[Hook]Handler
	observers []Handler
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[Hook]Handler),
		logger:   logger,
		now:      time.Now,
	}
}

// Subscribe sets the handler for h, replacing any previous one.
func (r *Registry) Subscribe(h Hook, fn Handler) error {
	if !h.Valid() {
		return fmt.Errorf("unknown hook %q", h)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if fn == nil {
		delete(r.handlers, h)
		return nil
	}
	r.handlers[h] = fn
	return nil
}

// Unsubscribe clears the handler for h.
func (r *Registry) Unsubscribe(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, h)
}

// Has reports whether h has a handler.
func (r *Registry) Has(h Hook) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[h]
	return ok
}

// Observe adds a tap that receives every fired event.
func (r *Registry) Observe(fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Fire calls the observers and then the handler for e.Hook. It must not be
// called while holding a lock the handler might need. Panics in host
// handlers are recovered and logged.
func (r *Registry) Fire(e Event) {
	if e.At.IsZero() {
		e.At = r.now()
	}

	r.mu.RLock()
	fn := r.handlers[e.Hook]
	observers := make([]Handler, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, o := range observers {
		r.call(o, e)
	}
	if fn != nil {
		r.call(fn, e)
	}
}

func (r *Registry) call(fn Handler, e Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("hook handler panicked",
				zap.String("hook", string(e.Hook)),
				zap.Any("panic", p),
			)
		}
	}()
	fn(e)
}
