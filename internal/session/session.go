package session

import (
	"context"
	"sync"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
)

// Options are the caller's callbacks for one show request. Each fires at most
// once per session.
type Options struct {
	OnComplete func()
	OnError    func(error)
	OnReward   func()
	OnClose    func()
}

// Session is one request-to-resolution cycle for a slot. It is safe for
// concurrent use; callers typically just wait on Done.
type Session struct {
	ID          string
	Slot        models.SlotType
	ContainerID string
	Size        models.Size
	StartedAt   time.Time

	opts Options
	done chan struct{}

	mu        sync.Mutex
	state     State
	creative  *models.Creative
	fallback  bool
	presented bool
	err       error
}

func newSession(id string, slot models.SlotType, opts Options, now time.Time) *Session {
	return &Session{
		ID:        id,
		Slot:      slot,
		StartedAt: now,
		opts:      opts,
		done:      make(chan struct{}),
		state:     StateIdle,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Creative returns the presented creative, or nil before presentation.
func (s *Session) Creative() *models.Creative {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creative == nil {
		return nil
	}
	c := *s.creative
	return &c
}

// Fallback reports whether the presented creative is the house fallback.
func (s *Session) Fallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback
}

// Err returns the terminal error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed after the session reaches a terminal state and all of its
// callbacks have run.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.done:
		return s.State(), s.Err()
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// advance moves to a non-terminal state. It fails once the session is over.
func (s *Session) advance(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = to
	return true
}

// PresentRequest is handed to the Presenter.
type PresentRequest struct {
	SessionID   string
	Slot        models.SlotType
	Creative    models.Creative
	Fallback    bool
	ContainerID string
	Size        models.Size
	Handle      *Handle
}

// Presenter renders creatives. It must eventually resolve the handle, or
// leave that to the host for banners.
type Presenter interface {
	Present(ctx context.Context, req PresentRequest) error
}

// ContainerLocator tells whether a banner container exists.
type ContainerLocator interface {
	HasContainer(id string) bool
}

// Handle is the presenter's way back into a presented session.
type Handle struct {
	s *Session
	m *Manager
}

// SessionID returns the id of the session the handle resolves.
func (h *Handle) SessionID() string { return h.s.ID }

// Resolve ends the session with action. Only the first call has an effect; it
// reports whether this call resolved the session.
func (h *Handle) Resolve(action Action) bool {
	return h.m.resolve(h.s, action)
}

// Done is closed when the session has ended, however it ended.
func (h *Handle) Done() <-chan struct{} { return h.s.done }

// Click records a click. The session stays open.
func (h *Handle) Click() bool {
	return h.m.click(h.s)
}
