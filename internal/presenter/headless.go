// Package presenter holds presentation collaborators for environments with no
// real UI, such as servers, bots and tests.
package presenter

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/session"
	"go.uber.org/zap"
)

var (
	ErrUnknownPresentation = errors.New("presentation not found")
	ErrAlreadyResolved     = errors.New("presentation already resolved")
)

// Presentation is an ad waiting for a user action.
type Presentation struct {
	SessionID   string          `json:"sessionId"`
	Slot        models.SlotType `json:"slot"`
	Creative    models.Creative `json:"creative"`
	Fallback    bool            `json:"fallback"`
	ContainerID string          `json:"containerId,omitempty"`
	Size        string          `json:"size,omitempty"`
	ShownAt     time.Time       `json:"shownAt"`
	Clicks      int             `json:"clicks"`

	handle *session.Handle
}

// Headless keeps presentations in memory until something resolves them. It
// also tracks the banner containers the host has declared.
type Headless struct {
	logger *zap.Logger

	mu          sync.Mutex
	pending     map[string]*Presentation
	containers  map[string]bool
	autoResolve session.Action
}

func NewHeadless(logger *zap.Logger) *Headless {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Headless{
		logger:     logger,
		pending:    make(map[string]*Presentation),
		containers: make(map[string]bool),
	}
}

// SetAutoResolve makes every interstitial and rewarded presentation resolve
// immediately with action. An empty action turns it off. Banners are never
// auto-resolved.
func (h *Headless) SetAutoResolve(action session.Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.autoResolve = action
}

// Present implements session.Presenter.
func (h *Headless) Present(ctx context.Context, req session.PresentRequest) error {
	p := &Presentation{
		SessionID:   req.SessionID,
		Slot:        req.Slot,
		Creative:    req.Creative,
		Fallback:    req.Fallback,
		ContainerID: req.ContainerID,
		Size:        req.Size.String(),
		ShownAt:     time.Now(),
		handle:      req.Handle,
	}

	h.mu.Lock()
	if req.Slot == models.SlotBanner && !h.containers[req.ContainerID] {
		h.mu.Unlock()
		return session.ErrContainerMissing
	}
	auto := h.autoResolve
	if auto == "" || req.Slot == models.SlotBanner {
		h.pending[req.SessionID] = p
	}
	h.mu.Unlock()

	h.logger.Info("ad presented",
		zap.String("session_id", req.SessionID),
		zap.String("slot", string(req.Slot)),
		zap.String("title", req.Creative.Title),
		zap.String("cta", req.Creative.CTA()),
		zap.Bool("fallback", req.Fallback),
	)

	if auto != "" && req.Slot != models.SlotBanner {
		req.Handle.Resolve(auto)
		return nil
	}
	go func() {
		<-req.Handle.Done()
		h.Forget(req.SessionID)
	}()
	return nil
}

// Pending lists unresolved presentations, oldest first.
func (h *Headless) Pending() []Presentation {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Presentation, 0, len(h.pending))
	for _, p := range h.pending {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShownAt.Before(out[j].ShownAt) })
	return out
}

// Resolve delivers the user's action for a presentation.
func (h *Headless) Resolve(sessionID string, action session.Action) error {
	h.mu.Lock()
	p, ok := h.pending[sessionID]
	if ok {
		delete(h.pending, sessionID)
	}
	h.mu.Unlock()

	if !ok {
		return ErrUnknownPresentation
	}
	if !p.handle.Resolve(action) {
		return ErrAlreadyResolved
	}
	return nil
}

// Click records a click on a presentation.
func (h *Headless) Click(sessionID string) error {
	h.mu.Lock()
	p, ok := h.pending[sessionID]
	if ok {
		p.Clicks++
	}
	h.mu.Unlock()

	if !ok {
		return ErrUnknownPresentation
	}
	if !p.handle.Click() {
		return ErrAlreadyResolved
	}
	return nil
}

// Forget drops a presentation. Present calls it once the session ends, which
// covers sessions resolved elsewhere such as by RemoveBanner.
func (h *Headless) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, sessionID)
}

// AddContainer declares a banner container.
func (h *Headless) AddContainer(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.containers[id] = true
}

// RemoveContainer removes a banner container. A banner still showing in it
// stays pending until the host removes the banner.
func (h *Headless) RemoveContainer(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.containers, id)
}

// Containers lists declared containers.
func (h *Headless) Containers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.containers))
	for id := range h.containers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HasContainer implements session.ContainerLocator.
func (h *Headless) HasContainer(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.containers[id]
}
