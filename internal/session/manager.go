// Package session runs the ad lifecycle: one session per slot at a time, a
// per-slot frequency gate, fallback creatives and exactly-once completion.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/hooks"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/metrics"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMinInterval  = 30 * time.Second
	DefaultFetchTimeout = 30 * time.Second
)

// AdFetcher loads creatives for a slot. transport.Client implements it.
type AdFetcher interface {
	FetchAds(ctx context.Context, req models.AdRequest) (*models.AdResponse, error)
}

// EventSink receives impression, click and complete events.
type EventSink interface {
	Enqueue(e models.TelemetryEvent)
}

// Config controls gating and timeouts.
type Config struct {
	MinInterval  time.Duration
	Gated        []models.SlotType
	FetchTimeout time.Duration
	// Fallback builds the creative for an empty interstitial or banner
	// response. Defaults to DefaultFallback.
	Fallback func(models.SlotType) models.Creative
}

// DefaultConfig gates interstitial and rewarded ads but not banners.
func DefaultConfig() Config {
	return Config{
		MinInterval:  DefaultMinInterval,
		Gated:        []models.SlotType{models.SlotInterstitial, models.SlotRewarded},
		FetchTimeout: DefaultFetchTimeout,
	}
}

// Deps are the collaborators of a Manager. Fetcher and Presenter are required
// for sessions to get past Fetching and Presenting.
type Deps struct {
	Fetcher    AdFetcher
	Events     EventSink
	Presenter  Presenter
	Containers ContainerLocator
	Hooks      *hooks.Registry
	Identity   func() (gameID, playerID string)
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Now        func() time.Time
	Rand       *rand.Rand
}

// Manager owns the per-slot session locks and the frequency gate.
type Manager struct {
	cfg        Config
	gated      map[models.SlotType]bool
	fetcher    AdFetcher
	events     EventSink
	presenter  Presenter
	containers ContainerLocator
	hooks      *hooks.Registry
	identity   func() (string, string)
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu     sync.Mutex
	active map[models.SlotType]*Session
	lastAd map[models.SlotType]time.Time
}

// NewManager creates a session manager.
func NewManager(cfg Config, deps Deps) *Manager {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	if cfg.Fallback == nil {
		cfg.Fallback = DefaultFallback
	}

	m := &Manager{
		cfg:        cfg,
		gated:      make(map[models.SlotType]bool, len(cfg.Gated)),
		fetcher:    deps.Fetcher,
		events:     deps.Events,
		presenter:  deps.Presenter,
		containers: deps.Containers,
		hooks:      deps.Hooks,
		identity:   deps.Identity,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        deps.Now,
		rnd:        deps.Rand,
		active:     make(map[models.SlotType]*Session),
		lastAd:     make(map[models.SlotType]time.Time),
	}
	for _, s := range cfg.Gated {
		m.gated[s] = true
	}
	if m.containers == nil {
		if cl, ok := deps.Presenter.(ContainerLocator); ok {
			m.containers = cl
		}
	}
	if m.hooks == nil {
		m.hooks = hooks.NewRegistry(deps.Logger)
	}
	if m.identity == nil {
		m.identity = func() (string, string) { return "", "" }
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.rnd == nil {
		m.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m
}

// Gated reports whether slot is subject to the minimum interval.
func (m *Manager) Gated(slot models.SlotType) bool {
	return m.gated[slot]
}

// Active returns the session currently holding slot, or nil.
func (m *Manager) Active(slot models.SlotType) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[slot]
}

// Show starts an interstitial or rewarded session. Rejections are returned
// synchronously and never fire a hook.
func (m *Manager) Show(slot models.SlotType, opts Options) (*Session, error) {
	if slot != models.SlotInterstitial && slot != models.SlotRewarded {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return m.start(slot, opts, "", models.Size{})
}

// RequestBanner starts a banner session in containerID. The container must
// already exist.
func (m *Manager) RequestBanner(containerID string, size models.Size, opts Options) (*Session, error) {
	if containerID == "" || m.containers == nil || !m.containers.HasContainer(containerID) {
		m.reject(models.SlotBanner, ErrContainerMissing)
		return nil, fmt.Errorf("%w: %q", ErrContainerMissing, containerID)
	}
	return m.start(models.SlotBanner, opts, containerID, size)
}

// RemoveBanner ends the active banner session as completed.
func (m *Manager) RemoveBanner() error {
	s := m.Active(models.SlotBanner)
	if s == nil {
		return ErrNoActiveBanner
	}
	if !m.resolve(s, ActionRemoved) {
		return ErrNoActiveBanner
	}
	return nil
}

func (m *Manager) start(slot models.SlotType, opts Options, containerID string, size models.Size) (*Session, error) {
	m.mu.Lock()
	if _, busy := m.active[slot]; busy {
		m.mu.Unlock()
		m.reject(slot, ErrAlreadyActive)
		return nil, ErrAlreadyActive
	}

	now := m.now()
	if m.gated[slot] {
		if last, ok := m.lastAd[slot]; ok && now.Sub(last) < m.cfg.MinInterval {
			m.mu.Unlock()
			m.reject(slot, ErrRateLimited)
			return nil, ErrRateLimited
		}
	}

	s := newSession(uuid.NewString(), slot, opts, now)
	s.ContainerID = containerID
	s.Size = size
	m.active[slot] = s
	m.lastAd[slot] = now
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordAdRequest(string(slot))
	}
	m.logger.Info("ad session started",
		zap.String("session_id", s.ID),
		zap.String("slot", string(slot)),
		zap.String("container", containerID),
	)

	m.hooks.Fire(hooks.Event{Hook: hooks.AdStart, Slot: slot, SessionID: s.ID})
	s.advance(StateFetching)
	go m.run(s)

	return s, nil
}

func (m *Manager) reject(slot models.SlotType, err error) {
	m.logger.Debug("ad request rejected", zap.String("slot", string(slot)), zap.Error(err))
	if m.metrics != nil {
		m.metrics.RecordRejection(string(slot), rejectionReason(err))
	}
}

type fetchResult struct {
	resp *models.AdResponse
	err  error
}

// fetch calls the fetcher and enforces FetchTimeout even if the fetcher
// ignores its context.
func (m *Manager) fetch(s *Session) (*models.AdResponse, error) {
	if m.fetcher == nil {
		return nil, errors.New("no ad fetcher configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.FetchTimeout)
	defer cancel()

	gameID, playerID := m.identity()
	req := models.AdRequest{
		GameID:   gameID,
		Type:     s.Slot,
		PlayerID: playerID,
		Size:     s.Size.String(),
	}

	ch := make(chan fetchResult, 1)
	go func() {
		resp, err := m.fetcher.FetchAds(ctx, req)
		ch <- fetchResult{resp: resp, err: err}
	}()

	timeout := fmt.Errorf("%w after %s", ErrFetchTimeout, m.cfg.FetchTimeout)
	select {
	case res := <-ch:
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeout
		}
		if res.err == nil && res.resp == nil {
			return nil, errors.New("empty ad response")
		}
		return res.resp, res.err
	case <-ctx.Done():
		return nil, timeout
	}
}

func (m *Manager) run(s *Session) {
	start := time.Now()
	resp, err := m.fetch(s)
	if err != nil {
		m.recordFetch(s.Slot, err, start)
		m.logger.Warn("ad fetch failed",
			zap.String("session_id", s.ID),
			zap.String("slot", string(s.Slot)),
			zap.Error(err),
		)
		m.finish(s, StateError, err)
		return
	}

	candidates := resp.Candidates()
	if len(candidates) == 0 {
		m.recordFetch(s.Slot, nil, start)
		if !s.advance(StateEmpty) {
			return
		}
		if s.Slot == models.SlotRewarded {
			// no fallback reward is ever granted
			m.finish(s, StateError, ErrNoAdAvailable)
			return
		}
		m.present(s, m.cfg.Fallback(s.Slot), true)
		return
	}

	if m.metrics != nil {
		m.metrics.RecordFetch(string(s.Slot), "ok", time.Since(start))
	}
	if !s.advance(StateReady) {
		return
	}
	m.present(s, m.pick(candidates), false)
}

func (m *Manager) recordFetch(slot models.SlotType, err error, start time.Time) {
	if m.metrics == nil {
		return
	}
	result := "empty"
	switch {
	case errors.Is(err, ErrFetchTimeout):
		result = "timeout"
	case err != nil:
		result = "error"
	}
	m.metrics.RecordFetch(string(slot), result, time.Since(start))
}

func (m *Manager) pick(candidates []models.Creative) models.Creative {
	if len(candidates) == 1 {
		return candidates[0]
	}
	m.rndMu.Lock()
	i := m.rnd.Intn(len(candidates))
	m.rndMu.Unlock()
	return candidates[i]
}

func (m *Manager) present(s *Session, c models.Creative, fallback bool) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StatePresenting
	s.creative = &c
	s.fallback = fallback
	s.presented = true
	s.mu.Unlock()

	if !fallback {
		m.track(s, models.EventImpression, c.ID)
	}
	if m.metrics != nil {
		m.metrics.RecordImpression(string(s.Slot), fallback)
	}
	m.logger.Debug("presenting ad",
		zap.String("session_id", s.ID),
		zap.String("slot", string(s.Slot)),
		zap.String("ad_id", c.ID),
		zap.Bool("fallback", fallback),
	)

	if m.presenter == nil {
		m.failPresentation(s, ErrNoPresenter)
		return
	}
	err := m.presenter.Present(context.Background(), PresentRequest{
		SessionID:   s.ID,
		Slot:        s.Slot,
		Creative:    c,
		Fallback:    fallback,
		ContainerID: s.ContainerID,
		Size:        s.Size,
		Handle:      &Handle{s: s, m: m},
	})
	if err != nil {
		m.failPresentation(s, err)
	}
}

// failPresentation ends a session whose UI never showed, so onAdClose is not
// owed.
func (m *Manager) failPresentation(s *Session, err error) {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.presented = false
	}
	s.mu.Unlock()

	m.logger.Warn("ad presentation failed",
		zap.String("session_id", s.ID),
		zap.String("slot", string(s.Slot)),
		zap.Error(err),
	)
	m.finish(s, StateFailed, err)
}

func (m *Manager) resolve(s *Session, action Action) bool {
	if s.Slot == models.SlotRewarded && action != ActionWatched {
		return m.finish(s, StateDismissed, ErrNotCompleted)
	}
	return m.finish(s, StateCompleted, nil)
}

func (m *Manager) click(s *Session) bool {
	s.mu.Lock()
	if s.state != StatePresenting {
		s.mu.Unlock()
		return false
	}
	adID := ""
	if s.creative != nil {
		adID = s.creative.ID
	}
	s.mu.Unlock()

	if adID != "" {
		m.track(s, models.EventClick, adID)
	}
	if m.metrics != nil {
		m.metrics.RecordClick(string(s.Slot))
	}
	return true
}

// finish moves s to a terminal state exactly once, releases the slot and runs
// the callbacks. It reports whether this call did the transition.
func (m *Manager) finish(s *Session, to State, err error) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.err = err
	presented := s.presented
	var adID string
	if s.creative != nil {
		adID = s.creative.ID
	}
	s.mu.Unlock()

	m.mu.Lock()
	if m.active[s.Slot] == s {
		delete(m.active, s.Slot)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordOutcome(string(s.Slot), string(to))
	}
	m.logger.Info("ad session finished",
		zap.String("session_id", s.ID),
		zap.String("slot", string(s.Slot)),
		zap.String("state", string(to)),
		zap.Error(err),
	)

	ev := hooks.Event{Slot: s.Slot, SessionID: s.ID, AdID: adID, Err: err}
	switch to {
	case StateCompleted:
		if adID != "" {
			m.track(s, models.EventComplete, adID)
		}
		ev.Hook = hooks.AdComplete
		m.hooks.Fire(ev)
		if s.Slot == models.SlotRewarded {
			m.callback(s, "OnReward", s.opts.OnReward)
		}
		m.callback(s, "OnComplete", s.opts.OnComplete)
	case StateDismissed:
		m.errorCallback(s, err)
	case StateError, StateFailed:
		ev.Hook = hooks.AdError
		m.hooks.Fire(ev)
		m.errorCallback(s, err)
	}

	if presented {
		ev.Hook = hooks.AdClose
		ev.Err = nil
		m.hooks.Fire(ev)
		m.callback(s, "OnClose", s.opts.OnClose)
	}

	close(s.done)
	return true
}

func (m *Manager) track(s *Session, typ models.EventType, adID string) {
	if m.events == nil {
		return
	}
	gameID, playerID := m.identity()
	m.events.Enqueue(models.TelemetryEvent{
		Type:      typ,
		GameID:    gameID,
		PlayerID:  playerID,
		AdID:      adID,
		Slot:      s.Slot,
		Timestamp: m.now().UnixMilli(),
		Metadata:  map[string]any{"sessionId": s.ID},
	})
}

func (m *Manager) callback(s *Session, name string, fn func()) {
	if fn == nil {
		return
	}
	defer m.recoverCallback(s, name)
	fn()
}

func (m *Manager) errorCallback(s *Session, err error) {
	if s.opts.OnError == nil {
		return
	}
	defer m.recoverCallback(s, "OnError")
	s.opts.OnError(err)
}

func (m *Manager) recoverCallback(s *Session, name string) {
	if p := recover(); p != nil {
		m.logger.Error("ad callback panicked",
			zap.String("callback", name),
			zap.String("session_id", s.ID),
			zap.Any("panic", p),
		)
	}
}
