package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/hooks"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchFunc func(ctx context.Context, req models.AdRequest) (*models.AdResponse, error)

func (f fetchFunc) FetchAds(ctx context.Context, req models.AdRequest) (*models.AdResponse, error) {
	return f(ctx, req)
}

func adsResponse(ids ...string) fetchFunc {
	return func(ctx context.Context, req models.AdRequest) (*models.AdResponse, error) {
		resp := &models.AdResponse{Success: true}
		for _, id := range ids {
			resp.Ads = append(resp.Ads, models.Creative{ID: id, ImageURL: "x", Title: "t"})
		}
		return resp, nil
	}
}

type fakePresenter struct {
	reqs       chan PresentRequest
	err        error
	containers map[string]bool
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{reqs: make(chan PresentRequest, 16), containers: map[string]bool{}}
}

func (p *fakePresenter) Present(ctx context.Context, req PresentRequest) error {
	if p.err != nil {
		return p.err
	}
	p.reqs <- req
	return nil
}

func (p *fakePresenter) HasContainer(id string) bool { return p.containers[id] }

func (p *fakePresenter) next(t *testing.T) PresentRequest {
	t.Helper()
	select {
	case req := <-p.reqs:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no presentation")
		return PresentRequest{}
	}
}

type memSink struct {
	mu     sync.Mutex
	events []models.TelemetryEvent
}

func (s *memSink) Enqueue(e models.TelemetryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *memSink) ofType(typ models.EventType) []models.TelemetryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TelemetryEvent
	for _, e := range s.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type hookCounter struct {
	mu     sync.Mutex
	counts map[hooks.Hook]int
	errs   []error
}

func (h *hookCounter) observe(e hooks.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[e.Hook]++
	if e.Err != nil {
		h.errs = append(h.errs, e.Err)
	}
}

func (h *hookCounter) count(k hooks.Hook) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[k]
}

type harness struct {
	m         *Manager
	presenter *fakePresenter
	sink      *memSink
	clock     *fakeClock
	hooks     *hookCounter
}

func newHarness(t *testing.T, fetcher AdFetcher, cfg Config) *harness {
	t.Helper()
	h := &harness{
		presenter: newFakePresenter(),
		sink:      &memSink{},
		clock:     &fakeClock{t: time.Unix(1700000000, 0)},
		hooks:     &hookCounter{counts: map[hooks.Hook]int{}},
	}
	reg := hooks.NewRegistry(nil)
	reg.Observe(h.hooks.observe)

	h.m = NewManager(cfg, Deps{
		Fetcher:   fetcher,
		Events:    h.sink,
		Presenter: h.presenter,
		Hooks:     reg,
		Identity:  func() (string, string) { return "g1", "player_1" },
		Now:       h.clock.Now,
		Rand:      rand.New(rand.NewSource(1)),
	})
	return h
}

type callbacks struct {
	mu                                  sync.Mutex
	complete, reward, closed, errCalled int
	err                                 error
}

func (c *callbacks) options() Options {
	return Options{
		OnComplete: func() { c.mu.Lock(); c.complete++; c.mu.Unlock() },
		OnReward:   func() { c.mu.Lock(); c.reward++; c.mu.Unlock() },
		OnClose:    func() { c.mu.Lock(); c.closed++; c.mu.Unlock() },
		OnError: func(err error) {
			c.mu.Lock()
			c.errCalled++
			c.err = err
			c.mu.Unlock()
		},
	}
}

func waitDone(t *testing.T, s *Session) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := s.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return state
}

func TestShowInterstitial_CompletesWithImpression(t *testing.T) {
	h := newHarness(t, adsResponse("a1"), DefaultConfig())
	cb := &callbacks{}

	s, err := h.m.Show(models.SlotInterstitial, cb.options())
	require.NoError(t, err)
	assert.Equal(t, 1, h.hooks.count(hooks.AdStart))

	req := h.presenter.next(t)
	assert.Equal(t, "a1", req.Creative.ID)
	assert.False(t, req.Fallback)
	assert.Equal(t, StatePresenting, s.State())

	assert.True(t, req.Handle.Resolve(ActionContinue))
	assert.Equal(t, StateCompleted, waitDone(t, s))

	assert.Equal(t, 1, h.hooks.count(hooks.AdComplete))
	assert.Equal(t, 1, h.hooks.count(hooks.AdClose))
	assert.Equal(t, 1, cb.complete)
	assert.Equal(t, 1, cb.closed)
	assert.Zero(t, cb.reward)

	impressions := h.sink.ofType(models.EventImpression)
	require.Len(t, impressions, 1)
	assert.Equal(t, "a1", impressions[0].AdID)
	assert.Equal(t, "g1", impressions[0].GameID)
	assert.Nil(t, h.m.Active(models.SlotInterstitial))
}

func TestShow_AlreadyActive(t *testing.T) {
	release := make(chan struct{})
	fetcher := fetchFunc(func(ctx context.Context, req models.AdRequest) (*models.AdResponse, error) {
		<-release
		return &models.AdResponse{Success: true, Ads: []models.Creative{{ID: "r1"}}}, nil
	})
	h := newHarness(t, fetcher, DefaultConfig())
	defer close(release)

	first, err := h.m.Show(models.SlotRewarded, Options{})
	require.NoError(t, err)
	assert.Equal(t, StateFetching, first.State())

	second, err := h.m.Show(models.SlotRewarded, Options{})
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.Nil(t, second)
	assert.Equal(t, 1, h.hooks.count(hooks.AdStart))

	// other slots are independent
	_, err = h.m.Show(models.SlotInterstitial, Options{})
	assert.NoError(t, err)
}

func TestShow_FrequencyGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = 30 * time.Second
	h := newHarness(t, adsResponse("a1"), cfg)

	s, err := h.m.Show(models.SlotInterstitial, Options{})
	require.NoError(t, err)
	h.presenter.next(t).Handle.Resolve(ActionDismiss)
	waitDone(t, s)

	h.clock.Advance(10 * time.Second)
	_, err = h.m.Show(models.SlotInterstitial, Options{})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, h.hooks.count(hooks.AdStart))
	assert.Zero(t, h.hooks.count(hooks.AdError))

	h.clock.Advance(20 * time.Second)
	_, err = h.m.Show(models.SlotInterstitial, Options{})
	assert.NoError(t, err)
}

func TestShow_GatePerSlotConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gated = []models.SlotType{models.SlotInterstitial, models.SlotRewarded, models.SlotBanner}
	h := newHarness(t, adsResponse("b1"), cfg)
	h.presenter.containers["c1"] = true

	assert.True(t, h.m.Gated(models.SlotBanner))
	s, err := h.m.RequestBanner("c1", models.Size{Width: 300, Height: 250}, Options{})
	require.NoError(t, err)
	h.presenter.next(t)
	require.NoError(t, h.m.RemoveBanner())
	waitDone(t, s)

	_, err = h.m.RequestBanner("c1", models.Size{Width: 300, Height: 250}, Options{})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestShow_InvalidSlot(t *testing.T) {
	h := newHarness(t, adsResponse("a1"), DefaultConfig())
	_, err := h.m.Show(models.SlotBanner, Options{})
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestRewarded_WatchedGrantsReward(t *testing.T) {
	h := newHarness(t, adsResponse("r1"), DefaultConfig())
	cb := &callbacks{}

	s, err := h.m.Show(models.SlotRewarded, cb.options())
	require.NoError(t, err)
	h.presenter.next(t).Handle.Resolve(ActionWatched)

	assert.Equal(t, StateCompleted, waitDone(t, s))
	assert.Equal(t, 1, cb.reward)
	assert.Equal(t, 1, cb.complete)
	assert.Zero(t, cb.errCalled)
	assert.Equal(t, 1, h.hooks.count(hooks.AdComplete))

	completes := h.sink.ofType(models.EventComplete)
	require.Len(t, completes, 1)
	assert.Equal(t, "r1", completes[0].AdID)
}

func TestRewarded_DismissIsNotCompletion(t *testing.T) {
	h := newHarness(t, adsResponse("r1"), DefaultConfig())
	cb := &callbacks{}

	s, err := h.m.Show(models.SlotRewarded, cb.options())
	require.NoError(t, err)
	h.presenter.next(t).Handle.Resolve(ActionDismiss)

	assert.Equal(t, StateDismissed, waitDone(t, s))
	assert.ErrorIs(t, cb.err, ErrNotCompleted)
	assert.Zero(t, cb.reward)
	assert.Zero(t, cb.complete)
	assert.Equal(t, 1, cb.closed)
	assert.Zero(t, h.hooks.count(hooks.AdComplete))
	assert.Empty(t, h.sink.ofType(models.EventComplete))
}

func TestResolve_ExactlyOnce(t *testing.T) {
	actions := []Action{ActionWatched, ActionContinue, ActionDismiss}
	slots := []models.SlotType{models.SlotInterstitial, models.SlotRewarded}

	for _, slot := range slots {
		for _, action := range actions {
			t.Run(string(slot)+"/"+string(action), func(t *testing.T) {
				h := newHarness(t, adsResponse("a1"), DefaultConfig())
				cb := &callbacks{}

				s, err := h.m.Show(slot, cb.options())
				require.NoError(t, err)
				handle := h.presenter.next(t).Handle

				var wg sync.WaitGroup
				wins := make(chan bool, 3)
				for i := 0; i < 3; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						wins <- handle.Resolve(action)
					}()
				}
				wg.Wait()
				close(wins)
				waitDone(t, s)

				won := 0
				for w := range wins {
					if w {
						won++
					}
				}
				assert.Equal(t, 1, won)
				assert.Equal(t, 1, cb.complete+cb.errCalled)
				assert.Equal(t, 1, cb.closed)
			})
		}
	}
}

func TestEmptyResponse_InterstitialUsesFallback(t *testing.T) {
	h := newHarness(t, adsResponse(), DefaultConfig())
	cb := &callbacks{}

	s, err := h.m.Show(models.SlotInterstitial, cb.options())
	require.NoError(t, err)

	req := h.presenter.next(t)
	assert.True(t, req.Fallback)
	assert.Empty(t, req.Creative.ID)
	assert.True(t, s.Fallback())

	req.Handle.Resolve(ActionContinue)
	assert.Equal(t, StateCompleted, waitDone(t, s))
	assert.Equal(t, 1, cb.complete)
	assert.Empty(t, h.sink.ofType(models.EventImpression))
	assert.Empty(t, h.sink.ofType(models.EventComplete))
}

func TestEmptyResponse_RewardedFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = 0
	h := newHarness(t, adsResponse(), cfg)
	cb := &callbacks{}

	s, err := h.m.Show(models.SlotRewarded, cb.options())
	require.NoError(t, err)
	assert.Equal(t, StateError, waitDone(t, s))
	assert.ErrorIs(t, cb.err, ErrNoAdAvailable)
	assert.Zero(t, cb.reward)
	assert.Zero(t, cb.closed)
	assert.Equal(t, 1, h.hooks.count(hooks.AdError))

	// slot released
	_, err = h.m.Show(models.SlotRewarded, Options{})
	assert.NoError(t, err)
}

func TestFetchError_ReleasesSlot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = 0
	fetcher := fetchFunc(func(ctx context.Context, req models.AdRequest) (*models.AdResponse, error) {
		return nil, errors.New("connection refused")
	})
	h := newHarness(t, fetcher, cfg)
	cb := &callbacks{}

	s, err := h.m.Show(models.SlotInterstitial, cb.options())
	require.NoError(t, err)
	assert.Equal(t, StateError, waitDone(t, s))
	assert.EqualError(t, cb.err, "connection refused")
	assert.Equal(t, 1, h.hooks.count(hooks.AdError))
	assert.Zero(t, h.hooks.count(hooks.AdClose))

	_, err = h.m.Show(models.SlotInterstitial, Options{})
	assert.NoError(t, err)
}

func TestFetchTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FetchTimeout = 20 * time.Millisecond
	block := make(chan struct{})
	defer close(block)
	fetcher := fetchFunc(func(ctx context.Context, req models.AdRequest) (*models.AdResponse, error) {
		// ignores ctx on purpose
		<-block
		return nil, nil
	})
	h := newHarness(t, fetcher, cfg)
	cb := &callbacks{}

	s, err := h.m.Show(models.SlotRewarded, cb.options())
	require.NoError(t, err)
	assert.Equal(t, StateError, waitDone(t, s))
	assert.ErrorIs(t, s.Err(), ErrFetchTimeout)
	assert.ErrorIs(t, cb.err, ErrFetchTimeout)
	assert.Nil(t, h.m.Active(models.SlotRewarded))
}

func TestBanner_ContainerMissing(t *testing.T) {
	h := newHarness(t, adsResponse("b1"), DefaultConfig())

	s, err := h.m.RequestBanner("nowhere", models.Size{Width: 300, Height: 250}, Options{})
	assert.ErrorIs(t, err, ErrContainerMissing)
	assert.Nil(t, s)
	assert.Zero(t, h.hooks.count(hooks.AdStart))
}

func TestBanner_ClicksKeepSessionAlive(t *testing.T) {
	h := newHarness(t, adsResponse("b1"), DefaultConfig())
	h.presenter.containers["sidebar"] = true
	cb := &callbacks{}

	s, err := h.m.RequestBanner("sidebar", models.Size{Width: 728, Height: 90}, cb.options())
	require.NoError(t, err)

	req := h.presenter.next(t)
	assert.Equal(t, "sidebar", req.ContainerID)
	assert.Equal(t, "728x90", req.Size.String())

	assert.True(t, req.Handle.Click())
	assert.True(t, req.Handle.Click())
	assert.Equal(t, StatePresenting, s.State())
	assert.Len(t, h.sink.ofType(models.EventClick), 2)

	// banners are ungated, but the slot is still held
	_, err = h.m.RequestBanner("sidebar", models.Size{Width: 728, Height: 90}, Options{})
	assert.ErrorIs(t, err, ErrAlreadyActive)

	require.NoError(t, h.m.RemoveBanner())
	assert.Equal(t, StateCompleted, waitDone(t, s))
	assert.Equal(t, 1, cb.complete)
	assert.Equal(t, 1, cb.closed)
	assert.False(t, req.Handle.Click())
	assert.ErrorIs(t, h.m.RemoveBanner(), ErrNoActiveBanner)
}

func TestPresentFailure(t *testing.T) {
	h := newHarness(t, adsResponse("a1"), DefaultConfig())
	h.presenter.err = errors.New("render target gone")
	cb := &callbacks{}

	s, err := h.m.Show(models.SlotInterstitial, cb.options())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, waitDone(t, s))
	assert.EqualError(t, cb.err, "render target gone")
	assert.Zero(t, cb.closed)
	assert.Equal(t, 1, h.hooks.count(hooks.AdError))
	assert.Zero(t, h.hooks.count(hooks.AdClose))
}

func TestPick_UniformAmongCandidates(t *testing.T) {
	h := newHarness(t, nil, DefaultConfig())
	candidates := []models.Creative{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	seen := map[string]int{}
	for i := 0; i < 300; i++ {
		seen[h.m.pick(candidates).ID]++
	}
	assert.Len(t, seen, 3)
	for _, n := range seen {
		assert.Greater(t, n, 50)
	}
}

func TestCallbackPanicDoesNotLeakSlot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = 0
	h := newHarness(t, adsResponse("a1"), cfg)

	s, err := h.m.Show(models.SlotInterstitial, Options{OnComplete: func() { panic("host bug") }})
	require.NoError(t, err)
	h.presenter.next(t).Handle.Resolve(ActionContinue)
	assert.Equal(t, StateCompleted, waitDone(t, s))

	_, err = h.m.Show(models.SlotInterstitial, Options{})
	assert.NoError(t, err)
}
