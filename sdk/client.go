// Package sdk is the host-facing Kasrah games SDK: game and player identity,
// ads with frequency gating, cloud save, lifecycle hooks and telemetry.
//
// A Client is created explicitly and initialised once:
//
//	client, err := sdk.New(cfg, sdk.WithLogger(logger))
//	client.Init(ctx, sdk.InitOptions{GameID: "g1"})
//	client.ShowRewarded(sdk.ShowOptions{OnReward: grantCoins})
package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/cloudsave"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/config"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/hooks"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/identity"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/metrics"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/presenter"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/session"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/storage"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/telemetry"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/transport"
	"go.uber.org/zap"
)

// ErrNotInitialized is returned by operations attempted before Init.
var ErrNotInitialized = errors.New("kasrah sdk is not initialized")

// InitOptions override the configured page context.
type InitOptions struct {
	GameID  string
	PageURL string
}

// Client is one SDK instance.
type Client struct {
	cfg         *config.Config
	logger      *zap.Logger
	metrics     *metrics.Metrics
	presenter   session.Presenter
	playerStore storage.KeyValueStore
	httpClient  *http.Client
	extraSinks  []telemetry.Sink
	now         func() time.Time
	rnd         *rand.Rand

	api      *transport.Client
	queue    *telemetry.Queue
	hooks    *hooks.Registry
	sessions *session.Manager
	saves    *cloudsave.Service

	mu          sync.RWMutex
	initialized bool
	gameID      string
	playerID    string
	stopLoop    context.CancelFunc
	loopDone    chan struct{}
}

// New builds a client from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.playerStore == nil {
		c.playerStore = storage.NewInMemoryStore()
	}
	if c.presenter == nil {
		c.presenter = presenter.NewHeadless(c.logger)
	}

	gated := make([]models.SlotType, 0, len(cfg.Ads.GatedSlots))
	for _, s := range cfg.Ads.GatedSlots {
		slot, err := models.ParseSlotType(s)
		if err != nil {
			return nil, fmt.Errorf("invalid gated slot: %w", err)
		}
		gated = append(gated, slot)
	}

	c.api = transport.NewClient(transport.Config{
		BaseURL:    cfg.API.BaseURL,
		SDKVersion: cfg.API.SDKVersion,
		Timeout:    cfg.API.Timeout,
		HTTPClient: c.httpClient,
		Logger:     c.logger,
		Metrics:    c.metrics,
	})

	var sink telemetry.Sink = telemetry.NewHTTPSink(c.api)
	if len(c.extraSinks) > 0 {
		sink = append(telemetry.Tee{sink}, c.extraSinks...)
	}
	c.queue = telemetry.NewQueue(sink, telemetry.Config{
		BatchSize:     cfg.Telemetry.BatchSize,
		MaxQueue:      cfg.Telemetry.MaxQueue,
		FlushInterval: cfg.Telemetry.FlushInterval,
	}, c.logger, c.metrics)
	c.queue.SetClock(c.now)

	c.hooks = hooks.NewRegistry(c.logger)
	c.sessions = session.NewManager(session.Config{
		MinInterval:  cfg.Ads.MinInterval,
		Gated:        gated,
		FetchTimeout: cfg.Ads.FetchTimeout,
	}, session.Deps{
		Fetcher:   c.api,
		Events:    c.queue,
		Presenter: c.presenter,
		Hooks:     c.hooks,
		Identity:  c.identity,
		Logger:    c.logger,
		Metrics:   c.metrics,
		Now:       c.now,
		Rand:      c.rnd,
	})
	c.saves = cloudsave.NewService(c.api, c.identity, c.logger)

	c.logger.Info("Kasrah SDK loaded", zap.String("version", cfg.API.SDKVersion))
	return c, nil
}

func (c *Client) identity() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gameID, c.playerID
}

// Init resolves identity, verifies the game and starts the telemetry loop.
// A missing game id leaves the SDK usable in a limited mode. Calling Init
// again is a no-op.
func (c *Client) Init(ctx context.Context, opts InitOptions) bool {
	if ctx.Err() != nil {
		return false
	}

	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return true
	}

	explicit := opts.GameID
	if explicit == "" {
		explicit = c.cfg.Game.GameID
	}
	pageURL := opts.PageURL
	if pageURL == "" {
		pageURL = c.cfg.Game.PageURL
	}
	gameID, found := identity.ResolveGameID(identity.PageContext{URL: pageURL, Explicit: explicit})
	playerID := identity.ResolvePlayerID(ctx, c.playerStore, c.cfg.Identity.Namespace, c.logger)

	c.gameID = gameID
	c.playerID = playerID
	c.api.SetIdentity(gameID, playerID)

	loopCtx, cancel := context.WithCancel(context.Background())
	c.stopLoop = cancel
	c.loopDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		c.queue.Run(loopCtx)
	}(c.loopDone)

	c.initialized = true
	c.mu.Unlock()

	if !found {
		c.logger.Warn("game id not found, some features may be limited")
	} else if game, err := c.api.VerifyGame(ctx, gameID); err != nil {
		c.logger.Warn("failed to verify game", zap.String("game_id", gameID), zap.Error(err))
	} else {
		c.logger.Debug("game verified", zap.String("game_id", game.ID), zap.String("title", game.Title))
	}

	c.enqueue(models.TelemetryEvent{Type: models.EventSessionStart})
	c.logger.Info("Kasrah SDK initialized",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
	)
	return true
}

// Initialized reports whether Init has run.
func (c *Client) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

func (c *Client) GameID() string {
	id, _ := c.identity()
	return id
}

func (c *Client) PlayerID() string {
	_, id := c.identity()
	return id
}

// Hooks exposes the registry so tools such as the inspector can observe it.
func (c *Client) Hooks() *hooks.Registry { return c.hooks }

// Presenter returns the presentation collaborator in use.
func (c *Client) Presenter() session.Presenter { return c.presenter }

// Sessions returns the ad session manager.
func (c *Client) Sessions() *session.Manager { return c.sessions }

// Telemetry returns the event queue.
func (c *Client) Telemetry() *telemetry.Queue { return c.queue }

func (c *Client) requireInit(op string) error {
	if c.Initialized() {
		return nil
	}
	c.logger.Warn("operation attempted before init", zap.String("op", op))
	return ErrNotInitialized
}

// Show starts an interstitial or rewarded session and returns it, or the
// reason it was rejected.
func (c *Client) Show(slot SlotType, opts ShowOptions) (*Session, error) {
	if err := c.requireInit("show_" + string(slot)); err != nil {
		return nil, err
	}
	s, err := c.sessions.Show(slot, opts)
	if err != nil {
		c.logger.Info("ad not shown", zap.String("slot", string(slot)), zap.Error(err))
		return nil, err
	}
	return s, nil
}

// ShowInterstitial reports whether an interstitial session started.
func (c *Client) ShowInterstitial(opts ShowOptions) bool {
	_, err := c.Show(Interstitial, opts)
	return err == nil
}

// ShowRewarded reports whether a rewarded session started. The reward is
// only granted through opts.OnReward.
func (c *Client) ShowRewarded(opts ShowOptions) bool {
	_, err := c.Show(Rewarded, opts)
	return err == nil
}

// RequestBanner embeds a banner of size ("300x250") in containerID.
func (c *Client) RequestBanner(containerID, size string) bool {
	if c.requireInit("request_banner") != nil {
		return false
	}
	sz, err := models.ParseSize(size)
	if err != nil {
		c.logger.Warn("invalid banner size", zap.String("size", size), zap.Error(err))
		return false
	}
	if _, err := c.sessions.RequestBanner(containerID, sz, ShowOptions{}); err != nil {
		c.logger.Info("banner not shown", zap.String("container", containerID), zap.Error(err))
		return false
	}
	return true
}

// RemoveBanner takes down the current banner.
func (c *Client) RemoveBanner() bool {
	return c.sessions.RemoveBanner() == nil
}

// SaveData stores data for the current game and player.
func (c *Client) SaveData(ctx context.Context, data any) SaveResult {
	if err := c.requireInit("save_data"); err != nil {
		return SaveResult{Error: err.Error()}
	}
	return c.saves.Save(ctx, data)
}

// LoadData returns the saved document, or nil when absent or on failure.
func (c *Client) LoadData(ctx context.Context) json.RawMessage {
	if c.requireInit("load_data") != nil {
		return nil
	}
	data, err := c.saves.Load(ctx)
	if err != nil {
		c.logger.Warn("cloud load failed", zap.Error(err))
		return nil
	}
	return data
}

// On sets the handler for hook, replacing any previous one.
func (c *Client) On(hook Hook, handler HookHandler) error {
	if err := c.hooks.Subscribe(hook, handler); err != nil {
		c.logger.Warn("invalid hook subscription", zap.String("hook", string(hook)), zap.Error(err))
		return err
	}
	return nil
}

// Off clears the handler for hook.
func (c *Client) Off(hook Hook) {
	c.hooks.Unsubscribe(hook)
}

func (c *Client) GameplayStart() {
	c.hooks.Fire(hooks.Event{Hook: hooks.GameplayStart})
	c.FireEvent("gameplay_start", nil)
}

func (c *Client) GameplayStop() {
	c.hooks.Fire(hooks.Event{Hook: hooks.GameplayStop})
	c.FireEvent("gameplay_stop", nil)
}

// FireEvent queues a custom analytics event.
func (c *Client) FireEvent(name string, metadata map[string]any) {
	if c.requireInit("fire_event") != nil {
		return
	}
	c.enqueue(models.TelemetryEvent{Type: models.EventCustom, Name: name, Metadata: metadata})
}

func (c *Client) enqueue(e models.TelemetryEvent) {
	e.GameID, e.PlayerID = c.identity()
	c.queue.Enqueue(e)
}

// Close stops the telemetry loop and flushes what is left.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stopLoop, c.loopDone
	c.stopLoop = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	if err := c.queue.Drain(ctx); err != nil {
		return fmt.Errorf("drain telemetry: %w", err)
	}
	return nil
}
