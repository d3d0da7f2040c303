package sdk

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/metrics"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/session"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/storage"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/telemetry"
	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithPresenter sets the UI collaborator. If it also implements
// session.ContainerLocator it is used for banner container checks.
func WithPresenter(p session.Presenter) Option {
	return func(c *Client) { c.presenter = p }
}

// WithPlayerStore sets where the player id is persisted.
func WithPlayerStore(s storage.KeyValueStore) Option {
	return func(c *Client) { c.playerStore = s }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSink adds a telemetry sink next to the HTTP API, e.g. a ClickHouse mirror.
func WithSink(s telemetry.Sink) Option {
	return func(c *Client) { c.extraSinks = append(c.extraSinks, s) }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithRand sets the source used to pick among several creatives.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) { c.rnd = r }
}
