// Package transport talks to the Kasrah games HTTP API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/metrics"
	"go.uber.org/zap"
)

const (
	HeaderGameID     = "X-Game-ID"
	HeaderPlayerID   = "X-Player-ID"
	HeaderSDKVersion = "X-SDK-Version"
)

// maxErrorBody bounds how much of a failed response is kept for logging.
const maxErrorBody = 4 << 10

// Client performs JSON requests against the API and attaches the SDK
// identity headers to each of them. It never retries.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu       sync.RWMutex
	gameID   string
	playerID string
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	SDKVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		version:    cfg.SDKVersion,
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// SetIdentity sets the ids sent with every subsequent request.
func (c *Client) SetIdentity(gameID, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameID = gameID
	c.playerID = playerID
}

// Identity returns the current game and player ids.
func (c *Client) Identity() (gameID, playerID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gameID, c.playerID
}

// Request sends body as JSON (when non-nil) and decodes the response into out
// (when non-nil).
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.do(ctx, path, method, path, query, body, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	start := time.Now()
	status, err := c.roundTrip(ctx, op, method, path, query, body, out)
	latency := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordAPIRequest(op, status, latency)
	}
	if err != nil {
		c.logger.Debug("api request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return err
	}
	c.logger.Debug("api request",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", status),
		zap.Duration("latency", latency),
	)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body, out any) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, &Error{Kind: KindDecode, Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	gameID, playerID := c.Identity()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderSDKVersion, c.version)
	if gameID != "" {
		req.Header.Set(HeaderGameID, gameID)
	}
	if playerID != "" {
		req.Header.Set(HeaderPlayerID, playerID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &Error{
			Kind:   KindStatus,
			Op:     op,
			Status: resp.StatusCode,
			Err:    errors.New(apiErrorMessage(msg, resp.Status)),
		}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &Error{Kind: KindDecode, Op: op, Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, nil
}

// apiErrorMessage extracts {"error": "..."} from a failed response body.
func apiErrorMessage(body []byte, fallback string) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return fallback
}

// unsuccessful builds the error for a 2xx response carrying success:false.
func unsuccessful(op, msg string) error {
	if msg == "" {
		return &Error{Kind: KindStatus, Op: op, Status: http.StatusOK, Err: ErrUnsuccessful}
	}
	return &Error{Kind: KindStatus, Op: op, Status: http.StatusOK, Err: fmt.Errorf("%w: %s", ErrUnsuccessful, msg)}
}
