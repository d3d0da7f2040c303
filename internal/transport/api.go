package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
)

// Operation names used in errors, logs and metrics.
const (
	OpVerifyGame = "verify_game"
	OpFetchAds   = "fetch_ads"
	OpAdEvents   = "ad_events"
	OpGameEvents = "game_events"
	OpCloudSave  = "cloud_save"
	OpCloudLoad  = "cloud_load"
)

// GameInfo describes a game registered on the platform.
type GameInfo struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

type gameResponse struct {
	Success bool      `json:"success"`
	Game    *GameInfo `json:"game,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type statusResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SaveRequest is the body of POST /api/sdk/cloud-save.
type SaveRequest struct {
	GameID    string          `json:"gameId"`
	PlayerID  string          `json:"playerId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// SaveResponse is returned by the cloud save endpoint.
type SaveResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// LoadResponse is returned by GET /api/sdk/cloud-save.
type LoadResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// VerifyGame checks that gameID exists.
func (c *Client) VerifyGame(ctx context.Context, gameID string) (*GameInfo, error) {
	var resp gameResponse
	path := "/api/sdk/games/" + url.PathEscape(gameID)
	if err := c.do(ctx, OpVerifyGame, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, unsuccessful(OpVerifyGame, resp.Error)
	}
	if resp.Game == nil {
		return &GameInfo{ID: gameID}, nil
	}
	return resp.Game, nil
}

// FetchAds requests creatives for one slot.
func (c *Client) FetchAds(ctx context.Context, req models.AdRequest) (*models.AdResponse, error) {
	var resp models.AdResponse
	if err := c.do(ctx, OpFetchAds, http.MethodPost, "/api/sdk/ads", nil, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, unsuccessful(OpFetchAds, resp.Error)
	}
	return &resp, nil
}

// TrackAdEvents submits impression, click and complete events.
func (c *Client) TrackAdEvents(ctx context.Context, batch models.EventBatch) error {
	return c.postEvents(ctx, OpAdEvents, "/api/sdk/ad-events", batch)
}

// SendGameEvents submits gameplay and custom events.
func (c *Client) SendGameEvents(ctx context.Context, batch models.EventBatch) error {
	return c.postEvents(ctx, OpGameEvents, "/api/sdk/game-events", batch)
}

func (c *Client) postEvents(ctx context.Context, op, path string, batch models.EventBatch) error {
	var resp statusResponse
	if err := c.do(ctx, op, http.MethodPost, path, nil, batch, &resp); err != nil {
		return err
	}
	// tracking endpoints may answer without an envelope
	if resp.Success != nil && !*resp.Success {
		return unsuccessful(op, resp.Error)
	}
	return nil
}

// CloudSave stores a player's save data.
func (c *Client) CloudSave(ctx context.Context, req SaveRequest) (*SaveResponse, error) {
	var resp SaveResponse
	if err := c.do(ctx, OpCloudSave, http.MethodPost, "/api/sdk/cloud-save", nil, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, unsuccessful(OpCloudSave, resp.Error)
	}
	return &resp, nil
}

// CloudLoad fetches a player's save data.
func (c *Client) CloudLoad(ctx context.Context, gameID, playerID string) (*LoadResponse, error) {
	q := url.Values{}
	q.Set("gameId", gameID)
	q.Set("playerId", playerID)

	var resp LoadResponse
	if err := c.do(ctx, OpCloudLoad, http.MethodGet, "/api/sdk/cloud-save", q, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, unsuccessful(OpCloudLoad, resp.Error)
	}
	return &resp, nil
}
