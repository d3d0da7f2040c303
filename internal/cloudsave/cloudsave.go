// Package cloudsave passes player save data through to the platform.
package cloudsave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/transport"
	"go.uber.org/zap"
)

// ErrNoGameID is returned when saving or loading without a game id.
var ErrNoGameID = errors.New("game id is not set")

// API is the part of transport.Client cloud save uses.
type API interface {
	CloudSave(ctx context.Context, req transport.SaveRequest) (*transport.SaveResponse, error)
	CloudLoad(ctx context.Context, gameID, playerID string) (*transport.LoadResponse, error)
}

// Result is what SaveData reports to the host.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Service saves and loads opaque JSON documents per game and player.
type Service struct {
	api      API
	identity func() (gameID, playerID string)
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(api API, identity func() (string, string), logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:      api,
		identity: identity,
		logger:   logger,
		now:      time.Now,
	}
}

// Save stores data. Failures are reported in the result.
func (s *Service) Save(ctx context.Context, data any) Result {
	gameID, playerID := s.identity()
	if gameID == "" {
		return Result{Error: ErrNoGameID.Error()}
	}

	raw, err := encode(data)
	if err != nil {
		s.logger.Warn("cloud save rejected", zap.Error(err))
		return Result{Error: err.Error()}
	}

	_, err = s.api.CloudSave(ctx, transport.SaveRequest{
		GameID:    gameID,
		PlayerID:  playerID,
		Data:      raw,
		Timestamp: s.now().UnixMilli(),
	})
	if err != nil {
		s.logger.Warn("cloud save failed",
			zap.String("game_id", gameID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		return Result{Error: err.Error()}
	}

	s.logger.Debug("cloud save stored", zap.String("game_id", gameID), zap.Int("bytes", len(raw)))
	return Result{Success: true}
}

// Load returns the stored document, or nil when there is none.
func (s *Service) Load(ctx context.Context) (json.RawMessage, error) {
	gameID, playerID := s.identity()
	if gameID == "" {
		return nil, ErrNoGameID
	}

	resp, err := s.api.CloudLoad(ctx, gameID, playerID)
	if err != nil {
		return nil, fmt.Errorf("load save data: %w", err)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, nil
	}
	return resp.Data, nil
}

func encode(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("save data is not valid JSON")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("save data is not valid JSON")
		}
		return json.RawMessage(v), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode save data: %w", err)
	}
	return b, nil
}
