// Package identity derives the game and player identifiers the SDK reports
// with every request.
package identity

import (
	"context"
	"net/url"
	"strings"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultNamespace is the storage key the player id token lives under.
const DefaultNamespace = "kasrah_player_id"

// PageContext is the environment the game id is detected from.
type PageContext struct {
	// URL is the page URL the game runs on, e.g. https://kasrah.games/play/g1?gameId=g1.
	URL string
	// Explicit wins over anything found in URL.
	Explicit string
}

// ResolveGameID returns the game id with precedence explicit value, then the
// gameId query parameter, then the last path segment of the page URL.
// The boolean is false when nothing usable was found.
func ResolveGameID(pc PageContext) (string, bool) {
	if id := strings.TrimSpace(pc.Explicit); id != "" {
		return id, true
	}
	if pc.URL == "" {
		return "", false
	}

	u, err := url.Parse(pc.URL)
	if err != nil {
		return "", false
	}
	if id := strings.TrimSpace(u.Query().Get("gameId")); id != "" {
		return id, true
	}

	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" || strings.Contains(path, ".") {
		// bare host or a file such as index.html
		return "", false
	}
	return path, true
}

// NewPlayerID returns a fresh opaque player token.
func NewPlayerID() string {
	return "player_" + uuid.NewString()
}

// ResolvePlayerID loads the stored player id or creates and persists a new
// one. Store failures never fail resolution: the id is returned unpersisted.
func ResolvePlayerID(ctx context.Context, store storage.KeyValueStore, namespace string, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	if store != nil {
		id, ok, err := store.Get(ctx, namespace)
		if err != nil {
			logger.Warn("failed to read player id", zap.Error(err))
		} else if ok && id != "" {
			return id
		}
	}

	id := NewPlayerID()
	if store == nil {
		return id
	}
	if err := store.Set(ctx, namespace, id); err != nil {
		logger.Warn("failed to persist player id, using ephemeral id",
			zap.String("player_id", id),
			zap.Error(err),
		)
	}
	return id
}
