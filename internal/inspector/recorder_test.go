package inspector

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/hooks"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorder_LogRingKeepsNewest(t *testing.T) {
	r := NewRecorder(3, 0)
	for i := 0; i < 5; i++ {
		r.Note(LevelInfo, fmt.Sprintf("m%d", i))
	}

	logs := r.Logs()
	require.Len(t, logs, 3)
	assert.Equal(t, "m2", logs[0].Message)
	assert.Equal(t, "m4", logs[2].Message)
}

func TestRecorder_WrapCapturesZapLogs(t *testing.T) {
	base, observed := observer.New(zapcore.InfoLevel)
	r := NewRecorder(0, 0)
	logger := r.Wrap(zap.New(base)).Named("sdk").With(zap.String("game_id", "g1"))

	logger.Info("ad session started", zap.String("slot", "rewarded"))
	logger.Debug("below level")
	logger.Warn("ad fetch failed", zap.Error(errors.New("offline")))

	// the original core still receives everything
	assert.Equal(t, 2, observed.Len())

	logs := r.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "info", logs[0].Level)
	assert.Equal(t, "sdk", logs[0].Logger)
	assert.Equal(t, "g1", logs[0].Fields["game_id"])
	assert.Equal(t, "rewarded", logs[0].Fields["slot"])
	assert.Equal(t, "warn", logs[1].Level)
	assert.Equal(t, "offline", logs[1].Fields["error"])
}

func TestRecorder_ObserveHooks(t *testing.T) {
	reg := hooks.NewRegistry(nil)
	handled := 0
	require.NoError(t, reg.Subscribe(hooks.AdError, func(hooks.Event) { handled++ }))

	r := NewRecorder(0, 2)
	r.ObserveHooks(reg)

	reg.Fire(hooks.Event{Hook: hooks.AdStart, Slot: models.SlotRewarded, SessionID: "s1"})
	reg.Fire(hooks.Event{Hook: hooks.AdError, Slot: models.SlotRewarded, Err: errors.New("no ad available")})
	reg.Fire(hooks.Event{Hook: hooks.AdClose})

	assert.Equal(t, 1, handled)
	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "onAdError", events[0].Hook)
	assert.Equal(t, "no ad available", events[0].Error)
	assert.Equal(t, "onAdClose", events[1].Hook)
}

func TestRecorder_ExportAndClear(t *testing.T) {
	r := NewRecorder(0, 0)
	r.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	r.SetIdentity(func() (string, string) { return "g1", "player_1" })
	r.Note(LevelSuccess, "Reward granted")
	r.AddEvent(EventEntry{Hook: "onAdStart"})

	data, err := r.ExportJSON()
	require.NoError(t, err)

	var exp map[string]any
	require.NoError(t, json.Unmarshal(data, &exp))
	assert.Equal(t, "2024-01-02T03:04:05Z", exp["timestamp"])
	assert.Equal(t, "g1", exp["gameId"])
	assert.Equal(t, "player_1", exp["playerId"])
	assert.Len(t, exp["logs"], 1)
	assert.Len(t, exp["events"], 1)

	r.Clear()
	snap := r.Snapshot()
	assert.Empty(t, snap.Logs)
	assert.Empty(t, snap.Events)
}
