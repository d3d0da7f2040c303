package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/metrics"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	c := NewClient(Config{BaseURL: srv.URL + "/", SDKVersion: "3.0.0", Metrics: m})
	c.SetIdentity("g1", "player_1")
	return c, m
}

func TestFetchAds_SendsIdentityAndBody(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sdk/ads", r.URL.Path)
		assert.Equal(t, "g1", r.Header.Get(HeaderGameID))
		assert.Equal(t, "player_1", r.Header.Get(HeaderPlayerID))
		assert.Equal(t, "3.0.0", r.Header.Get(HeaderSDKVersion))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.AdRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.SlotBanner, req.Type)
		assert.Equal(t, "300x250", req.Size)

		w.Write([]byte(`{"success":true,"ads":[{"id":"a1","imageUrl":"x","title":"t"}]}`))
	})

	resp, err := c.FetchAds(context.Background(), models.AdRequest{
		GameID: "g1", PlayerID: "player_1", Type: models.SlotBanner, Size: "300x250",
	})
	require.NoError(t, err)
	require.Len(t, resp.Candidates(), 1)
	assert.Equal(t, "a1", resp.Candidates()[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues(OpFetchAds, "200")))
}

func TestFetchAds_UnsuccessfulIsStatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"game suspended"}`))
	})

	_, err := c.FetchAds(context.Background(), models.AdRequest{Type: models.SlotInterstitial})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindStatus))
	assert.ErrorIs(t, err, ErrUnsuccessful)
	assert.Contains(t, err.Error(), "game suspended")
}

func TestRequest_ErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantKind   Kind
		wantStatus int
	}{
		{
			name: "non-json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>oops</html>"))
			},
			wantKind:   KindDecode,
			wantStatus: http.StatusOK,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(`{"error":"upstream down"}`))
			},
			wantKind:   KindStatus,
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler)
			var out map[string]any
			err := c.Request(context.Background(), http.MethodGet, "/x", nil, nil, &out)

			var te *Error
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.wantKind, te.Kind)
			assert.Equal(t, tt.wantStatus, te.Status)
		})
	}
}

func TestRequest_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Timeout: time.Second})
	err := c.Request(context.Background(), http.MethodGet, "/x", nil, nil, nil)
	assert.True(t, IsKind(err, KindNetwork))
}

func TestRequest_DoesNotRetry(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.Request(context.Background(), http.MethodPost, "/api/sdk/game-events", nil, map[string]int{"a": 1}, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestVerifyGame(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sdk/games/g1", r.URL.Path)
		w.Write([]byte(`{"success":true,"game":{"id":"g1","title":"Snake"}}`))
	})

	game, err := c.VerifyGame(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "Snake", game.Title)
}

func TestCloudSaveAndLoad(t *testing.T) {
	var saved SaveRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			w.Write([]byte(`{"success":true}`))
		case http.MethodGet:
			assert.Equal(t, "g1", r.URL.Query().Get("gameId"))
			assert.Equal(t, "player_1", r.URL.Query().Get("playerId"))
			w.Write([]byte(`{"success":true,"data":{"level":3}}`))
		}
	})

	_, err := c.CloudSave(context.Background(), SaveRequest{
		GameID: "g1", PlayerID: "player_1", Data: json.RawMessage(`{"level":3}`), Timestamp: 1,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":3}`, string(saved.Data))

	loaded, err := c.CloudLoad(context.Background(), "g1", "player_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":3}`, string(loaded.Data))
}

func TestTrackAdEvents_EmptyEnvelopeIsSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sdk/ad-events", r.URL.Path)
		w.Write([]byte(`{}`))
	})
	assert.NoError(t, c.TrackAdEvents(context.Background(), models.EventBatch{GameID: "g1"}))
}
