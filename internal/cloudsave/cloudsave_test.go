package cloudsave

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	saved   []transport.SaveRequest
	saveErr error
	load    *transport.LoadResponse
	loadErr error
}

func (f *fakeAPI) CloudSave(ctx context.Context, req transport.SaveRequest) (*transport.SaveResponse, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = append(f.saved, req)
	return &transport.SaveResponse{Success: true}, nil
}

func (f *fakeAPI) CloudLoad(ctx context.Context, gameID, playerID string) (*transport.LoadResponse, error) {
	return f.load, f.loadErr
}

func identity(game string) func() (string, string) {
	return func() (string, string) { return game, "player_1" }
}

func TestSave(t *testing.T) {
	api := &fakeAPI{}
	svc := NewService(api, identity("g1"), nil)

	res := svc.Save(context.Background(), map[string]int{"level": 4})
	assert.True(t, res.Success)
	require.Len(t, api.saved, 1)
	assert.Equal(t, "g1", api.saved[0].GameID)
	assert.Equal(t, "player_1", api.saved[0].PlayerID)
	assert.JSONEq(t, `{"level":4}`, string(api.saved[0].Data))
	assert.NotZero(t, api.saved[0].Timestamp)
}

func TestSave_Failures(t *testing.T) {
	tests := []struct {
		name string
		svc  *Service
		data any
		want string
	}{
		{
			name: "no game id",
			svc:  NewService(&fakeAPI{}, identity(""), nil),
			data: 1,
			want: ErrNoGameID.Error(),
		},
		{
			name: "invalid raw json",
			svc:  NewService(&fakeAPI{}, identity("g1"), nil),
			data: json.RawMessage(`{oops`),
			want: "save data is not valid JSON",
		},
		{
			name: "transport error",
			svc:  NewService(&fakeAPI{saveErr: errors.New("offline")}, identity("g1"), nil),
			data: map[string]any{},
			want: "offline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.svc.Save(context.Background(), tt.data)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	api := &fakeAPI{load: &transport.LoadResponse{Success: true, Data: json.RawMessage(`{"coins":10}`)}}
	svc := NewService(api, identity("g1"), nil)

	data, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"coins":10}`, string(data))

	api.load = &transport.LoadResponse{Success: true, Data: json.RawMessage(`null`)}
	data, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)

	api.loadErr = errors.New("404")
	_, err = svc.Load(context.Background())
	assert.Error(t, err)
}
