package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/featureflag"
	"github.com/aukilabs/blockmap/modules"
	"github.com/aukilabs/blockmap/modules/objects"
	bwebsocket "github.com/aukilabs/blockmap/websocket"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newTestingServer(t *testing.T) *httptest.Server {
	maps := bwebsocket.NewTestingMaps(t)
	flags := featureflag.New(nil)

	return bwebsocket.NewTestingServer(func() bwebsocket.Handler {
		return &bwebsocket.RealtimeHandler{
			ClientIdleTimeout: time.Minute,
			Maps:              maps,
			Modules: []modules.Module{
				&objects.Module{FeatureFlags: flags},
			},
			FeatureFlags: flags,
		}
	})
}

func TestRun(t *testing.T) {
	server := newTestingServer(t)
	defer server.Close()

	t.Run("smoke test success", func(t *testing.T) {
		res, err := Run(context.Background(), RunOptions{
			FromEndpoint: "http://localblockmap",
			ToEndpoint:   server.URL,
			MapName:      "small",
			Timeout:      time.Second,
		})
		require.NoError(t, err)
		require.True(t, res.Success)
		require.Equal(t, "http://localblockmap", res.FromEndpoint)
		require.Equal(t, server.URL, res.ToEndpoint)
		require.Equal(t, "small", res.MapName)
		require.Greater(t, res.LatencyMilliSec, float64(0))
		require.Empty(t, res.Error)
	})

	t.Run("smoke test on default map", func(t *testing.T) {
		res, err := Run(context.Background(), RunOptions{
			ToEndpoint: server.URL,
			Timeout:    time.Second,
		})
		require.NoError(t, err)
		require.True(t, res.Success)
		require.Equal(t, "default", res.MapName)
	})

	t.Run("smoke test with unknown map", func(t *testing.T) {
		res, err := Run(context.Background(), RunOptions{
			ToEndpoint: server.URL,
			MapName:    "e1m1",
			Timeout:    time.Millisecond * 200,
		})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeSmokeTestFailed))
		require.False(t, res.Success)
		require.NotEmpty(t, res.Error)
	})

	t.Run("smoke test with unreachable endpoint", func(t *testing.T) {
		res, err := Run(context.Background(), RunOptions{
			ToEndpoint: "http://localhost:1",
			Timeout:    time.Millisecond * 200,
		})
		require.Error(t, err)
		require.False(t, res.Success)
	})
}

func TestHandleSmokeTest(t *testing.T) {
	server := newTestingServer(t)
	defer server.Close()

	handler := HandleSmokeTest(context.Background(), Options{
		Endpoint:  server.URL,
		UserAgent: "Blockmap test",
	})

	t.Run("default endpoint", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/smoke-test", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var res Results
		err := json.Unmarshal(w.Body.Bytes(), &res)
		require.NoError(t, err)
		require.True(t, res.Success)
		require.Equal(t, server.URL, res.ToEndpoint)
	})

	t.Run("failed smoke test", func(t *testing.T) {
		body, err := json.Marshal(Request{
			MapName: "e1m1",
			Timeout: time.Millisecond * 200,
		})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader(body)))
		require.Equal(t, http.StatusBadGateway, w.Code)

		var res Results
		err = json.Unmarshal(w.Body.Bytes(), &res)
		require.NoError(t, err)
		require.False(t, res.Success)
	})

	t.Run("bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader([]byte("{"))))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTestBox(t *testing.T) {
	box := testBox(blockmap.NewAABox(0, 0, 1024, 1024), 64)
	require.Equal(t, blockmap.NewAABox(80, 80, 112, 112), box)

	box = testBox(blockmap.NewAABox(0, 0, 10, 10), 64)
	require.Equal(t, blockmap.NewAABox(2.5, 2.5, 7.5, 7.5), box)
}

func TestWebsocketURL(t *testing.T) {
	require.Equal(t, "ws://localhost:4000", websocketURL("http://localhost:4000"))
	require.Equal(t, "wss://blockmap.example.com/", websocketURL("https://blockmap.example.com/"))
	require.Equal(t, "ws://localhost", websocketURL("ws://localhost"))
}
