package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/featureflag"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/blockmap/modules"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Creates a testing environement to unit test handlers and modules.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	clientA, clientB, close := newTestingEnv(t, newHandler)
	return clientA, clientB, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		close()
	}
}

// NewTestingServer starts a server that handles each WebSocket connection
// with a handler created by newHandler.
func NewTestingServer(newHandler func() Handler) *httptest.Server {
	return httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	server := NewTestingServer(newHandler)

	newConn := func() *websocket.Conn {
		config, err := websocket.NewConfig(
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
		)
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "ted")
		config.Header.Set("X-Forwarded-for", "192.0.0.0")
		config.Header.Set(HeaderClientID, uuid.NewString())

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		return conn
	}

	clientA := newConn()
	clientB := newConn()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

// NewTestingMaps returns a store with the default map and a small map named
// "small" whose static lines form a vertical wall at x=500.
func NewTestingMaps(t *testing.T) *models.MapStore {
	maps := &models.MapStore{}

	defs := []models.MapDef{
		models.DefaultMapDef(64),
		{
			Name:     "small",
			Bounds:   blockmap.NewAABox(0, 0, 1024, 1024),
			CellSize: 64,
			Lines: []models.LineDef{
				{
					From: blockmap.Vec2{X: 500, Y: 100},
					To:   blockmap.Vec2{X: 500, Y: 900},
				},
			},
		},
	}

	for _, def := range defs {
		if _, err := maps.Load(context.Background(), def); err != nil {
			t.Fatalf("error loading map %q: %s", def.Name, err)
		}
	}
	return maps
}

func newTestHandler(maps *models.MapStore, flags []string, newModule ...func(featureflag.FeatureFlag) modules.Module) func() Handler {
	featureFlags := featureflag.New(flags)

	return func() Handler {
		modules := make([]modules.Module, len(newModule))
		for i, nm := range newModule {
			modules[i] = nm(featureFlags)
		}

		var h Handler = &RealtimeHandler{
			ClientIdleTimeout: time.Minute,
			Maps:              maps,
			Modules:           modules,
			FeatureFlags:      featureFlags,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://blockmap-test.local")
		return h
	}
}
