// Package smoketest checks that a blockmap server answers the core client
// flow end to end.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeSmokeTestFailed = "smoke_test_failed"

	defaultTimeout = time.Second * 10
)

type Options struct {
	// The public endpoint of the server running the smoke test.
	Endpoint string

	UserAgent string
}

// Request is the body of a smoke test request.
type Request struct {
	// The endpoint to test. Defaults to the endpoint of the server running the
	// test.
	Endpoint string `json:"endpoint,omitempty"`

	// The map joined during the test. Defaults to the default map.
	MapName string `json:"map_name,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// Results describes a smoke test run.
type Results struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	MapName         string  `json:"map_name"`
	Success         bool    `json:"success"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request

		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		if req.Endpoint == "" {
			req.Endpoint = opts.Endpoint
		}

		res, err := Run(ctx, RunOptions{
			FromEndpoint: opts.Endpoint,
			ToEndpoint:   req.Endpoint,
			UserAgent:    opts.UserAgent,
			MapName:      req.MapName,
			Timeout:      req.Timeout,
		})
		if err != nil {
			logs.WithTag("from_endpoint", opts.Endpoint).
				WithTag("to_endpoint", req.Endpoint).
				Warn(err)
		}

		body, err := json.Marshal(res)
		if err != nil {
			logs.Warn(errors.New("encoding smoke test result failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !res.Success {
			w.WriteHeader(http.StatusBadGateway)
		}
		w.Write(body)
	}
}

type RunOptions struct {
	FromEndpoint string
	ToEndpoint   string
	UserAgent    string
	MapName      string
	Timeout      time.Duration
}

// Run joins a map on the tested endpoint, links an object, finds it with a
// box and a path query and unlinks it.
func Run(ctx context.Context, opts RunOptions) (Results, error) {
	res := Results{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
		MapName:      opts.MapName,
	}

	err := run(ctx, opts, &res)
	if err != nil {
		err = errors.New("smoke test failed").
			WithType(ErrTypeSmokeTestFailed).
			WithTag("endpoint", opts.ToEndpoint).
			Wrap(err)
		res.Error = err.Error()
		return res, err
	}

	res.Success = true
	return res, nil
}

func run(ctx context.Context, opts RunOptions, res *Results) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	origin := opts.FromEndpoint
	if origin == "" {
		origin = "http://localhost"
	}

	config, err := websocket.NewConfig(websocketURL(opts.ToEndpoint), origin)
	if err != nil {
		return errors.New("creating websocket config failed").Wrap(err)
	}
	if opts.UserAgent != "" {
		config.Header.Set("User-Agent", opts.UserAgent)
	}

	start := time.Now()

	conn, err := config.DialContext(ctx)
	if err != nil {
		return errors.New("dialing endpoint failed").Wrap(err)
	}
	defer conn.Close()

	var join protocol.MapJoinResponse
	var link protocol.ObjectLinkResponse
	var boxQuery protocol.BoxQueryResponse
	var pathQuery protocol.PathQueryResponse
	var box blockmap.AABox

	err = protocol.NewScenario(conn).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{
					RequestID: 1,
					Timestamp: time.Now(),
				},
				MapName: opts.MapName,
			}
		}).
		ReceiveTo(&join,
			protocol.FilterByType(protocol.MsgTypeMapJoinResponse),
			protocol.FilterByRequestID(1),
		).
		Send(func() protocol.Payload {
			box = testBox(join.Bounds, join.CellSize)
			return protocol.ObjectLinkRequest{
				Request: protocol.Request{
					RequestID: 2,
					Timestamp: time.Now(),
				},
				Box: box,
			}
		}).
		ReceiveTo(&link,
			protocol.FilterByType(protocol.MsgTypeObjectLinkResponse),
			protocol.FilterByRequestID(2),
		).
		Send(func() protocol.Payload {
			return protocol.BoxQueryRequest{
				Request: protocol.Request{
					RequestID: 3,
					Timestamp: time.Now(),
				},
				Box: box,
			}
		}).
		ReceiveTo(&boxQuery,
			protocol.FilterByType(protocol.MsgTypeBoxQueryResponse),
			protocol.FilterByRequestID(3),
		).
		Send(func() protocol.Payload {
			return protocol.PathQueryRequest{
				Request: protocol.Request{
					RequestID: 4,
					Timestamp: time.Now(),
				},
				From: join.Bounds.Min,
				To:   box.Max,
			}
		}).
		ReceiveTo(&pathQuery,
			protocol.FilterByType(protocol.MsgTypePathQueryResponse),
			protocol.FilterByRequestID(4),
		).
		Send(func() protocol.Payload {
			return protocol.ObjectUnlinkRequest{
				Request: protocol.Request{
					RequestID: 5,
					Timestamp: time.Now(),
				},
				ObjectID: link.ObjectID,
			}
		}).
		Receive(
			protocol.FilterByType(protocol.MsgTypeObjectUnlinkResponse),
			protocol.FilterByRequestID(5),
		).
		Run(ctx)
	if err != nil {
		return err
	}

	res.MapName = join.MapName
	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000

	if !slices.Contains(boxQuery.ObjectIDs, link.ObjectID) {
		return errors.New("linked object not found by box query").
			WithTag("object_id", link.ObjectID)
	}

	if !slices.Contains(pathQuery.ObjectIDs, link.ObjectID) {
		return errors.New("linked object not found by path query").
			WithTag("object_id", link.ObjectID)
	}
	return nil
}

// testBox returns a box covering the second cell on the diagonal of a map, or
// the first one on maps too small to have it.
func testBox(bounds blockmap.AABox, cellSize float64) blockmap.AABox {
	offset := cellSize
	if bounds.Width() < 2*cellSize || bounds.Height() < 2*cellSize {
		offset = 0
	}

	size := min(cellSize, bounds.Width(), bounds.Height()) / 2
	corner := blockmap.Add(bounds.Min, blockmap.Vec2{X: offset + size/2, Y: offset + size/2})
	return blockmap.AABox{
		Min: corner,
		Max: blockmap.Add(corner, blockmap.Vec2{X: size, Y: size}),
	}
}

func websocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")

	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")

	default:
		return endpoint
	}
}
