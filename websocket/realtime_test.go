package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/featureflag"
	"github.com/aukilabs/blockmap/modules"
	"github.com/aukilabs/blockmap/modules/lines"
	"github.com/aukilabs/blockmap/modules/objects"
	"github.com/aukilabs/blockmap/protocol"
	"github.com/stretchr/testify/require"
)

func newObjectsModule(flags featureflag.FeatureFlag) modules.Module {
	return &objects.Module{FeatureFlags: flags}
}

func newLinesModule(flags featureflag.FeatureFlag) modules.Module {
	return &lines.Module{FeatureFlags: flags}
}

func TestHandlerHandlePing(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), nil))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var res protocol.PingResponse
	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.PingRequest{
				Request: protocol.Request{
					RequestID: 1,
					Timestamp: time.Now(),
				},
			}
		}).
		ReceiveTo(&res,
			protocol.FilterByType(protocol.MsgTypePingResponse),
			protocol.FilterByRequestID(1),
		).
		Run(ctx)
	require.NoError(t, err)
	require.NotZero(t, res.Timestamp)
}

func TestHandlerHandleMapJoin(t *testing.T) {
	clientA, clientB, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), nil))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var joinA protocol.MapJoinResponse
	var stateA protocol.MapState

	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{
					RequestID: 1,
					Timestamp: time.Now(),
				},
			}
		}).
		ReceiveTo(&joinA,
			protocol.FilterByType(protocol.MsgTypeMapJoinResponse),
			protocol.FilterByRequestID(1),
		).
		ReceiveTo(&stateA, protocol.FilterByType(protocol.MsgTypeMapState)).
		Run(ctx)
	require.NoError(t, err)

	require.Equal(t, "default", joinA.MapName)
	require.NotEmpty(t, joinA.MapUUID)
	require.Equal(t, uint32(1), joinA.ClientID)
	require.Equal(t, blockmap.NewAABox(0, 0, 4096, 4096), joinA.Bounds)
	require.Equal(t, 64.0, joinA.CellSize)
	require.Equal(t, []uint32{1}, stateA.ClientIDs)

	var joinB protocol.MapJoinResponse
	var stateB protocol.MapState

	err = protocol.NewScenario(clientB).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{
					RequestID: 2,
					Timestamp: time.Now(),
				},
				MapName: "default",
			}
		}).
		ReceiveTo(&joinB,
			protocol.FilterByType(protocol.MsgTypeMapJoinResponse),
			protocol.FilterByRequestID(2),
		).
		ReceiveTo(&stateB, protocol.FilterByType(protocol.MsgTypeMapState)).
		Run(ctx)
	require.NoError(t, err)

	require.Equal(t, joinA.MapUUID, joinB.MapUUID)
	require.Equal(t, uint32(2), joinB.ClientID)
	require.Equal(t, []uint32{1, 2}, stateB.ClientIDs)
}

func TestHandlerHandleMapJoinNotFound(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), nil))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var res protocol.ErrorResponse
	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{
					RequestID: 1,
					Timestamp: time.Now(),
				},
				MapName: "e1m1",
			}
		}).
		ReceiveTo(&res,
			protocol.FilterByType(protocol.MsgTypeErrorResponse),
			protocol.FilterByRequestID(1),
		).
		Run(ctx)
	require.NoError(t, err)
	require.Equal(t, protocol.ErrorCodeNotFound, res.Code)
}

func TestHandlerHandleMapJoinNotFoundKeepsCurrentMap(t *testing.T) {
	maps := NewTestingMaps(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(maps, nil))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var notFound protocol.ErrorResponse
	var alreadyJoined protocol.ErrorResponse

	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 1},
				MapName: "small",
			}
		}).
		Receive(
			protocol.FilterByType(protocol.MsgTypeMapJoinResponse),
			protocol.FilterByRequestID(1),
		).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 2},
				MapName: "e1m1",
			}
		}).
		ReceiveTo(&notFound,
			protocol.FilterByType(protocol.MsgTypeErrorResponse),
			protocol.FilterByRequestID(2),
		).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 3},
				MapName: "small",
			}
		}).
		ReceiveTo(&alreadyJoined,
			protocol.FilterByType(protocol.MsgTypeErrorResponse),
			protocol.FilterByRequestID(3),
		).
		Run(ctx)
	require.NoError(t, err)

	require.Equal(t, protocol.ErrorCodeNotFound, notFound.Code)
	require.Equal(t, protocol.ErrorCodeMapAlreadyJoined, alreadyJoined.Code)

	small, ok := maps.GetByName("small")
	require.True(t, ok)
	require.Equal(t, []uint32{1}, small.ClientIDs())
}

func TestHandlerHandleMultipleMapJoins(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), nil))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var errRes protocol.ErrorResponse
	var join protocol.MapJoinResponse

	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 1},
			}
		}).
		Receive(
			protocol.FilterByType(protocol.MsgTypeMapJoinResponse),
			protocol.FilterByRequestID(1),
		).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 2},
				MapName: "default",
			}
		}).
		ReceiveTo(&errRes,
			protocol.FilterByType(protocol.MsgTypeErrorResponse),
			protocol.FilterByRequestID(2),
		).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 3},
				MapName: "small",
			}
		}).
		ReceiveTo(&join,
			protocol.FilterByType(protocol.MsgTypeMapJoinResponse),
			protocol.FilterByRequestID(3),
		).
		Run(ctx)
	require.NoError(t, err)

	require.Equal(t, protocol.ErrorCodeMapAlreadyJoined, errRes.Code)
	require.Equal(t, "small", join.MapName)
	require.Equal(t, blockmap.NewAABox(0, 0, 1024, 1024), join.Bounds)
}

func TestHandlerHandleMapReset(t *testing.T) {
	maps := NewTestingMaps(t)
	clientA, clientB, close := NewTestingEnv(t, newTestHandler(maps, nil, newObjectsModule))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 1},
			}
		}).
		Receive(protocol.FilterByType(protocol.MsgTypeObjectState)).
		Send(func() protocol.Payload {
			return protocol.ObjectLinkRequest{
				Request: protocol.Request{RequestID: 2},
				Box:     blockmap.NewAABox(10, 10, 20, 20),
				Persist: true,
			}
		}).
		Receive(
			protocol.FilterByType(protocol.MsgTypeObjectLinkResponse),
			protocol.FilterByRequestID(2),
		).
		Run(ctx)
	require.NoError(t, err)

	resetTime := time.Now()
	var reset protocol.MapResetResponse

	err = protocol.NewScenario(clientB).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 3},
			}
		}).
		Receive(protocol.FilterByType(protocol.MsgTypeObjectState)).
		Send(func() protocol.Payload {
			return protocol.MapResetRequest{
				Request: protocol.Request{
					RequestID: 4,
					Timestamp: resetTime,
				},
			}
		}).
		ReceiveTo(&reset,
			protocol.FilterByType(protocol.MsgTypeMapResetResponse),
			protocol.FilterByRequestID(4),
		).
		Run(ctx)
	require.NoError(t, err)
	require.NotZero(t, reset.Timestamp)

	var broadcast protocol.MapResetBroadcast
	var query protocol.BoxQueryResponse

	err = protocol.NewScenario(clientA).
		ReceiveTo(&broadcast, protocol.FilterByType(protocol.MsgTypeMapResetBroadcast)).
		Send(func() protocol.Payload {
			return protocol.BoxQueryRequest{
				Request: protocol.Request{RequestID: 5},
				Box:     blockmap.NewAABox(0, 0, 100, 100),
			}
		}).
		ReceiveTo(&query,
			protocol.FilterByType(protocol.MsgTypeBoxQueryResponse),
			protocol.FilterByRequestID(5),
		).
		Run(ctx)
	require.NoError(t, err)

	require.Equal(t, uint32(2), broadcast.ClientID)
	require.True(t, resetTime.Equal(broadcast.OriginTimestamp))
	require.Empty(t, query.ObjectIDs)
}

func TestHandlerHandleMapResetDisabled(t *testing.T) {
	flags := []string{string(featureflag.FlagDisableMapReset)}
	clientA, _, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), flags))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var res protocol.ErrorResponse
	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 1},
			}
		}).
		Send(func() protocol.Payload {
			return protocol.MapResetRequest{
				Request: protocol.Request{RequestID: 2},
			}
		}).
		ReceiveTo(&res,
			protocol.FilterByType(protocol.MsgTypeErrorResponse),
			protocol.FilterByRequestID(2),
		).
		Run(ctx)
	require.NoError(t, err)
	require.Equal(t, protocol.ErrorCodeFeatureDisabled, res.Code)
}

func TestHandlerHandleMapResetNotJoined(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), nil))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapResetRequest{
				Request: protocol.Request{RequestID: 1},
			}
		}).
		Receive(protocol.FilterByType(protocol.MsgTypeMapResetResponse)).
		Run(ctx)
	require.Error(t, err)
}

func TestHandlerDisconnectOnIdleTimeout(t *testing.T) {
	clientA, _, close := newTestingEnv(t, func() Handler {
		return &RealtimeHandler{
			ClientIdleTimeout: 0,
			Maps:              NewTestingMaps(t),
		}
	})
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := protocol.NewScenario(clientA).
		Receive(protocol.FilterByType(protocol.MsgTypePingResponse)).
		Run(ctx)
	require.Error(t, err)
}

func TestHandlerObjects(t *testing.T) {
	clientA, clientB, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), nil, newObjectsModule))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var link protocol.ObjectLinkResponse

	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 1},
			}
		}).
		Receive(protocol.FilterByType(protocol.MsgTypeObjectState)).
		Run(ctx)
	require.NoError(t, err)

	var state protocol.ObjectState
	err = protocol.NewScenario(clientB).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 2},
			}
		}).
		ReceiveTo(&state, protocol.FilterByType(protocol.MsgTypeObjectState)).
		Run(ctx)
	require.NoError(t, err)
	require.Empty(t, state.Objects)

	err = protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.ObjectLinkRequest{
				Request: protocol.Request{RequestID: 3},
				Box:     blockmap.NewAABox(100, 100, 110, 110),
			}
		}).
		ReceiveTo(&link,
			protocol.FilterByType(protocol.MsgTypeObjectLinkResponse),
			protocol.FilterByRequestID(3),
		).
		Run(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), link.ObjectID)

	var linked protocol.ObjectBroadcast
	var path protocol.PathQueryResponse

	err = protocol.NewScenario(clientB).
		ReceiveTo(&linked, protocol.FilterByType(protocol.MsgTypeObjectBroadcast)).
		Send(func() protocol.Payload {
			return protocol.PathQueryRequest{
				Request:   protocol.Request{RequestID: 4},
				From:      blockmap.Vec2{X: 0, Y: 0},
				To:        blockmap.Vec2{X: 200, Y: 200},
				WithCells: true,
			}
		}).
		ReceiveTo(&path,
			protocol.FilterByType(protocol.MsgTypePathQueryResponse),
			protocol.FilterByRequestID(4),
		).
		Run(ctx)
	require.NoError(t, err)

	require.Equal(t, protocol.ActionLink, linked.Action)
	require.Equal(t, link.ObjectID, linked.Object.ID)
	require.Equal(t, []uint32{link.ObjectID}, path.ObjectIDs)
	require.Len(t, path.Cells, 4)

	clientA.Close()

	var unlinked protocol.ObjectBroadcast
	err = protocol.NewScenario(clientB).
		ReceiveTo(&unlinked, protocol.FilterByType(protocol.MsgTypeObjectBroadcast)).
		Run(ctx)
	require.NoError(t, err)
	require.Equal(t, protocol.ActionUnlink, unlinked.Action)
	require.Equal(t, link.ObjectID, unlinked.Object.ID)
}

func TestHandlerLines(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), nil, newObjectsModule, newLinesModule))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var state protocol.LineState
	var sight protocol.LineOfSightResponse
	var debug protocol.DebugInfoResponse

	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 1},
				MapName: "small",
			}
		}).
		ReceiveTo(&state, protocol.FilterByType(protocol.MsgTypeLineState)).
		Send(func() protocol.Payload {
			return protocol.LineOfSightRequest{
				Request: protocol.Request{RequestID: 2},
				From:    blockmap.Vec2{X: 100, Y: 500},
				To:      blockmap.Vec2{X: 900, Y: 500},
			}
		}).
		ReceiveTo(&sight,
			protocol.FilterByType(protocol.MsgTypeLineOfSightResponse),
			protocol.FilterByRequestID(2),
		).
		Send(func() protocol.Payload {
			return protocol.DebugInfoRequest{
				Request: protocol.Request{RequestID: 3},
				Module:  "lines",
			}
		}).
		ReceiveTo(&debug,
			protocol.FilterByType(protocol.MsgTypeDebugInfoResponse),
			protocol.FilterByRequestID(3),
		).
		Run(ctx)
	require.NoError(t, err)

	require.Len(t, state.Lines, 1)
	require.False(t, sight.Visible)
	require.Equal(t, state.Lines[0].ID, sight.LineID)
	require.Equal(t, &blockmap.Vec2{X: 500, Y: 500}, sight.Hit)
	require.Equal(t, "lines", debug.Module)
	require.Equal(t, blockmap.Cell{X: 16, Y: 16}, debug.Info.Dimensions)
}
