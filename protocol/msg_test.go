package protocol

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestMsgFromPayload(t *testing.T) {
	msg, err := MsgFromPayload(ObjectLinkRequest{
		Request: Request{RequestID: 42},
		Box:     blockmap.NewAABox(1, 2, 3, 4),
	})
	require.NoError(t, err)
	require.Equal(t, MsgTypeObjectLinkRequest, msg.Type)
	require.Equal(t, "object_link_request", msg.TypeString())
	require.Contains(t, string(msg.Data), `"request_id":42`)
	require.Contains(t, string(msg.Data), `"min":{"x":1,"y":2}`)

	var req ObjectLinkRequest
	require.NoError(t, msg.DataTo(&req))
	require.Equal(t, uint32(42), req.RequestID)
	require.Equal(t, blockmap.NewAABox(1, 2, 3, 4), req.Box)
}

func TestMsgDataTo(t *testing.T) {
	t.Run("empty data", func(t *testing.T) {
		var req PingRequest
		require.NoError(t, Msg{Type: MsgTypePingRequest}.DataTo(&req))
		require.Zero(t, req.RequestID)
	})

	t.Run("invalid data", func(t *testing.T) {
		var req PingRequest
		err := Msg{Type: MsgTypePingRequest, Data: []byte(`{"request_id":"x"}`)}.DataTo(&req)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeMsgDecode))
	})

	t.Run("unknown type string", func(t *testing.T) {
		require.Equal(t, "unknown", Msg{}.TypeString())
	})
}

func TestFilters(t *testing.T) {
	msg, err := MsgFromPayload(PingResponse{RequestID: 7})
	require.NoError(t, err)

	require.True(t, FilterByType(MsgTypePingResponse)(msg))
	require.False(t, FilterByType(MsgTypePingRequest)(msg))
	require.True(t, FilterByRequestID(7)(msg))
	require.False(t, FilterByRequestID(8)(msg))
}

func TestScenario(t *testing.T) {
	server := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		for {
			msg, _, err := Receive(conn)
			if err != nil {
				return
			}

			var req PingRequest
			if err := msg.DataTo(&req); err != nil {
				return
			}

			SendPayload(conn, MapState{Timestamp: time.Now()})
			SendPayload(conn, PingResponse{
				RequestID: req.RequestID,
				Timestamp: time.Now(),
			})
		}
	}))
	defer server.Close()

	conn, err := websocket.Dial(strings.ReplaceAll(server.URL, "http://", "ws://"), "", "http://localhost")
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var res PingResponse
	err = NewScenario(conn).
		Send(func() Payload {
			return PingRequest{Request: Request{RequestID: 3}}
		}).
		ReceiveTo(&res,
			FilterByType(MsgTypePingResponse),
			FilterByRequestID(3),
		).
		Run(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(3), res.RequestID)
}
