package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/blockmap/featureflag"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/blockmap/modules"
	"github.com/aukilabs/blockmap/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

type testModule struct {
	mutex         sync.Mutex
	currentMap    *models.Map
	currentClient *models.Client
	handledMsgs   []protocol.MsgType
	skippedMsgs   []protocol.MsgType
	onDisconnect  func()
}

func (m *testModule) Name() string {
	return "test-module"
}

func (m *testModule) Init(mp *models.Map, c *models.Client) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.currentMap = mp
	m.currentClient = c
	return nil
}

func (m *testModule) HandleMsg(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch msg.Type {
	case protocol.MsgTypeBoxQueryRequest:
		m.skippedMsgs = append(m.skippedMsgs, msg.Type)
		return protocol.ErrModuleMsgSkip

	default:
		m.handledMsgs = append(m.handledMsgs, msg.Type)
		return nil
	}
}

func (m *testModule) HandleDisconnect() {
	if m.onDisconnect != nil {
		m.onDisconnect()
	}
}

// failingModule fails the given number of initializations, then behaves like
// testModule.
type failingModule struct {
	testModule
	failures int
}

func (m *failingModule) Init(mp *models.Map, c *models.Client) error {
	m.mutex.Lock()
	if m.failures > 0 {
		m.failures--
		m.mutex.Unlock()
		return errors.New("init failed")
	}
	m.mutex.Unlock()

	return m.testModule.Init(mp, c)
}

func TestModuleInitFailure(t *testing.T) {
	mod := &failingModule{failures: 1}

	clientA, _, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), nil, func(featureflag.FeatureFlag) modules.Module {
		return mod
	}))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var errRes protocol.ErrorResponse
	var join protocol.MapJoinResponse

	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 1},
				MapName: "small",
			}
		}).
		ReceiveTo(&errRes,
			protocol.FilterByType(protocol.MsgTypeErrorResponse),
			protocol.FilterByRequestID(1),
		).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{RequestID: 2},
				MapName: "small",
			}
		}).
		ReceiveTo(&join,
			protocol.FilterByType(protocol.MsgTypeMapJoinResponse),
			protocol.FilterByRequestID(2),
		).
		Run(ctx)
	require.NoError(t, err)

	require.Equal(t, protocol.ErrorCodeInternalServerError, errRes.Code)
	require.Equal(t, "small", join.MapName)
	require.Equal(t, uint32(1), join.ClientID)
}

func TestModule(t *testing.T) {
	var wg sync.WaitGroup
	var modA *testModule

	clientA, _, close := NewTestingEnv(t, newTestHandler(NewTestingMaps(t), nil, func(featureflag.FeatureFlag) modules.Module {
		if modA == nil {
			wg.Add(1)
			modA = &testModule{
				onDisconnect: func() {
					wg.Done()
				},
			}
		}
		return modA
	}))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := protocol.NewScenario(clientA).
		Send(func() protocol.Payload {
			return protocol.MapJoinRequest{
				Request: protocol.Request{
					RequestID: 1,
					Timestamp: time.Now(),
				},
			}
		}).
		Receive(
			protocol.FilterByRequestID(1),
			protocol.FilterByType(protocol.MsgTypeMapJoinResponse),
		).
		Receive(
			protocol.FilterByType(protocol.MsgTypeMapState),
		).
		Send(func() protocol.Payload {
			return protocol.BoxQueryRequest{
				Request: protocol.Request{
					RequestID: 2,
					Timestamp: time.Now(),
				},
			}
		}).
		Send(func() protocol.Payload {
			return protocol.PingRequest{
				Request: protocol.Request{
					RequestID: 3,
					Timestamp: time.Now(),
				},
			}
		}).
		Receive(
			protocol.FilterByRequestID(3),
			protocol.FilterByType(protocol.MsgTypePingResponse),
		).
		Run(ctx)
	require.NoError(t, err)

	clientA.Close()

	wg.Wait()

	modA.mutex.Lock()
	defer modA.mutex.Unlock()

	require.NotNil(t, modA.currentMap)
	require.NotNil(t, modA.currentClient)
	require.Equal(t, []protocol.MsgType{
		protocol.MsgTypeMapJoinRequest,
		protocol.MsgTypePingRequest,
	}, modA.handledMsgs)
	require.Equal(t, []protocol.MsgType{protocol.MsgTypeBoxQueryRequest}, modA.skippedMsgs)
}
