package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/blockmap/featureflag"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/blockmap/modules"
	"github.com/aukilabs/blockmap/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the HTTP header that carries the id a client identifies
// itself with. A random id is used when it is missing.
const HeaderClientID = "X-Blockmap-Client-ID"

// RealtimeHandler represents a service that manages a client connection to
// the loaded maps and relays its changes to the other clients of its map in
// realtime.
type RealtimeHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains the loaded maps.
	Maps *models.MapStore

	// The modules that implement the map features.
	Modules []modules.Module

	FeatureFlags featureflag.FeatureFlag

	conn          *websocket.Conn
	currentMap    *models.Map
	currentClient *models.Client

	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.PingRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(protocol.PingResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
	})
	return nil
}

func (h *RealtimeHandler) HandleMapJoin(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.MapJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	mapName := req.MapName
	if mapName == "" {
		mapName = models.DefaultMapName
	}

	if h.currentMap != nil && h.currentMap.Name() == mapName {
		sendError(respond, req.Request, protocol.ErrorCodeMapAlreadyJoined)
		return nil
	}

	m, ok := h.Maps.GetByName(mapName)
	if !ok {
		sendError(respond, req.Request, protocol.ErrorCodeNotFound)
		return nil
	}

	if h.currentClient != nil {
		h.leaveMap()
	}

	client := &models.Client{
		ID:        m.NewClientID(),
		Responder: respond,
	}

	for _, module := range h.Modules {
		if err := module.Init(m, client); err != nil {
			logs.WithTag(logs.ClientIDTag, h.clientID).
				WithTag("map", mapName).
				WithTag("module", module.Name()).
				Error(err)

			for _, module := range h.Modules {
				module.HandleDisconnect()
			}
			m.ReleaseClientID(client.ID)
			sendError(respond, req.Request, protocol.ErrorCodeInternalServerError)
			return nil
		}
	}

	m.AddClient(client)
	h.currentMap = m
	h.currentClient = client

	respond.Send(protocol.MapJoinResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
		MapName:   m.Name(),
		MapUUID:   m.MapUUID,
		ClientID:  client.ID,
		Bounds:    m.Def.Bounds,
		CellSize:  m.Def.CellSize,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableMapState, func() {
		respond.Send(protocol.MapState{
			Timestamp: time.Now(),
			ClientIDs: m.ClientIDs(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleMapReset(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.MapResetRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	m := h.currentMap
	client := h.currentClient
	if m == nil || client == nil {
		return errors.New("map not joined").
			WithType(protocol.ErrTypeMapNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if h.FeatureFlags.IsSet(featureflag.FlagDisableMapReset) {
		sendError(respond, req.Request, protocol.ErrorCodeFeatureDisabled)
		return nil
	}

	m.Reset()

	now := time.Now()
	respond.Send(protocol.MapResetResponse{
		RequestID: req.RequestID,
		Timestamp: now,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableMapResetBroadcast, func() {
		m.Broadcast(client, protocol.MapResetBroadcast{
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			ClientID:        client.ID,
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentClient != nil {
		h.leaveMap()
	}
}

func (h *RealtimeHandler) HandleWithModule(ctx context.Context, m modules.Module, respond protocol.ResponseSender, msg protocol.Msg) error {
	if h.CurrentClient() == nil || h.CurrentMap() == nil {
		return protocol.ErrModuleMsgSkip
	}

	err := m.HandleMsg(ctx, respond, msg)
	if errors.IsType(err, protocol.ErrTypeMsgSkip) {
		return err
	}
	if err != nil {
		return errors.New("handling message with module failed").
			WithTag("module", m.Name()).
			Wrap(err)
	}
	return nil
}

func (h *RealtimeHandler) Receiver() protocol.Receiver {
	return func() (protocol.Msg, int, error) {
		return protocol.Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() protocol.Sender {
	return func(msg protocol.Msg) (int, error) {
		return protocol.Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetMaps() *models.MapStore {
	return h.Maps
}

func (h *RealtimeHandler) GetModules() []modules.Module {
	return h.Modules
}

func (h *RealtimeHandler) CurrentMap() *models.Map {
	return h.currentMap
}

func (h *RealtimeHandler) CurrentClient() *models.Client {
	return h.currentClient
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

func (h *RealtimeHandler) leaveMap() {
	m := h.currentMap
	client := h.currentClient

	if m == nil || client == nil {
		return
	}

	for _, module := range h.Modules {
		module.HandleDisconnect()
	}

	m.RemoveClient(client)

	h.currentMap = nil
	h.currentClient = nil
}

func sendError(respond protocol.ResponseSender, req protocol.Request, code protocol.ErrorCode) {
	respond.Send(protocol.ErrorResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
		Code:      code,
	})
}
