// Package objects implements the module that lets clients link boxes into the
// blockmap of their map and query them by box or by path.
package objects

import (
	"context"
	"time"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/featureflag"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/blockmap/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const moduleName = "objects"

type Module struct {
	FeatureFlags featureflag.FeatureFlag

	currentMap    *models.Map
	currentClient *models.Client
	state         *State
}

func (m *Module) Name() string {
	return moduleName
}

func (m *Module) Init(mp *models.Map, c *models.Client) error {
	state, err := mp.LoadOrStoreModuleState(m.Name(), func() (any, error) {
		return NewState(mp.Def)
	})
	if err != nil {
		return err
	}

	m.currentMap = mp
	m.currentClient = c
	m.state = state.(*State)
	return nil
}

func (m *Module) HandleMsg(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var err error

	switch msg.Type {
	case protocol.MsgTypeMapJoinRequest:
		err = m.handleMapJoin(ctx, respond, msg)

	case protocol.MsgTypeObjectLinkRequest:
		err = m.handleLink(ctx, respond, msg)

	case protocol.MsgTypeObjectMoveRequest:
		err = m.handleMove(ctx, respond, msg)

	case protocol.MsgTypeObjectUnlinkRequest:
		err = m.handleUnlink(ctx, respond, msg)

	case protocol.MsgTypeBoxQueryRequest:
		err = m.handleBoxQuery(ctx, respond, msg)

	case protocol.MsgTypePathQueryRequest:
		err = m.handlePathQuery(ctx, respond, msg)

	case protocol.MsgTypeDebugInfoRequest:
		err = m.handleDebugInfo(ctx, respond, msg)

	default:
		err = protocol.ErrModuleMsgSkip
	}

	return err
}

// HandleDisconnect unlinks the objects the leaving client linked that do not
// persist.
func (m *Module) HandleDisconnect() {
	client := m.currentClient
	if client == nil || m.state == nil {
		return
	}

	now := time.Now()
	for _, obj := range m.state.RemoveOwnedBy(client.ID, client.ObjectIDs()) {
		client.RemoveObject(obj.ID)

		m.FeatureFlags.IfNotSet(featureflag.FlagDisableObjectUnlinkBroadcast, func() {
			m.currentMap.Broadcast(client, protocol.ObjectBroadcast{
				Timestamp:       now,
				OriginTimestamp: now,
				Action:          protocol.ActionUnlink,
				Object:          obj,
			})
		})
	}
	client.ClearObjects()

	m.currentMap = nil
	m.currentClient = nil
	m.state = nil
}

func (m *Module) handleMapJoin(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	m.FeatureFlags.IfNotSet(featureflag.FlagDisableMapState, func() {
		respond.Send(protocol.ObjectState{
			Timestamp: time.Now(),
			Objects:   m.state.Objects(),
		})
	})
	return nil
}

func (m *Module) handleLink(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.ObjectLinkRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	if code, ok := m.checkBox(req.Box); !ok {
		sendError(respond, req.Request, code)
		return nil
	}

	obj := m.state.Link(m.currentClient.ID, req.Box, req.Persist)
	m.currentClient.AddObject(obj.ID)

	now := time.Now()
	respond.Send(protocol.ObjectLinkResponse{
		RequestID: req.RequestID,
		Timestamp: now,
		ObjectID:  obj.ID,
	})

	m.FeatureFlags.IfNotSet(featureflag.FlagDisableObjectLinkBroadcast, func() {
		m.currentMap.Broadcast(m.currentClient, protocol.ObjectBroadcast{
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			Action:          protocol.ActionLink,
			Object:          obj,
		})
	})
	return nil
}

func (m *Module) handleMove(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.ObjectMoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	if code, ok := m.checkOwner(req.ObjectID); !ok {
		sendError(respond, req.Request, code)
		return nil
	}

	if code, ok := m.checkBox(req.Box); !ok {
		sendError(respond, req.Request, code)
		return nil
	}

	obj, ok := m.state.Move(req.ObjectID, req.Box)
	if !ok {
		sendError(respond, req.Request, protocol.ErrorCodeNotFound)
		return nil
	}

	now := time.Now()
	respond.Send(protocol.ObjectMoveResponse{
		RequestID: req.RequestID,
		Timestamp: now,
	})

	m.FeatureFlags.IfNotSet(featureflag.FlagDisableObjectMoveBroadcast, func() {
		m.currentMap.Broadcast(m.currentClient, protocol.ObjectBroadcast{
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			Action:          protocol.ActionMove,
			Object:          obj,
		})
	})
	return nil
}

func (m *Module) handleUnlink(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.ObjectUnlinkRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	if code, ok := m.checkOwner(req.ObjectID); !ok {
		sendError(respond, req.Request, code)
		return nil
	}

	obj, ok := m.state.Unlink(req.ObjectID)
	if !ok {
		sendError(respond, req.Request, protocol.ErrorCodeNotFound)
		return nil
	}
	m.currentClient.RemoveObject(obj.ID)

	now := time.Now()
	respond.Send(protocol.ObjectUnlinkResponse{
		RequestID: req.RequestID,
		Timestamp: now,
	})

	m.FeatureFlags.IfNotSet(featureflag.FlagDisableObjectUnlinkBroadcast, func() {
		m.currentMap.Broadcast(m.currentClient, protocol.ObjectBroadcast{
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			Action:          protocol.ActionUnlink,
			Object:          obj,
		})
	})
	return nil
}

func (m *Module) handleBoxQuery(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.BoxQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	if req.Box.Min.X > req.Box.Max.X || req.Box.Min.Y > req.Box.Max.Y {
		sendError(respond, req.Request, protocol.ErrorCodeBadRequest)
		return nil
	}

	respond.Send(protocol.BoxQueryResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
		ObjectIDs: m.state.QueryBox(req.Box),
	})
	return nil
}

func (m *Module) handlePathQuery(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.PathQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	if m.FeatureFlags.IsSet(featureflag.FlagDisablePathQuery) {
		sendError(respond, req.Request, protocol.ErrorCodeFeatureDisabled)
		return nil
	}

	if req.Limit < 0 {
		sendError(respond, req.Request, protocol.ErrorCodeBadRequest)
		return nil
	}

	res := protocol.PathQueryResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
		ObjectIDs: m.state.QueryPath(req.From, req.To, req.Limit),
	}
	if req.WithCells {
		res.Cells = m.state.PathCells(req.From, req.To)
	}

	respond.Send(res)
	return nil
}

func (m *Module) handleDebugInfo(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.DebugInfoRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if req.Module != m.Name() {
		return protocol.ErrModuleMsgSkip
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	if m.FeatureFlags.IsSet(featureflag.FlagDisableDebugInfo) {
		sendError(respond, req.Request, protocol.ErrorCodeFeatureDisabled)
		return nil
	}

	respond.Send(protocol.DebugInfoResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
		Module:    m.Name(),
		Info:      m.state.DebugInfo(),
	})
	return nil
}

func (m *Module) checkJoined(msg protocol.Msg) error {
	if m.currentMap == nil || m.currentClient == nil || m.state == nil {
		return errors.New("map not joined").
			WithType(protocol.ErrTypeMapNotJoined).
			WithTag("module", m.Name()).
			WithTag("msg_type", msg.Type)
	}
	return nil
}

func (m *Module) checkOwner(id uint32) (protocol.ErrorCode, bool) {
	obj, ok := m.state.Object(id)
	if !ok {
		return protocol.ErrorCodeNotFound, false
	}

	if obj.OwnerID != m.currentClient.ID {
		return protocol.ErrorCodeForbidden, false
	}
	return "", true
}

// checkBox rejects inverted boxes and boxes that do not overlap the map.
func (m *Module) checkBox(box blockmap.AABox) (protocol.ErrorCode, bool) {
	if box.Min.X > box.Max.X || box.Min.Y > box.Max.Y {
		return protocol.ErrorCodeBadRequest, false
	}

	bounds := m.currentMap.Def.Bounds
	if box.Max.X < bounds.Min.X || box.Min.X > bounds.Max.X ||
		box.Max.Y < bounds.Min.Y || box.Min.Y > bounds.Max.Y {
		return protocol.ErrorCodeOutOfBounds, false
	}
	return "", true
}

func sendError(respond protocol.ResponseSender, req protocol.Request, code protocol.ErrorCode) {
	respond.Send(protocol.ErrorResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
		Code:      code,
	})
}
