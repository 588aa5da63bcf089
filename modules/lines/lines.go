// Package lines implements the module that manages the wall segments of a map
// and answers line of sight queries against them.
package lines

import (
	"context"
	"time"

	"github.com/aukilabs/blockmap/featureflag"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/blockmap/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const moduleName = "lines"

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

	case protocol.MsgTypeLineAddRequest:
		err = m.handleAdd(ctx, respond, msg)

	case protocol.MsgTypeLineRemoveRequest:
		err = m.handleRemove(ctx, respond, msg)

	case protocol.MsgTypeLineOfSightRequest:
		err = m.handleLineOfSight(ctx, respond, msg)

	case protocol.MsgTypeDebugInfoRequest:
		err = m.handleDebugInfo(ctx, respond, msg)

	default:
		err = protocol.ErrModuleMsgSkip
	}

	return err
}

// HandleDisconnect removes the lines added by the leaving client.
func (m *Module) HandleDisconnect() {
	client := m.currentClient
	if client == nil || m.state == nil {
		return
	}

	now := time.Now()
	for _, line := range m.state.RemoveOwnedBy(client.ID) {
		m.FeatureFlags.IfNotSet(featureflag.FlagDisableLineBroadcast, func() {
			m.currentMap.Broadcast(client, protocol.LineBroadcast{
				Timestamp:       now,
				OriginTimestamp: now,
				Action:          protocol.ActionUnlink,
				Line:            line,
			})
		})
	}

	m.currentMap = nil
	m.currentClient = nil
	m.state = nil
}

func (m *Module) handleMapJoin(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	m.FeatureFlags.IfNotSet(featureflag.FlagDisableMapState, func() {
		respond.Send(protocol.LineState{
			Timestamp: time.Now(),
			Lines:     m.state.Lines(),
		})
	})
	return nil
}

func (m *Module) handleAdd(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.LineAddRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	if req.From == req.To {
		sendError(respond, req.Request, protocol.ErrorCodeBadRequest)
		return nil
	}

	line, ok := m.state.Add(m.currentClient.ID, req.From, req.To)
	if !ok {
		sendError(respond, req.Request, protocol.ErrorCodeOutOfBounds)
		return nil
	}

	now := time.Now()
	respond.Send(protocol.LineAddResponse{
		RequestID: req.RequestID,
		Timestamp: now,
		LineID:    line.ID,
	})

	m.FeatureFlags.IfNotSet(featureflag.FlagDisableLineBroadcast, func() {
		m.currentMap.Broadcast(m.currentClient, protocol.LineBroadcast{
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			Action:          protocol.ActionLink,
			Line:            line,
		})
	})
	return nil
}

func (m *Module) handleRemove(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.LineRemoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	line, ok := m.state.Line(req.LineID)
	if !ok {
		sendError(respond, req.Request, protocol.ErrorCodeNotFound)
		return nil
	}

	if line.Static || line.OwnerID != m.currentClient.ID {
		sendError(respond, req.Request, protocol.ErrorCodeForbidden)
		return nil
	}

	if _, ok := m.state.Remove(line.ID); !ok {
		sendError(respond, req.Request, protocol.ErrorCodeNotFound)
		return nil
	}

	now := time.Now()
	respond.Send(protocol.LineRemoveResponse{
		RequestID: req.RequestID,
		Timestamp: now,
	})

	m.FeatureFlags.IfNotSet(featureflag.FlagDisableLineBroadcast, func() {
		m.currentMap.Broadcast(m.currentClient, protocol.LineBroadcast{
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			Action:          protocol.ActionUnlink,
			Line:            line,
		})
	})
	return nil
}

func (m *Module) handleLineOfSight(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.LineOfSightRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	if !m.currentMap.Def.Bounds.Contains(req.From) {
		sendError(respond, req.Request, protocol.ErrorCodeOutOfBounds)
		return nil
	}

	sight := m.state.LineOfSight(req.From, req.To)

	res := protocol.LineOfSightResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
		Visible:   sight.Visible,
	}
	if !sight.Visible {
		hit := sight.Hit
		res.LineID = sight.Line.ID
		res.Hit = &hit
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

func sendError(respond protocol.ResponseSender, req protocol.Request, code protocol.ErrorCode) {
	respond.Send(protocol.ErrorResponse{
		RequestID: req.RequestID,
		Timestamp: time.Now(),
		Code:      code,
	})
}
