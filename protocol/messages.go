package protocol

import (
	"time"

	"github.com/aukilabs/blockmap/blockmap"
)

const (
	MsgTypePingRequest          MsgType = "ping_request"
	MsgTypePingResponse         MsgType = "ping_response"
	MsgTypeErrorResponse        MsgType = "error_response"
	MsgTypeMapJoinRequest       MsgType = "map_join_request"
	MsgTypeMapJoinResponse      MsgType = "map_join_response"
	MsgTypeMapState             MsgType = "map_state"
	MsgTypeMapResetRequest      MsgType = "map_reset_request"
	MsgTypeMapResetResponse     MsgType = "map_reset_response"
	MsgTypeMapResetBroadcast    MsgType = "map_reset_broadcast"
	MsgTypeObjectLinkRequest    MsgType = "object_link_request"
	MsgTypeObjectLinkResponse   MsgType = "object_link_response"
	MsgTypeObjectMoveRequest    MsgType = "object_move_request"
	MsgTypeObjectMoveResponse   MsgType = "object_move_response"
	MsgTypeObjectUnlinkRequest  MsgType = "object_unlink_request"
	MsgTypeObjectUnlinkResponse MsgType = "object_unlink_response"
	MsgTypeObjectBroadcast      MsgType = "object_broadcast"
	MsgTypeObjectState          MsgType = "object_state"
	MsgTypeBoxQueryRequest      MsgType = "box_query_request"
	MsgTypeBoxQueryResponse     MsgType = "box_query_response"
	MsgTypePathQueryRequest     MsgType = "path_query_request"
	MsgTypePathQueryResponse    MsgType = "path_query_response"
	MsgTypeLineAddRequest       MsgType = "line_add_request"
	MsgTypeLineAddResponse      MsgType = "line_add_response"
	MsgTypeLineRemoveRequest    MsgType = "line_remove_request"
	MsgTypeLineRemoveResponse   MsgType = "line_remove_response"
	MsgTypeLineBroadcast        MsgType = "line_broadcast"
	MsgTypeLineState            MsgType = "line_state"
	MsgTypeLineOfSightRequest   MsgType = "line_of_sight_request"
	MsgTypeLineOfSightResponse  MsgType = "line_of_sight_response"
	MsgTypeDebugInfoRequest     MsgType = "debug_info_request"
	MsgTypeDebugInfoResponse    MsgType = "debug_info_response"
)

// Action describes the change reported by a broadcast.
type Action string

const (
	ActionLink   Action = "link"
	ActionMove   Action = "move"
	ActionUnlink Action = "unlink"
)

// Request holds the fields common to every request.
type Request struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type PingRequest struct {
	Request
}

func (PingRequest) MsgType() MsgType { return MsgTypePingRequest }

type PingResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (PingResponse) MsgType() MsgType { return MsgTypePingResponse }

type ErrorResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Code      ErrorCode `json:"code"`
}

func (ErrorResponse) MsgType() MsgType { return MsgTypeErrorResponse }

type MapJoinRequest struct {
	Request
	MapName string `json:"map_name"`
}

func (MapJoinRequest) MsgType() MsgType { return MsgTypeMapJoinRequest }

type MapJoinResponse struct {
	RequestID uint32         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	MapName   string         `json:"map_name"`
	MapUUID   string         `json:"map_uuid"`
	ClientID  uint32         `json:"client_id"`
	Bounds    blockmap.AABox `json:"bounds"`
	CellSize  float64        `json:"cell_size"`
}

func (MapJoinResponse) MsgType() MsgType { return MsgTypeMapJoinResponse }

// MapState is sent to a client after it joined a map.
type MapState struct {
	Timestamp time.Time `json:"timestamp"`
	ClientIDs []uint32  `json:"client_ids"`
}

func (MapState) MsgType() MsgType { return MsgTypeMapState }

type MapResetRequest struct {
	Request
}

func (MapResetRequest) MsgType() MsgType { return MsgTypeMapResetRequest }

type MapResetResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (MapResetResponse) MsgType() MsgType { return MsgTypeMapResetResponse }

type MapResetBroadcast struct {
	Timestamp       time.Time `json:"timestamp"`
	OriginTimestamp time.Time `json:"origin_timestamp"`
	ClientID        uint32    `json:"client_id"`
}

func (MapResetBroadcast) MsgType() MsgType { return MsgTypeMapResetBroadcast }

// Object is a dynamic object linked into a map by its bounding box.
type Object struct {
	ID      uint32         `json:"id"`
	OwnerID uint32         `json:"owner_id"`
	Box     blockmap.AABox `json:"box"`
	Persist bool           `json:"persist,omitempty"`
}

type ObjectLinkRequest struct {
	Request
	Box     blockmap.AABox `json:"box"`
	Persist bool           `json:"persist,omitempty"`
}

func (ObjectLinkRequest) MsgType() MsgType { return MsgTypeObjectLinkRequest }

type ObjectLinkResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	ObjectID  uint32    `json:"object_id"`
}

func (ObjectLinkResponse) MsgType() MsgType { return MsgTypeObjectLinkResponse }

type ObjectMoveRequest struct {
	Request
	ObjectID uint32         `json:"object_id"`
	Box      blockmap.AABox `json:"box"`
}

func (ObjectMoveRequest) MsgType() MsgType { return MsgTypeObjectMoveRequest }

type ObjectMoveResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (ObjectMoveResponse) MsgType() MsgType { return MsgTypeObjectMoveResponse }

type ObjectUnlinkRequest struct {
	Request
	ObjectID uint32 `json:"object_id"`
}

func (ObjectUnlinkRequest) MsgType() MsgType { return MsgTypeObjectUnlinkRequest }

type ObjectUnlinkResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (ObjectUnlinkResponse) MsgType() MsgType { return MsgTypeObjectUnlinkResponse }

type ObjectBroadcast struct {
	Timestamp       time.Time `json:"timestamp"`
	OriginTimestamp time.Time `json:"origin_timestamp"`
	Action          Action    `json:"action"`
	Object          Object    `json:"object"`
}

func (ObjectBroadcast) MsgType() MsgType { return MsgTypeObjectBroadcast }

// ObjectState lists the objects of a map.
type ObjectState struct {
	Timestamp time.Time `json:"timestamp"`
	Objects   []Object  `json:"objects"`
}

func (ObjectState) MsgType() MsgType { return MsgTypeObjectState }

type BoxQueryRequest struct {
	Request
	Box blockmap.AABox `json:"box"`
}

func (BoxQueryRequest) MsgType() MsgType { return MsgTypeBoxQueryRequest }

type BoxQueryResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	ObjectIDs []uint32  `json:"object_ids"`
}

func (BoxQueryResponse) MsgType() MsgType { return MsgTypeBoxQueryResponse }

type PathQueryRequest struct {
	Request
	From blockmap.Vec2 `json:"from"`
	To   blockmap.Vec2 `json:"to"`

	// The maximum number of objects to return. Zero means no limit.
	Limit int `json:"limit,omitempty"`

	// Reports the traversed cells in the response.
	WithCells bool `json:"with_cells,omitempty"`
}

func (PathQueryRequest) MsgType() MsgType { return MsgTypePathQueryRequest }

type PathQueryResponse struct {
	RequestID uint32          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
	ObjectIDs []uint32        `json:"object_ids"`
	Cells     []blockmap.Cell `json:"cells,omitempty"`
}

func (PathQueryResponse) MsgType() MsgType { return MsgTypePathQueryResponse }

// Line is a wall segment linked into every cell it crosses.
type Line struct {
	ID      uint32        `json:"id"`
	OwnerID uint32        `json:"owner_id,omitempty"`
	From    blockmap.Vec2 `json:"from"`
	To      blockmap.Vec2 `json:"to"`
	Static  bool          `json:"static,omitempty"`
}

type LineAddRequest struct {
	Request
	From blockmap.Vec2 `json:"from"`
	To   blockmap.Vec2 `json:"to"`
}

func (LineAddRequest) MsgType() MsgType { return MsgTypeLineAddRequest }

type LineAddResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	LineID    uint32    `json:"line_id"`
}

func (LineAddResponse) MsgType() MsgType { return MsgTypeLineAddResponse }

type LineRemoveRequest struct {
	Request
	LineID uint32 `json:"line_id"`
}

func (LineRemoveRequest) MsgType() MsgType { return MsgTypeLineRemoveRequest }

type LineRemoveResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (LineRemoveResponse) MsgType() MsgType { return MsgTypeLineRemoveResponse }

type LineBroadcast struct {
	Timestamp       time.Time `json:"timestamp"`
	OriginTimestamp time.Time `json:"origin_timestamp"`
	Action          Action    `json:"action"`
	Line            Line      `json:"line"`
}

func (LineBroadcast) MsgType() MsgType { return MsgTypeLineBroadcast }

// LineState lists the lines of a map.
type LineState struct {
	Timestamp time.Time `json:"timestamp"`
	Lines     []Line    `json:"lines"`
}

func (LineState) MsgType() MsgType { return MsgTypeLineState }

type LineOfSightRequest struct {
	Request
	From blockmap.Vec2 `json:"from"`
	To   blockmap.Vec2 `json:"to"`
}

func (LineOfSightRequest) MsgType() MsgType { return MsgTypeLineOfSightRequest }

type LineOfSightResponse struct {
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Visible   bool      `json:"visible"`

	// The closest blocking line and where it is hit, when not visible.
	LineID uint32         `json:"line_id,omitempty"`
	Hit    *blockmap.Vec2 `json:"hit,omitempty"`
}

func (LineOfSightResponse) MsgType() MsgType { return MsgTypeLineOfSightResponse }

type DebugInfoRequest struct {
	Request

	// The module whose blockmap is described.
	Module string `json:"module"`
}

func (DebugInfoRequest) MsgType() MsgType { return MsgTypeDebugInfoRequest }

type DebugInfoResponse struct {
	RequestID uint32             `json:"request_id"`
	Timestamp time.Time          `json:"timestamp"`
	Module    string             `json:"module"`
	Info      blockmap.DebugInfo `json:"info"`
}

func (DebugInfoResponse) MsgType() MsgType { return MsgTypeDebugInfoResponse }

// RequestOf decodes the request fields of a message.
func RequestOf(msg Msg) (Request, error) {
	var req Request
	err := msg.DataTo(&req)
	return req, err
}
