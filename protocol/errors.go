package protocol

import "github.com/aukilabs/go-tooling/pkg/errors"

const (
	ErrTypeMsgEncode    = "msg_encode_error"
	ErrTypeMsgDecode    = "msg_decode_error"
	ErrTypeMsgSkip      = "msg_skip"
	ErrTypeMapNotJoined = "map_not_joined"
	ErrTypeMapNotFound  = "map_not_found"
	ErrTypeBadRequest   = "bad_request"
)

// ErrModuleMsgSkip is returned by modules that do not handle a message.
var ErrModuleMsgSkip = errors.New("module message skipped").WithType(ErrTypeMsgSkip)

// ErrorCode is the reason reported to a client in an ErrorResponse.
type ErrorCode string

const (
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeForbidden           ErrorCode = "forbidden"
	ErrorCodeMapAlreadyJoined    ErrorCode = "map_already_joined"
	ErrorCodeOutOfBounds         ErrorCode = "out_of_bounds"
	ErrorCodeFeatureDisabled     ErrorCode = "feature_disabled"
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
)
