// Package protocol defines the JSON messages exchanged with blockmap clients
// over WebSocket connections.
package protocol

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// MsgType identifies the payload carried by a message.
type MsgType string

// Payload is the data carried by a message.
type Payload interface {
	MsgType() MsgType
}

// Msg is a message envelope. Data is decoded lazily with DataTo.
type Msg struct {
	Type MsgType         `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MsgFromPayload wraps the given payload into a message.
func MsgFromPayload(p Payload) (Msg, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Msg{}, errors.New("encoding payload failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", p.MsgType()).
			Wrap(err)
	}

	return Msg{
		Type: p.MsgType(),
		Data: data,
	}, nil
}

// DataTo decodes the message data into v.
func (m Msg) DataTo(v any) error {
	if len(m.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeMsgDecode).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// ResponseSender sends messages to a client.
type ResponseSender interface {
	// Encodes and sends a payload.
	Send(Payload)

	// Sends an already encoded message.
	SendMsg(Msg)
}

// Sender writes a message to a connection and returns the number of bytes
// written.
type Sender func(Msg) (int, error)

// Receiver reads a message from a connection and returns the number of bytes
// read.
type Receiver func() (Msg, int, error)

// Send writes a message as a text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

// SendPayload wraps and writes a payload.
func SendPayload(conn *websocket.Conn, p Payload) (int, error) {
	msg, err := MsgFromPayload(p)
	if err != nil {
		return 0, err
	}
	return Send(conn, msg)
}

// Receive reads a message.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(b, &msg); err != nil {
		return Msg{}, len(b), errors.New("decoding message failed").
			WithType(ErrTypeMsgDecode).
			Wrap(err)
	}
	return msg, len(b), nil
}
