package protocol

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

// Filter reports whether a received message is the one a scenario waits for.
type Filter func(Msg) bool

// FilterByType matches messages of the given type.
func FilterByType(t MsgType) Filter {
	return func(msg Msg) bool {
		return msg.Type == t
	}
}

// FilterByRequestID matches responses to the given request.
func FilterByRequestID(id uint32) Filter {
	return func(msg Msg) bool {
		var res struct {
			RequestID uint32 `json:"request_id"`
		}
		if err := msg.DataTo(&res); err != nil {
			return false
		}
		return res.RequestID == id
	}
}

// Scenario is a sequence of messages sent and expected on a client
// connection.
type Scenario struct {
	conn  *websocket.Conn
	steps []func(context.Context) error
}

func NewScenario(conn *websocket.Conn) *Scenario {
	return &Scenario{conn: conn}
}

// Send appends a step that sends the payload returned by newPayload.
func (s *Scenario) Send(newPayload func() Payload) *Scenario {
	s.steps = append(s.steps, func(ctx context.Context) error {
		p := newPayload()
		if _, err := SendPayload(s.conn, p); err != nil {
			return errors.New("sending scenario message failed").
				WithTag("msg_type", p.MsgType()).
				Wrap(err)
		}
		return nil
	})
	return s
}

// Receive appends a step that waits for a message matching every filter.
// Other messages are discarded.
func (s *Scenario) Receive(filters ...Filter) *Scenario {
	return s.ReceiveTo(nil, filters...)
}

// ReceiveTo is like Receive and decodes the matching message data into v.
func (s *Scenario) ReceiveTo(v any, filters ...Filter) *Scenario {
	s.steps = append(s.steps, func(ctx context.Context) error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			msg, _, err := Receive(s.conn)
			if err != nil {
				return errors.New("receiving scenario message failed").Wrap(err)
			}

			if !matches(msg, filters) {
				continue
			}

			if v != nil {
				return msg.DataTo(v)
			}
			return nil
		}
	})
	return s
}

// Run executes the steps in order. The connection read deadline follows the
// context deadline.
func (s *Scenario) Run(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetReadDeadline(deadline)
	}

	for i, step := range s.steps {
		if err := step(ctx); err != nil {
			return errors.New("scenario step failed").
				WithTag("step", i).
				Wrap(err)
		}
	}
	return nil
}

func matches(msg Msg, filters []Filter) bool {
	for _, f := range filters {
		if !f(msg) {
			return false
		}
	}
	return true
}
