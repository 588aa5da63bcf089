package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/blockmap/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	mapTag      = "map"
	mapUUIDTag  = "map_uuid"
	clientIDTag = "map_client_id"
)

func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	mapName     string
	mapUUID     string
	mapClientID uint32
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)
	h.originalRequest = conn.Request()

	logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag("http_headers", h.httpHeaders()).
		Info("new client is connected")
}

func (h *handlerWithLogs) HandleMapJoin(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	previousClient := h.CurrentClient()

	if err := h.Handler.HandleMapJoin(ctx, respond, msg); err != nil {
		return err
	}

	client := h.CurrentClient()
	if client == nil || client == previousClient {
		var req protocol.MapJoinRequest
		// Check for error here is unecessary since it would never go here
		// if the request parsing failed in h.Handler.HandleMapJoin.
		msg.DataTo(&req)

		logs.WithTag(logs.ClientIDTag, h.GetClientID()).
			WithTag(mapTag, req.MapName).
			WithTag("request_id", req.RequestID).
			Info("client failed to join a map")
		return nil
	}

	h.mapName = h.CurrentMap().Name()
	h.mapUUID = h.CurrentMap().MapUUID
	h.mapClientID = client.ID

	logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag(mapTag, h.mapName).
		WithTag(mapUUIDTag, h.mapUUID).
		WithTag(clientIDTag, h.mapClientID).
		Info("client joined a map")
	return nil
}

func (h *handlerWithLogs) HandleMapReset(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	if err := h.Handler.HandleMapReset(ctx, respond, msg); err != nil {
		return err
	}

	logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag(mapTag, h.mapName).
		WithTag(mapUUIDTag, h.mapUUID).
		WithTag(clientIDTag, h.mapClientID).
		Info("map reset requested")
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	reason := ""
	if err != nil && !errors.Is(err, io.EOF) {
		reason = err.Error()
	}

	logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag(mapTag, h.mapName).
		WithTag(mapUUIDTag, h.mapUUID).
		WithTag(clientIDTag, h.mapClientID).
		WithTag("reason", reason).
		Info("client disconnected")
}

func (h *handlerWithLogs) Receiver() protocol.Receiver {
	receive := h.Handler.Receiver()

	return func() (protocol.Msg, int, error) {
		msg, n, err := receive()
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag(mapTag, h.mapName).
				WithTag(mapUUIDTag, h.mapUUID).
				WithTag(clientIDTag, h.mapClientID).
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag(mapTag, h.mapName).
				WithTag(mapUUIDTag, h.mapUUID).
				WithTag(clientIDTag, h.mapClientID).
				WithTag("msg_type", msg.TypeString()).
				Debug("message received")
			h.incCounter(msg.TypeString())
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() protocol.Sender {
	sender := h.Handler.Sender()

	return func(msg protocol.Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := sender(msg)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag(mapTag, h.mapName).
				WithTag(mapUUIDTag, h.mapUUID).
				WithTag(clientIDTag, h.mapClientID).
				WithTag("msg_type", msgType).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag(mapTag, h.mapName).
				WithTag(mapUUIDTag, h.mapUUID).
				WithTag(clientIDTag, h.mapClientID).
				WithTag("msg_type", msgType).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) httpHeaders() any {
	req := h.originalRequest
	if req == nil {
		return nil
	}

	return struct {
		UserAgent     string `json:"user_agent,omitempty"`
		XForwardedFor string `json:"x_forwarded_for,omitempty"`
	}{
		UserAgent:     req.UserAgent(),
		XForwardedFor: req.Header.Get("X-Forwarded-For"),
	}
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag(mapTag, h.mapName).
		WithTag(mapUUIDTag, h.mapUUID).
		WithTag(clientIDTag, h.mapClientID).
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
