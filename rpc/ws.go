package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"bloomsocial/core"
)

const (
	wsWriteTimeout = 10 * time.Second
)

// handleEventsWS streams committed event records after ?cursor=N. The backlog
// is sent first, followed by live records in sequence order.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.ledger == nil {
		http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
		return
	}
	var cursor uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// Reads are only needed to observe the peer closing the connection.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor); err != nil {
		if errors.Is(err, errSubscriptionClosed) {
			_ = conn.Close(websocket.StatusTryAgainLater, "subscriber fell behind")
			return
		}
		if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
			s.logger.Debug("event stream ended", "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

var errSubscriptionClosed = errors.New("subscription closed")

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor uint64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	backlog, live, err := s.ledger.Subscribe(ctx, cursor)
	if err != nil {
		return err
	}
	for _, rec := range backlog {
		if err := writeEventRecord(ctx, conn, rec); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-live:
			if !ok {
				return errSubscriptionClosed
			}
			if err := writeEventRecord(ctx, conn, rec); err != nil {
				return err
			}
		}
	}
}

func writeEventRecord(ctx context.Context, conn *websocket.Conn, rec core.EventRecord) error {
	data, err := json.Marshal(formatRecord(rec))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
