package indexer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"bloomsocial/core/types"
	"bloomsocial/observability/metrics"
)

const streamReadLimit = 1 << 20

// streamRecord is the JSON form of an event record on /ws/events.
type streamRecord struct {
	Sequence   uint64            `json:"sequence"`
	Timestamp  int64             `json:"timestamp"`
	Digest     string            `json:"digest"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (r streamRecord) eventRecord() (types.EventRecord, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(r.Digest, "0x"))
	if err != nil || len(raw) != 32 {
		return types.EventRecord{}, fmt.Errorf("indexer: record %d has malformed digest %q", r.Sequence, r.Digest)
	}
	rec := types.EventRecord{
		Sequence:  r.Sequence,
		Timestamp: r.Timestamp,
		Event:     &types.Event{Type: r.Type, Attributes: r.Attributes},
	}
	copy(rec.Digest[:], raw)
	if rec.Event.Attributes == nil {
		rec.Event.Attributes = map[string]string{}
	}
	return rec, nil
}

// Subscriber follows the node's event stream and feeds every record to the
// projector, reconnecting with exponential backoff from the stored cursor.
type Subscriber struct {
	nodeURL   string
	projector *Projector
	backoff   BackoffConfig
	log       *slog.Logger
	metrics   *metrics.IndexerMetrics
}

func NewSubscriber(nodeURL string, projector *Projector, backoff BackoffConfig, log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	if backoff.Initial <= 0 {
		backoff.Initial = 500 * time.Millisecond
	}
	if backoff.Max < backoff.Initial {
		backoff.Max = backoff.Initial
	}
	return &Subscriber{
		nodeURL:   nodeURL,
		projector: projector,
		backoff:   backoff,
		log:       log,
		metrics:   metrics.Indexer(),
	}
}

// Run consumes the stream until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	delay := s.backoff.Initial
	for {
		progressed, err := s.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if progressed {
			delay = s.backoff.Initial
		}
		level := slog.LevelWarn
		if errors.Is(err, ErrDigestMismatch) || errors.Is(err, ErrSequenceGap) {
			level = slog.LevelError
		}
		s.log.Log(ctx, level, "event stream interrupted", slog.Any("error", err), slog.Duration("retry_in", delay))
		s.metrics.RecordReconnect()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		delay *= 2
		if delay > s.backoff.Max {
			delay = s.backoff.Max
		}
	}
}

func (s *Subscriber) streamURL(cursor uint64) (string, error) {
	u, err := url.Parse(s.nodeURL)
	if err != nil {
		return "", fmt.Errorf("indexer: parse node url: %w", err)
	}
	query := u.Query()
	query.Set("cursor", strconv.FormatUint(cursor, 10))
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// consume runs one connection. The boolean reports whether any record was
// applied before the connection ended.
func (s *Subscriber) consume(ctx context.Context) (bool, error) {
	cursor, _, err := s.projector.Cursor(ctx)
	if err != nil {
		return false, err
	}
	target, err := s.streamURL(cursor)
	if err != nil {
		return false, err
	}
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return false, fmt.Errorf("indexer: dial %s: %w", s.nodeURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "indexer stopping")
	conn.SetReadLimit(streamReadLimit)
	s.log.Info("event stream connected", slog.Uint64("cursor", cursor))

	progressed := false
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return progressed, err
		}
		var wire streamRecord
		if err := json.Unmarshal(data, &wire); err != nil {
			return progressed, fmt.Errorf("indexer: decode record: %w", err)
		}
		rec, err := wire.eventRecord()
		if err != nil {
			return progressed, err
		}
		if err := s.projector.Apply(ctx, rec); err != nil {
			return progressed, err
		}
		progressed = true
	}
}
