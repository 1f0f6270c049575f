package rpc

import (
	"encoding/hex"
	"net/http"

	"bloomsocial/core"
	"bloomsocial/core/types"
)

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

type ledgerEventsParams struct {
	Cursor uint64 `json:"cursor"`
	Limit  int    `json:"limit,omitempty" validate:"gte=0,lte=1000"`
}

type eventRecordResult struct {
	Sequence   uint64            `json:"sequence"`
	Timestamp  int64             `json:"timestamp"`
	Digest     string            `json:"digest"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type ledgerEventsResult struct {
	Records []eventRecordResult `json:"records"`
	Head    uint64              `json:"head"`
	Next    uint64              `json:"next"`
}

func formatRecord(rec core.EventRecord) eventRecordResult {
	out := eventRecordResult{
		Sequence:  rec.Sequence,
		Timestamp: rec.Timestamp,
		Digest:    "0x" + hex.EncodeToString(rec.Digest[:]),
	}
	if rec.Event != nil {
		out.Type = rec.Event.Type
		out.Attributes = rec.Event.Attributes
	}
	return out
}

func formatRecords(records []types.EventRecord) []eventRecordResult {
	out := make([]eventRecordResult, 0, len(records))
	for _, rec := range records {
		out = append(out, formatRecord(rec))
	}
	return out
}

func (s *Server) handleLedgerEvents(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	params := ledgerEventsParams{}
	if len(req.Params) > 0 {
		if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}
	records, err := s.ledger.Events(params.Cursor, limit)
	if err != nil {
		return nil, ledgerError("failed to load events", err)
	}
	head, err := s.ledger.EventHead()
	if err != nil {
		return nil, ledgerError("failed to load event head", err)
	}
	next := params.Cursor
	if len(records) > 0 {
		next = records[len(records)-1].Sequence
	}
	return ledgerEventsResult{Records: formatRecords(records), Head: head, Next: next}, nil
}
