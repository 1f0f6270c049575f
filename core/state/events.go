package state

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"bloomsocial/core/types"
)

var (
	eventHeadKey      = []byte("events/head")
	eventRecordPrefix = []byte("events/record/")
)

func eventRecordKey(seq uint64) []byte {
	buf := make([]byte, len(eventRecordPrefix)+8)
	copy(buf, eventRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(eventRecordPrefix):], seq)
	return buf
}

type storedEventHead struct {
	Sequence uint64
	Digest   [32]byte
}

type storedAttribute struct {
	Key   string
	Value string
}

type storedEventBody struct {
	Sequence   uint64
	Timestamp  uint64
	Type       string
	Attributes []storedAttribute
}

type storedEvent struct {
	Body   storedEventBody
	Digest [32]byte
}

func encodeAttributes(attrs map[string]string) []storedAttribute {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]storedAttribute, 0, len(keys))
	for _, k := range keys {
		out = append(out, storedAttribute{Key: k, Value: attrs[k]})
	}
	return out
}

func chainDigest(prev [32]byte, body *storedEventBody) ([32]byte, error) {
	encoded, err := rlp.EncodeToBytes(body)
	if err != nil {
		return [32]byte{}, err
	}
	buf := make([]byte, 0, len(prev)+len(encoded))
	buf = append(buf, prev[:]...)
	buf = append(buf, encoded...)
	return blake3.Sum256(buf), nil
}

// EventHead returns the sequence and digest of the newest event record.
func (m *Manager) EventHead() (uint64, [32]byte, error) {
	var head storedEventHead
	if _, err := m.KVGet(eventHeadKey, &head); err != nil {
		return 0, [32]byte{}, err
	}
	return head.Sequence, head.Digest, nil
}

// AppendEvents assigns consecutive sequence numbers to the supplied events and
// stages them in the log together with the new head.
func (m *Manager) AppendEvents(timestamp int64, evts []*types.Event) ([]types.EventRecord, error) {
	if len(evts) == 0 {
		return nil, nil
	}
	ts, err := toUnix(timestamp)
	if err != nil {
		return nil, err
	}
	seq, digest, err := m.EventHead()
	if err != nil {
		return nil, err
	}
	records := make([]types.EventRecord, 0, len(evts))
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		seq++
		body := storedEventBody{
			Sequence:   seq,
			Timestamp:  ts,
			Type:       evt.Type,
			Attributes: encodeAttributes(evt.Attributes),
		}
		digest, err = chainDigest(digest, &body)
		if err != nil {
			return nil, err
		}
		if err := m.KVPut(eventRecordKey(seq), &storedEvent{Body: body, Digest: digest}); err != nil {
			return nil, err
		}
		records = append(records, types.EventRecord{
			Sequence:  seq,
			Timestamp: timestamp,
			Digest:    digest,
			Event:     evt.Clone(),
		})
	}
	if err := m.KVPut(eventHeadKey, &storedEventHead{Sequence: seq, Digest: digest}); err != nil {
		return nil, err
	}
	return records, nil
}

// EventRecord loads a single record by sequence number.
func (m *Manager) EventRecord(seq uint64) (*types.EventRecord, bool, error) {
	var stored storedEvent
	ok, err := m.KVGet(eventRecordKey(seq), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	attrs := make(map[string]string, len(stored.Body.Attributes))
	for _, attr := range stored.Body.Attributes {
		attrs[attr.Key] = attr.Value
	}
	return &types.EventRecord{
		Sequence:  stored.Body.Sequence,
		Timestamp: fromUnix(stored.Body.Timestamp),
		Digest:    stored.Digest,
		Event:     &types.Event{Type: stored.Body.Type, Attributes: attrs},
	}, true, nil
}

// EventsAfter returns up to limit records with a sequence greater than cursor.
// A non-positive limit returns every remaining record.
func (m *Manager) EventsAfter(cursor uint64, limit int) ([]types.EventRecord, error) {
	head, _, err := m.EventHead()
	if err != nil {
		return nil, err
	}
	var out []types.EventRecord
	for seq := cursor + 1; seq <= head; seq++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec, ok, err := m.EventRecord(seq)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: event log gap at sequence %d", seq)
		}
		out = append(out, *rec)
	}
	return out, nil
}

// VerifyEventChain recomputes the digest chain over the whole log.
func (m *Manager) VerifyEventChain() error {
	head, headDigest, err := m.EventHead()
	if err != nil {
		return err
	}
	var digest [32]byte
	for seq := uint64(1); seq <= head; seq++ {
		var stored storedEvent
		ok, err := m.KVGet(eventRecordKey(seq), &stored)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("state: event log gap at sequence %d", seq)
		}
		digest, err = chainDigest(digest, &stored.Body)
		if err != nil {
			return err
		}
		if digest != stored.Digest {
			return fmt.Errorf("state: event digest mismatch at sequence %d", seq)
		}
	}
	if digest != headDigest {
		return fmt.Errorf("state: event head digest mismatch")
	}
	return nil
}

// RecordDigest recomputes the chained digest of rec given its predecessor's
// digest. Consumers outside the node use it to check a streamed log.
func RecordDigest(prev [32]byte, rec types.EventRecord) ([32]byte, error) {
	if rec.Event == nil {
		return [32]byte{}, fmt.Errorf("state: record %d has no event", rec.Sequence)
	}
	ts, err := toUnix(rec.Timestamp)
	if err != nil {
		return [32]byte{}, err
	}
	return chainDigest(prev, &storedEventBody{
		Sequence:   rec.Sequence,
		Timestamp:  ts,
		Type:       rec.Event.Type,
		Attributes: encodeAttributes(rec.Event.Attributes),
	})
}
