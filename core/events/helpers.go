package events

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core/types"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func formatHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

type attrReader struct {
	evt *types.Event
	err error
}

func newAttrReader(evt *types.Event, want string) *attrReader {
	r := &attrReader{evt: evt}
	switch {
	case evt == nil:
		r.err = fmt.Errorf("events: nil %s event", want)
	case evt.Type != want:
		r.err = fmt.Errorf("events: expected %s, got %s", want, evt.Type)
	}
	return r
}

func (r *attrReader) raw(key string) string {
	if r.err != nil {
		return ""
	}
	value, ok := r.evt.Attributes[key]
	if !ok {
		r.err = fmt.Errorf("events: %s missing attribute %q", r.evt.Type, key)
		return ""
	}
	return strings.TrimSpace(value)
}

func (r *attrReader) address(key string) common.Address {
	value := r.raw(key)
	if r.err != nil {
		return common.Address{}
	}
	if !common.IsHexAddress(value) {
		r.err = fmt.Errorf("events: %s attribute %q is not an address", r.evt.Type, key)
		return common.Address{}
	}
	return common.HexToAddress(value)
}

func (r *attrReader) uint(key string) uint64 {
	value := r.raw(key)
	if r.err != nil {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("events: %s attribute %q: %w", r.evt.Type, key, err)
	}
	return parsed
}

func (r *attrReader) int(key string) int64 {
	value := r.raw(key)
	if r.err != nil {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("events: %s attribute %q: %w", r.evt.Type, key, err)
	}
	return parsed
}

func (r *attrReader) amount(key string) *big.Int {
	value := r.raw(key)
	if r.err != nil {
		return nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		r.err = fmt.Errorf("events: %s attribute %q is not an integer", r.evt.Type, key)
		return nil
	}
	return parsed
}

func (r *attrReader) hash(key string) [32]byte {
	var out [32]byte
	value := r.raw(key)
	if r.err != nil {
		return out
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil || len(decoded) != len(out) {
		r.err = fmt.Errorf("events: %s attribute %q is not a 32-byte hash", r.evt.Type, key)
		return out
	}
	copy(out[:], decoded)
	return out
}
