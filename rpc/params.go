package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// decodeParams unmarshals the single parameter object and runs struct
// validation on it.
func (s *Server) decodeParams(req *RPCRequest, dst interface{}) *RPCError {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected", nil)
	}
	decoder := json.NewDecoder(strings.NewReader(string(req.Params[0])))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	if err := s.validate.Struct(dst); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, *RPCError) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, invalidParams(fmt.Sprintf("invalid %s address", field), raw)
	}
	return common.HexToAddress(trimmed), nil
}

// parseAmount parses a base-10 amount in base units. Zero is accepted; the
// ledger decides whether a zero amount is meaningful.
func parseAmount(field, raw string) (*big.Int, *RPCError) {
	value, rpcErr := parseSignedAmount(field, raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if value.Sign() < 0 {
		return nil, invalidParams(fmt.Sprintf("%s must not be negative", field), raw)
	}
	return value, nil
}

// parseSignedAmount accepts any base-10 integer so the ledger can reject
// non-positive stakes with its own error.
func parseSignedAmount(field, raw string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams(fmt.Sprintf("invalid %s", field), raw)
	}
	return value, nil
}

func parseHash(raw string) ([32]byte, *RPCError) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return out, nil
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != len(out) {
		return out, invalidParams("contentHash must be 32 hex encoded bytes", raw)
	}
	copy(out[:], decoded)
	return out, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
