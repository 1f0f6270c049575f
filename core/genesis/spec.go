package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Spec describes the initial BLOOM allocations of a fresh ledger.
type Spec struct {
	GenesisTime string            `json:"genesisTime"`
	Alloc       map[string]string `json:"alloc"` // addr -> amount in base units

	genesisTimestamp time.Time
	allocations      []Allocation
}

// Allocation is a validated genesis credit.
type Allocation struct {
	Address common.Address
	Amount  *big.Int
}

// LoadSpec reads and validates a JSON genesis file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec: %w", err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate parses the timestamp and allocations, rejecting malformed or
// duplicate addresses and non-positive amounts.
func (s *Spec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	seen := make(map[common.Address]struct{}, len(s.Alloc))
	allocations := make([]Allocation, 0, len(s.Alloc))
	for rawAddr, rawAmount := range s.Alloc {
		trimmed := strings.TrimSpace(rawAddr)
		if !common.IsHexAddress(trimmed) {
			return fmt.Errorf("genesis alloc: invalid address %q", rawAddr)
		}
		addr := common.HexToAddress(trimmed)
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("genesis alloc: duplicate address %s", addr.Hex())
		}
		seen[addr] = struct{}{}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(rawAmount), 10)
		if !ok || amount.Sign() <= 0 {
			return fmt.Errorf("genesis alloc: invalid amount %q for %s", rawAmount, addr.Hex())
		}
		allocations = append(allocations, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(allocations, func(i, j int) bool {
		return allocations[i].Address.Cmp(allocations[j].Address) < 0
	})
	s.allocations = allocations
	return nil
}

// Allocations returns the validated credits sorted by address so genesis
// application is deterministic.
func (s *Spec) Allocations() []Allocation {
	out := make([]Allocation, len(s.allocations))
	for i, alloc := range s.allocations {
		out[i] = Allocation{Address: alloc.Address, Amount: new(big.Int).Set(alloc.Amount)}
	}
	return out
}

// GenesisTimestamp returns the parsed genesis time, zero when unset.
func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func parseGenesisTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("genesis time: %w", err)
	}
	return ts.UTC(), nil
}
