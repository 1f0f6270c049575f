package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/native/bloom"
	"bloomsocial/native/token"
)

var knownModules = map[string]struct{}{
	bloom.ModuleName: {},
	token.ModuleName: {},
}

// Validate checks addresses, amounts and module names.
func (c *Config) Validate() error {
	custody, err := parseAccount("CustodyAddress", c.CustodyAddress)
	if err != nil {
		return err
	}
	fees, err := parseAccount("ProtocolFeeRecipient", c.ProtocolFeeRecipient)
	if err != nil {
		return err
	}
	if custody == fees {
		return fmt.Errorf("config: CustodyAddress and ProtocolFeeRecipient must differ")
	}
	if _, err := c.FaucetAmountWei(); err != nil {
		return fmt.Errorf("config: FaucetAmount: %w", err)
	}
	for _, module := range c.PausedModules {
		if _, ok := knownModules[strings.ToLower(strings.TrimSpace(module))]; !ok {
			return fmt.Errorf("config: unknown paused module %q", module)
		}
	}
	for i, alloc := range c.Genesis {
		if !common.IsHexAddress(strings.TrimSpace(alloc.Address)) {
			return fmt.Errorf("config: Genesis[%d]: invalid address %q", i, alloc.Address)
		}
		amount, err := parseUintAmount(alloc.Amount)
		if err != nil || amount == nil || amount.Sign() == 0 {
			return fmt.Errorf("config: Genesis[%d]: invalid amount %q", i, alloc.Amount)
		}
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: RateLimit values must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("config: Telemetry.SampleRatio must be within [0,1]")
	}
	return nil
}

// Custody returns the parsed custody account.
func (c *Config) Custody() common.Address {
	addr, _ := parseAccount("CustodyAddress", c.CustodyAddress)
	return addr
}

// FeeRecipient returns the parsed protocol fee recipient.
func (c *Config) FeeRecipient() common.Address {
	addr, _ := parseAccount("ProtocolFeeRecipient", c.ProtocolFeeRecipient)
	return addr
}

func parseAccount(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("config: %s must be a hex address, got %q", field, raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("config: %s must not be the zero address", field)
	}
	return addr, nil
}
