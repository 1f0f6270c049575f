package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/config"
	"bloomsocial/core"
	"bloomsocial/storage"
)

func writeTestConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `CustodyAddress = "0x00000000000000000000000000000000000000c0"
ProtocolFeeRecipient = "0x00000000000000000000000000000000000000fe"
FaucetAmount = "50"
FaucetCooldownSeconds = 120

[[Genesis]]
Address = "0x00000000000000000000000000000000000000a1"
Amount = "1000"

[Auth]
HMACSecret = "daemon-secret"

[RateLimit]
RequestsPerSecond = 3
Burst = 6
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestGenesisAppliedOnce(t *testing.T) {
	cfg := writeTestConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts, err := ledgerOptions(cfg, logger)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.FaucetAmount.String() != "50" || opts.FaucetCooldown != 2*time.Minute {
		t.Fatalf("unexpected faucet options %+v", opts)
	}
	ledger, err := core.NewLedger(storage.NewMemDB(), opts)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	defer ledger.Close()

	if err := applyGenesis(cfg, ledger, logger); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if err := applyGenesis(cfg, ledger, logger); err != nil {
		t.Fatalf("second genesis should be skipped: %v", err)
	}
	balance, err := ledger.BalanceOf(common.HexToAddress("0x00000000000000000000000000000000000000a1"))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.String() != "1000" {
		t.Fatalf("unexpected genesis balance %s", balance)
	}
}

func TestServerConfigFromFile(t *testing.T) {
	cfg := writeTestConfig(t)
	sc := serverConfig(cfg)
	if !sc.Auth.Enabled || sc.Auth.HMACSecret != "daemon-secret" || sc.Auth.Issuer != "bloomd" {
		t.Fatalf("unexpected auth config %+v", sc.Auth)
	}
	if sc.Auth.TokenTTL != time.Hour {
		t.Fatalf("unexpected token ttl %s", sc.Auth.TokenTTL)
	}
	if sc.RateLimit.RatePerSecond != 3 || sc.RateLimit.Burst != 6 {
		t.Fatalf("unexpected rate limit %+v", sc.RateLimit)
	}
	if sc.ReadHeaderTimeout != 5*time.Second || sc.IdleTimeout != time.Minute {
		t.Fatalf("unexpected timeouts %+v", sc)
	}
}
