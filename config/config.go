package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bloomsocial/core/genesis"
)

const (
	defaultRPCAddress   = ":8545"
	defaultDataDir      = "./bloom-data"
	defaultSecretEnv    = "BLOOM_JWT_SECRET"
	defaultFaucetAmount = "100000000000000000000" // 100 BLOOM
)

type Config struct {
	RPCAddress            string   `toml:"RPCAddress"`
	DataDir               string   `toml:"DataDir"`
	Environment           string   `toml:"Environment"`
	GenesisFile           string   `toml:"GenesisFile"`
	CustodyAddress        string   `toml:"CustodyAddress"`
	ProtocolFeeRecipient  string   `toml:"ProtocolFeeRecipient"`
	StrictUnfollow        bool     `toml:"StrictUnfollow"`
	FaucetAmount          string   `toml:"FaucetAmount"`
	FaucetCooldownSeconds uint64   `toml:"FaucetCooldownSeconds"`
	PausedModules         []string `toml:"PausedModules"`
	RPCReadHeaderTimeout  int      `toml:"RPCReadHeaderTimeout"`
	RPCReadTimeout        int      `toml:"RPCReadTimeout"`
	RPCWriteTimeout       int      `toml:"RPCWriteTimeout"`
	RPCIdleTimeout        int      `toml:"RPCIdleTimeout"`

	Genesis   []GenesisAlloc  `toml:"Genesis"`
	Auth      AuthConfig      `toml:"Auth"`
	RateLimit RateLimitConfig `toml:"RateLimit"`
	CORS      CORSConfig      `toml:"CORS"`
	Log       LogConfig       `toml:"Log"`
	Telemetry TelemetryConfig `toml:"Telemetry"`
}

// GenesisAlloc is an inline genesis credit. Inline allocations are merged with
// those of GenesisFile.
type GenesisAlloc struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// AuthConfig controls JWT verification on mutating RPC methods. The HMAC
// secret is read from HMACSecretEnv unless HMACSecret is set directly.
type AuthConfig struct {
	Disabled      bool   `toml:"Disabled"`
	HMACSecret    string `toml:"HMACSecret"`
	HMACSecretEnv string `toml:"HMACSecretEnv"`
	Issuer        string `toml:"Issuer"`
	Audience      string `toml:"Audience"`
	TokenTTL      int    `toml:"TokenTTLSeconds"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"AllowedOrigins"`
}

type LogConfig struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type TelemetryConfig struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	Headers     string  `toml:"Headers"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Load loads the configuration from the given path. A missing file is created
// with defaults and freshly generated custody and fee accounts.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown field %s", path, undecoded[0].String())
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Auth.HMACSecretEnv) == "" {
		c.Auth.HMACSecretEnv = defaultSecretEnv
	}
	if strings.TrimSpace(c.Auth.Issuer) == "" {
		c.Auth.Issuer = "bloomd"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 3600
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 40
	}
	if c.RPCReadHeaderTimeout <= 0 {
		c.RPCReadHeaderTimeout = 5
	}
	if c.RPCReadTimeout <= 0 {
		c.RPCReadTimeout = 15
	}
	if c.RPCWriteTimeout <= 0 {
		c.RPCWriteTimeout = 15
	}
	if c.RPCIdleTimeout <= 0 {
		c.RPCIdleTimeout = 60
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	custody, err := randomAddress()
	if err != nil {
		return nil, err
	}
	fees, err := randomAddress()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		RPCAddress:            defaultRPCAddress,
		DataDir:               defaultDataDir,
		Environment:           "local",
		CustodyAddress:        custody,
		ProtocolFeeRecipient:  fees,
		FaucetAmount:          defaultFaucetAmount,
		FaucetCooldownSeconds: 86400,
		Log:                   LogConfig{Level: "info"},
	}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func randomAddress() (string, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return "", err
	}
	return ethcrypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// FaucetAmountWei parses FaucetAmount. Empty disables the faucet.
func (c *Config) FaucetAmountWei() (*big.Int, error) {
	return parseUintAmount(c.FaucetAmount)
}

func (c *Config) FaucetCooldown() time.Duration {
	return time.Duration(c.FaucetCooldownSeconds) * time.Second
}

// AuthSecret resolves the HMAC secret used to sign and verify JWTs.
func (c *Config) AuthSecret() string {
	if secret := strings.TrimSpace(c.Auth.HMACSecret); secret != "" {
		return secret
	}
	return strings.TrimSpace(os.Getenv(c.Auth.HMACSecretEnv))
}

// GenesisSpec merges GenesisFile with inline allocations. It returns nil when
// neither is configured.
func (c *Config) GenesisSpec() (*genesis.Spec, error) {
	spec := &genesis.Spec{Alloc: map[string]string{}}
	if file := strings.TrimSpace(c.GenesisFile); file != "" {
		loaded, err := genesis.LoadSpec(file)
		if err != nil {
			return nil, err
		}
		spec = loaded
		if spec.Alloc == nil {
			spec.Alloc = map[string]string{}
		}
	}
	for _, alloc := range c.Genesis {
		key := strings.TrimSpace(alloc.Address)
		if _, dup := spec.Alloc[key]; dup {
			return nil, fmt.Errorf("genesis: %s allocated twice", key)
		}
		spec.Alloc[key] = alloc.Amount
	}
	if len(spec.Alloc) == 0 {
		return nil, nil
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (c *Config) ReadHeaderTimeout() time.Duration {
	return time.Duration(c.RPCReadHeaderTimeout) * time.Second
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.RPCReadTimeout) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.RPCWriteTimeout) * time.Second
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.RPCIdleTimeout) * time.Second
}

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative: %q", raw)
	}
	return value, nil
}
