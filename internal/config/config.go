// Package config loads the auditor's runtime options and the chain deployment
// (contract/actor addresses, tokens, event scan bounds) from the environment.
// Defaults describe the Arbitrum One deployment; every value can be overridden
// so other deployments can be audited without recompilation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hedisam/ethrecon/internal/chain"
)

// Token is an ERC-20 asset under audit.
type Token struct {
	Symbol   string
	Address  chain.Address
	Decimals int32
}

// Chain is the immutable deployment the verifiers are constructed with.
type Chain struct {
	Name string

	Treasury            chain.Address
	Gateway             chain.Address
	TestingWallet       chain.Address
	SafeWallet          chain.Address
	BackendPayoutWallet chain.Address
	TicketBroker        chain.Address
	Router              chain.Address

	LPT   Token
	USDC  Token
	USDCe Token
	WETH  Token

	// TicketScanStartBlock is the first known redemption-era block; scanning
	// starts there instead of at genesis.
	TicketScanStartBlock uint64
}

// Config carries everything a command run needs besides its input files.
type Config struct {
	RPCURL          string
	OutDir          string
	MetricsAddr     string
	RetryMaxElapsed time.Duration
	ChunkSize       uint64
	ChunkFloor      uint64
	BlockCachePath  string
	Chain           Chain
}

// EnvSource abstracts environment lookup for testability.
type EnvSource interface {
	Lookup(key string) (string, bool)
}

// EnvMap is an in-memory EnvSource.
type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

// FromEnviron snapshots the process environment.
func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

// Arbitrum One deployment defaults.
const (
	defaultRPCURL = "https://arb1.arbitrum.io/rpc"

	defaultTreasury            = "0x04e334ff13c71488094e24f4fab53a8fafe2f9bb"
	defaultGateway             = "0x8a8053c21696f27ed305a03bd1efc5d068d91d0e"
	defaultTestingWallet       = "0xa03113bab8d4ebe5695591f60011741233e8b82f"
	defaultSafeWallet          = "0xc34b3753c164fbc3fc066fc1a46b3eee8adb33e6"
	defaultBackendPayoutWallet = "0x0c7ca5da3b10fa345c5713c5a14479a3af65ac37"
	defaultTicketBroker        = "0xa8bb618b1520e284046f3dfc448851a1ff26e41b"
	defaultRouter              = "0x2905d7e4d048d29954f81b02171dd313f457a4a4"

	defaultLPT   = "0x289ba1701c2f088cf0faf8b3705246331cb8a839"
	defaultUSDC  = "0xaf88d065e77c8cc2239327c5edb3a432268e5831"
	defaultUSDCe = "0xff970a61a04b1ca14834a43f5de4533ebddb5cc8"
	defaultWETH  = "0x82af49447d8a07e3bd95bd0d56f35241523fbab1"

	defaultTicketScanStartBlock = 337_000_000
	defaultChunkSize            = 2_000_000
	defaultChunkFloor           = 10_000
)

// Load builds a Config from the given env source.
func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	cfg := Config{
		RPCURL:          stringEnv(source, "RPC_URL", defaultRPCURL),
		OutDir:          stringEnv(source, "OUT_DIR", "."),
		MetricsAddr:     stringEnv(source, "METRICS_ADDR", ""),
		RetryMaxElapsed: 30 * time.Second,
		BlockCachePath:  stringEnv(source, "BLOCK_CACHE_PATH", ""),
	}

	if raw, ok := source.Lookup("RPC_RETRY_MAX_ELAPSED"); ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RPC_RETRY_MAX_ELAPSED: %w", err)
		}
		cfg.RetryMaxElapsed = d
	}

	var err error
	cfg.ChunkSize, err = uintEnv(source, "LOG_CHUNK_SIZE", defaultChunkSize)
	if err != nil {
		return Config{}, err
	}
	cfg.ChunkFloor, err = uintEnv(source, "LOG_CHUNK_FLOOR", defaultChunkFloor)
	if err != nil {
		return Config{}, err
	}
	if cfg.ChunkFloor == 0 || cfg.ChunkSize < cfg.ChunkFloor {
		return Config{}, fmt.Errorf("invalid log chunk bounds: size=%d floor=%d", cfg.ChunkSize, cfg.ChunkFloor)
	}

	cfg.Chain, err = loadChain(source)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadChain(source EnvSource) (Chain, error) {
	c := Chain{Name: stringEnv(source, "CHAIN_NAME", "arbitrum-one")}

	addrs := []struct {
		dst        *chain.Address
		key        string
		defaultVal string
	}{
		{&c.Treasury, "TREASURY_ADDR", defaultTreasury},
		{&c.Gateway, "GATEWAY_ADDR", defaultGateway},
		{&c.TestingWallet, "TESTING_WALLET_ADDR", defaultTestingWallet},
		{&c.SafeWallet, "SAFE_WALLET_ADDR", defaultSafeWallet},
		{&c.BackendPayoutWallet, "BACKEND_PAYOUT_WALLET_ADDR", defaultBackendPayoutWallet},
		{&c.TicketBroker, "TICKET_BROKER_ADDR", defaultTicketBroker},
		{&c.Router, "ROUTER_ADDR", defaultRouter},
	}
	for _, a := range addrs {
		parsed, err := chain.ParseAddress(stringEnv(source, a.key, a.defaultVal))
		if err != nil {
			return Chain{}, fmt.Errorf("invalid %s: %w", a.key, err)
		}
		*a.dst = parsed
	}

	tokens := []struct {
		dst        *Token
		symbol     string
		key        string
		defaultVal string
		decimals   int32
	}{
		{&c.LPT, "LPT", "LPT_TOKEN_ADDR", defaultLPT, 18},
		{&c.USDC, "USDC", "USDC_TOKEN_ADDR", defaultUSDC, 6},
		{&c.USDCe, "USDC.e", "USDCE_TOKEN_ADDR", defaultUSDCe, 6},
		{&c.WETH, "WETH", "WETH_TOKEN_ADDR", defaultWETH, 18},
	}
	for _, t := range tokens {
		parsed, err := chain.ParseAddress(stringEnv(source, t.key, t.defaultVal))
		if err != nil {
			return Chain{}, fmt.Errorf("invalid %s: %w", t.key, err)
		}
		*t.dst = Token{Symbol: t.symbol, Address: parsed, Decimals: t.decimals}
	}

	var err error
	c.TicketScanStartBlock, err = uintEnv(source, "TICKET_SCAN_START_BLOCK", defaultTicketScanStartBlock)
	if err != nil {
		return Chain{}, err
	}

	return c, nil
}

func stringEnv(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func uintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(strings.ReplaceAll(raw, "_", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
