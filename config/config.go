package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"

	AggregatorRelay    = "relay"
	AggregatorOneClick = "oneclick"

	RelayMainnetURL = "https://api.relay.link"
	RelayTestnetURL = "https://api.testnets.relay.link"
	OneClickURL     = "https://1click.chaindefuser.com"
)

// Config holds the application configuration
type Config struct {
	Network    string
	Aggregator string

	RelayBaseURL    string
	OneClickJWT     string
	OneClickBaseURL string

	PrivateKey string
	RPC        map[int64][]string

	SolanaRPCURL     string
	SolanaCommitment string

	QuoteTTL             time.Duration
	QuoteRefreshInterval time.Duration
	QuoteMinInterval     time.Duration

	ApprovalTimeout      time.Duration
	ApprovalPollInterval time.Duration

	CheckInterval time.Duration
	CheckTimeout  time.Duration

	RetryMax int

	RedisAddr     string
	RedisCacheTTL time.Duration

	HistoryPath string
	MetricsAddr string

	LogLevel  string
	LogFormat string
}

// mainnetRPC and testnetRPC are public endpoints tried in order
var mainnetRPC = map[int64][]string{
	1: {
		"https://eth.llamarpc.com",
		"https://rpc.ankr.com/eth",
		"https://ethereum.publicnode.com",
		"https://eth.drpc.org",
	},
	8453: {
		"https://base.llamarpc.com",
		"https://mainnet.base.org",
		"https://base.publicnode.com",
		"https://base.drpc.org",
	},
	42161: {
		"https://arbitrum.llamarpc.com",
		"https://arb1.arbitrum.io/rpc",
		"https://arbitrum.publicnode.com",
		"https://arbitrum.drpc.org",
	},
	10: {
		"https://optimism.llamarpc.com",
		"https://mainnet.optimism.io",
		"https://optimism.publicnode.com",
		"https://optimism.drpc.org",
		"https://rpc.ankr.com/optimism",
	},
	137: {
		"https://polygon.llamarpc.com",
		"https://polygon-rpc.com",
		"https://rpc.ankr.com/polygon",
		"https://polygon.publicnode.com",
	},
	56: {
		"https://bsc.llamarpc.com",
		"https://bsc-dataseed1.binance.org",
		"https://rpc.ankr.com/bsc",
		"https://bsc.publicnode.com",
	},
}

var testnetRPC = map[int64][]string{
	11155111: {
		"https://rpc.sepolia.org",
		"https://sepolia.gateway.tenderly.co",
		"https://ethereum-sepolia-rpc.publicnode.com",
		"https://rpc.ankr.com/eth_sepolia",
	},
	84532: {
		"https://sepolia.base.org",
		"https://base-sepolia-rpc.publicnode.com",
		"https://base-sepolia.gateway.tenderly.co",
		"https://rpc.ankr.com/base_sepolia",
	},
	421614: {
		"https://sepolia-rollup.arbitrum.io/rpc",
		"https://arbitrum-sepolia-rpc.publicnode.com",
		"https://arbitrum-sepolia.gateway.tenderly.co",
		"https://rpc.ankr.com/arbitrum_sepolia",
	},
	11155420: {
		"https://sepolia.optimism.io",
		"https://optimism-sepolia-rpc.publicnode.com",
		"https://optimism-sepolia.gateway.tenderly.co",
		"https://rpc.ankr.com/optimism_sepolia",
	},
	80002: {
		"https://rpc-amoy.polygon.technology",
		"https://polygon-amoy-rpc.publicnode.com",
		"https://rpc.ankr.com/polygon_amoy",
	},
	97: {
		"https://data-seed-prebsc-1-s1.binance.org:8545",
		"https://data-seed-prebsc-2-s1.binance.org:8545",
		"https://bsc-testnet-rpc.publicnode.com",
		"https://rpc.ankr.com/bsc_testnet",
	},
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".moleswap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	setDefaults()

	// MOLESWAP_QUOTE_TTL maps to quote.ttl
	viper.SetEnvPrefix("MOLESWAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file is optional
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Network:    strings.ToLower(viper.GetString("network")),
		Aggregator: strings.ToLower(viper.GetString("aggregator")),

		RelayBaseURL:    viper.GetString("relay.base_url"),
		OneClickJWT:     viper.GetString("oneclick.jwt_token"),
		OneClickBaseURL: viper.GetString("oneclick.base_url"),

		PrivateKey: viper.GetString("wallet.private_key"),

		SolanaRPCURL:     viper.GetString("solana.rpc_url"),
		SolanaCommitment: viper.GetString("solana.commitment"),

		QuoteTTL:             viper.GetDuration("quote.ttl"),
		QuoteRefreshInterval: viper.GetDuration("quote.refresh_interval"),
		QuoteMinInterval:     viper.GetDuration("quote.min_interval"),

		ApprovalTimeout:      viper.GetDuration("approval.timeout"),
		ApprovalPollInterval: viper.GetDuration("approval.poll_interval"),

		CheckInterval: viper.GetDuration("execution.check_interval"),
		CheckTimeout:  viper.GetDuration("execution.check_timeout"),

		RetryMax: viper.GetInt("http.retry_max"),

		RedisAddr:     viper.GetString("redis.addr"),
		RedisCacheTTL: viper.GetDuration("redis.cache_ttl"),

		HistoryPath: viper.GetString("history.path"),
		MetricsAddr: viper.GetString("metrics.addr"),

		LogLevel:  viper.GetString("log.level"),
		LogFormat: viper.GetString("log.format"),
	}

	if cfg.RelayBaseURL == "" {
		cfg.RelayBaseURL = RelayMainnetURL
		if cfg.Network == NetworkTestnet {
			cfg.RelayBaseURL = RelayTestnetURL
		}
	}

	rpc, err := loadRPC(cfg.Network)
	if err != nil {
		return nil, err
	}
	cfg.RPC = rpc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("network", NetworkMainnet)
	viper.SetDefault("aggregator", AggregatorRelay)
	viper.SetDefault("relay.base_url", "")
	viper.SetDefault("oneclick.jwt_token", "")
	viper.SetDefault("oneclick.base_url", OneClickURL)
	viper.SetDefault("wallet.private_key", "")
	viper.SetDefault("solana.rpc_url", "")
	viper.SetDefault("solana.commitment", "confirmed")
	viper.SetDefault("quote.ttl", 30*time.Second)
	viper.SetDefault("quote.refresh_interval", 25*time.Second)
	viper.SetDefault("quote.min_interval", time.Second)
	viper.SetDefault("approval.timeout", 90*time.Second)
	viper.SetDefault("approval.poll_interval", 1500*time.Millisecond)
	viper.SetDefault("execution.check_interval", 2*time.Second)
	viper.SetDefault("execution.check_timeout", 10*time.Minute)
	viper.SetDefault("http.retry_max", 3)
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.cache_ttl", 5*time.Minute)
	viper.SetDefault("history.path", "")
	viper.SetDefault("metrics.addr", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Register every known chain so env overrides such as MOLESWAP_RPC_8453 resolve
	for _, set := range []map[int64][]string{mainnetRPC, testnetRPC} {
		for id := range set {
			viper.SetDefault(rpcKey(id), []string{})
		}
	}
}

func rpcKey(chainID int64) string {
	return "rpc." + strconv.FormatInt(chainID, 10)
}

// loadRPC merges configured endpoints over the network defaults
func loadRPC(network string) (map[int64][]string, error) {
	defaults := mainnetRPC
	if network == NetworkTestnet {
		defaults = testnetRPC
	}

	out := make(map[int64][]string, len(defaults))
	for id, urls := range defaults {
		out[id] = append([]string(nil), urls...)
	}

	for key := range viper.GetStringMap("rpc") {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rpc chain id '%s'", key)
		}
		if urls := viper.GetStringSlice(rpcKey(id)); len(urls) > 0 {
			out[id] = urls
		}
	}
	return out, nil
}

// Validate checks the values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Network {
	case NetworkMainnet, NetworkTestnet:
	default:
		return fmt.Errorf("unknown network '%s' (expected %s or %s)", c.Network, NetworkMainnet, NetworkTestnet)
	}

	switch c.Aggregator {
	case AggregatorRelay:
	case AggregatorOneClick:
		if c.OneClickJWT == "" {
			return fmt.Errorf("JWT token not found. Please set MOLESWAP_ONECLICK_JWT_TOKEN environment variable or add oneclick.jwt_token to .moleswap.yaml")
		}
	default:
		return fmt.Errorf("unknown aggregator '%s' (expected %s or %s)", c.Aggregator, AggregatorRelay, AggregatorOneClick)
	}

	if c.QuoteTTL <= 0 {
		return fmt.Errorf("quote.ttl must be positive")
	}
	return nil
}

// ChainIDs returns the chains with RPC endpoints, sorted
func (c *Config) ChainIDs() []int64 {
	ids := make([]int64, 0, len(c.RPC))
	for id := range c.RPC {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
