package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServiceName string
	Environment string
	LogLevel    string

	// Registry database (domain configs).
	DatabaseURL        string
	RegistryRefreshTTL time.Duration

	// Optional lease-lock redis. Empty disables locking.
	RedisAddr     string
	RedisPassword string

	// Ops server (metrics + health).
	OpsListenAddr string

	// IPFS pin service (primary content store).
	PinServiceURL   string
	PinServiceToken string
	IPFSNodeAddr    string
	IPFSGatewayURL  string

	// Arweave (durable ledger).
	ArweaveGatewayURL   string
	ArweaveBundlerURL   string
	ArweaveBundlerToken string

	// S3-compatible archive store (optional tertiary backend).
	ArchiveEndpoint  string
	ArchiveRegion    string
	ArchiveBucket    string
	ArchiveAccessKey string
	ArchiveSecretKey string

	// Payment rails.
	EtherscanURL   string
	EtherscanKey   string
	SnowtraceURL   string
	SnowtraceKey   string
	SolscanURL     string
	SolscanKey     string
	BlockstreamURL string

	// Hosted checkout.
	CoinbaseCommerceURL  string
	CoinbaseCommerceKey  string
	CoinbaseForceApprove bool

	// External collaborators.
	SealerURL      string
	SealerToken    string
	KeyServiceURL  string
}

func Load() (*Config, error) {
	ttl, err := getEnvDuration("REGISTRY_REFRESH_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "zelfd"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RegistryRefreshTTL: ttl,

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		OpsListenAddr: getEnv("OPS_LISTEN_ADDR", ":9090"),

		PinServiceURL:   getEnv("PIN_SERVICE_URL", "https://api.pinata.cloud"),
		PinServiceToken: getEnv("PIN_SERVICE_TOKEN", ""),
		IPFSNodeAddr:    getEnv("IPFS_NODE_ADDR", ""),
		IPFSGatewayURL:  getEnv("IPFS_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs"),

		ArweaveGatewayURL:   getEnv("ARWEAVE_GATEWAY_URL", "https://arweave.net"),
		ArweaveBundlerURL:   getEnv("ARWEAVE_BUNDLER_URL", "https://node2.irys.xyz"),
		ArweaveBundlerToken: getEnv("ARWEAVE_BUNDLER_TOKEN", ""),

		ArchiveEndpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
		ArchiveRegion:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveBucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
		ArchiveAccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
		ArchiveSecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),

		EtherscanURL:   getEnv("ETHERSCAN_URL", "https://api.etherscan.io/api"),
		EtherscanKey:   getEnv("ETHERSCAN_KEY", ""),
		SnowtraceURL:   getEnv("SNOWTRACE_URL", "https://api.snowtrace.io/api"),
		SnowtraceKey:   getEnv("SNOWTRACE_KEY", ""),
		SolscanURL:     getEnv("SOLSCAN_URL", "https://pro-api.solscan.io/v2.0"),
		SolscanKey:     getEnv("SOLSCAN_KEY", ""),
		BlockstreamURL: getEnv("BLOCKSTREAM_URL", "https://blockstream.info/api"),

		CoinbaseCommerceURL: getEnv("COINBASE_COMMERCE_URL", "https://api.commerce.coinbase.com"),
		CoinbaseCommerceKey: getEnv("COINBASE_COMMERCE_KEY", ""),

		SealerURL:     getEnv("SEALER_URL", ""),
		SealerToken:   getEnv("SEALER_TOKEN", ""),
		KeyServiceURL: getEnv("KEY_SERVICE_URL", ""),
	}

	forceApprove, err := getEnvBool("COINBASE_FORCE_APPROVE", false)
	if err != nil {
		return nil, err
	}
	// Force-approve is a test-rail escape hatch and must never leak into
	// production.
	cfg.CoinbaseForceApprove = forceApprove && cfg.Environment != "production"

	return cfg, nil
}

// Validate checks the fields a given role actually needs.
func (c *Config) Validate(role string) error {
	switch role {
	case "zelfd":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.PinServiceToken == "" {
			return fmt.Errorf("PIN_SERVICE_TOKEN is required")
		}
		if c.SealerURL == "" {
			return fmt.Errorf("SEALER_URL is required")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
