package zelf

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/config"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		ServiceName:         "zelfd",
		Environment:         "test",
		PinServiceURL:       "https://pin.example",
		PinServiceToken:     "token",
		IPFSGatewayURL:      "https://gateway.example/ipfs",
		ArweaveGatewayURL:   "https://arweave.example",
		ArweaveBundlerURL:   "https://bundler.example",
		EtherscanURL:        "https://etherscan.example",
		SnowtraceURL:        "https://snowtrace.example",
		SolscanURL:          "https://solscan.example",
		BlockstreamURL:      "https://blockstream.example",
		CoinbaseCommerceURL: "https://commerce.example",
		SealerURL:           "https://sealer.example",
		KeyServiceURL:       "https://keys.example",
	}
}

func TestNewEngineWiresEveryRail(t *testing.T) {
	engine := NewEngine(testConfig(), nil, zerolog.Nop())

	require.NotNil(t, engine.Domains)
	require.NotNil(t, engine.Search)
	require.NotNil(t, engine.Lifecycle)

	networks := engine.Payments.Networks()
	require.ElementsMatch(t, []string{"ETH", "AVAX", "SOL", "BTC", "COINBASE"}, networks)
}

func TestNewEngineArchiveBackendIsOptional(t *testing.T) {
	cfg := testConfig()
	engine := NewEngine(cfg, nil, zerolog.Nop())

	all := &model.DomainConfig{Backends: model.BackendFlags{IPFS: true, Arweave: true, Archive: true}}
	require.Len(t, engine.Search.Enabled(all), 2)

	cfg.ArchiveBucket = "zelf-archive"
	engine = NewEngine(cfg, nil, zerolog.Nop())
	require.Len(t, engine.Search.Enabled(all), 3)
}
