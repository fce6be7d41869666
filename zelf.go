// Package zelf assembles the name-leasing engine: domain registry, pricing,
// multi-backend search, the hold→mainnet lifecycle, payment confirmation
// and the dual-write consistency controller. Embedders construct an Engine
// from config and call the lifecycle service; the HTTP surface that fronts
// it lives outside this module.
package zelf

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/config"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/consistency"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/lifecycle"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/payment"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/registry"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/sealer"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/search"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/storage"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/wallet"
)

// Engine is the assembled name-leasing core.
type Engine struct {
	Domains   *registry.Service
	Search    *search.Service
	Payments  *payment.Registry
	Lifecycle *lifecycle.Service
}

// NewEngine wires every component from config. db is the registry
// database handle; *pgxpool.Pool satisfies it. Nothing here dials out:
// external collaborators are reached lazily on first use.
func NewEngine(cfg *config.Config, db registry.DB, logger zerolog.Logger) *Engine {
	store := registry.NewStore(db)
	domains := registry.NewService(store, cfg.RegistryRefreshTTL, logger)

	backends := map[string]storage.Backend{
		storage.NameIPFS: storage.NewIPFSBackend(storage.IPFSOptions{
			ServiceURL:   cfg.PinServiceURL,
			ServiceToken: cfg.PinServiceToken,
			NodeAddr:     cfg.IPFSNodeAddr,
			GatewayURL:   cfg.IPFSGatewayURL,
		}, logger),
		storage.NameArweave: storage.NewArweaveBackend(storage.ArweaveOptions{
			GatewayURL:   cfg.ArweaveGatewayURL,
			BundlerURL:   cfg.ArweaveBundlerURL,
			BundlerToken: cfg.ArweaveBundlerToken,
		}, logger),
	}
	if cfg.ArchiveBucket != "" {
		backends[storage.NameArchive] = storage.NewArchiveBackend(storage.ArchiveOptions{
			Endpoint:  cfg.ArchiveEndpoint,
			Region:    cfg.ArchiveRegion,
			Bucket:    cfg.ArchiveBucket,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
		}, logger)
	}

	checkout := payment.NewCoinbaseClient(cfg.CoinbaseCommerceURL, cfg.CoinbaseCommerceKey, cfg.CoinbaseForceApprove)
	payments := payment.NewRegistry(logger,
		payment.NewEthereumChecker(cfg.EtherscanURL, cfg.EtherscanKey),
		payment.NewAvalancheChecker(cfg.SnowtraceURL, cfg.SnowtraceKey),
		payment.NewSolanaChecker(cfg.SolscanURL, cfg.SolscanKey),
		payment.NewBitcoinChecker(cfg.BlockstreamURL),
		checkout,
	)

	var locker lifecycle.Locker
	if cfg.RedisAddr != "" {
		locker = lifecycle.NewRedisLocker(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}))
	}

	searcher := search.NewService(backends, logger)
	svc := lifecycle.NewService(lifecycle.Options{
		Domains:  domains,
		Search:   searcher,
		Writer:   consistency.NewController(logger),
		Sealer:   sealer.NewHTTPClient(cfg.SealerURL, cfg.SealerToken),
		Payments: payments,
		Intents:  payment.NewIntentService(wallet.NewHTTPDeriver(cfg.KeyServiceURL), checkout),
		Locker:   locker,
	}, logger)

	return &Engine{
		Domains:   domains,
		Search:    searcher,
		Payments:  payments,
		Lifecycle: svc,
	}
}
