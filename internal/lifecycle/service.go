// Package lifecycle drives a tag through available → hold → mainnet. It is
// the only writer of tag records; every mutation goes through the
// consistency controller's saga.
package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/consistency"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/payment"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/registry"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/sealer"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/search"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/storage"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// HoldTTL is how long a hold reserves a name while payment settles.
const HoldTTL = 24 * time.Hour

// lockTTL bounds the optional per-(domain,label) lease lock. It only needs
// to outlive the availability-check-plus-write window.
const lockTTL = 30 * time.Second

// domainAPI is the slice of the domain registry the lifecycle needs.
type domainAPI interface {
	GetDomain(ctx context.Context, name string) (*model.DomainConfig, error)
}

// searchAPI resolves names across backends.
type searchAPI interface {
	SearchTag(ctx context.Context, q search.Query) (*search.Result, error)
	Resolve(ctx context.Context, cfg *model.DomainConfig, label string) (*model.TagRecord, error)
	Enabled(cfg *model.DomainConfig) []storage.Backend
}

// writerAPI is the consistency controller.
type writerAPI interface {
	Replace(ctx context.Context, backends []storage.Backend, rec *model.TagRecord, old []model.StorageRef) (*consistency.WriteResult, error)
	Remove(ctx context.Context, backends []storage.Backend, refs []model.StorageRef) error
}

// confirmAPI is the payment registry.
type confirmAPI interface {
	Confirm(ctx context.Context, network, ref string, expectedAmount float64) (model.Confirmation, error)
}

// intentAPI mints payment intents.
type intentAPI interface {
	NewIntent(ctx context.Context, tagName string, amountUSD float64, prev *model.PaymentIntent) (*model.PaymentIntent, error)
}

type Service struct {
	domains  domainAPI
	search   searchAPI
	writer   writerAPI
	sealer   sealer.Client
	payments confirmAPI
	intents  intentAPI
	locker   Locker
	logger   zerolog.Logger
	now      func() time.Time
}

// Options wires the lifecycle's collaborators. Locker may be nil: the
// check-then-write race stays open without it, which is the documented
// default.
type Options struct {
	Domains  *registry.Service
	Search   *search.Service
	Writer   *consistency.Controller
	Sealer   sealer.Client
	Payments *payment.Registry
	Intents  *payment.IntentService
	Locker   Locker
}

func NewService(opts Options, logger zerolog.Logger) *Service {
	return &Service{
		domains:  opts.Domains,
		search:   opts.Search,
		writer:   opts.Writer,
		sealer:   opts.Sealer,
		payments: opts.Payments,
		intents:  opts.Intents,
		locker:   opts.Locker,
		logger:   logger.With().Str("component", "lifecycle").Logger(),
		now:      time.Now,
	}
}

// activeDomain loads a domain and rejects anything not accepting leases.
func (s *Service) activeDomain(ctx context.Context, name string) (*model.DomainConfig, error) {
	cfg, err := s.domains.GetDomain(ctx, name)
	if err != nil {
		return nil, err
	}
	if !cfg.Active() {
		return nil, zelferr.ErrDomainNotActive
	}
	return cfg, nil
}

// term computes the expiry for a paid duration starting at from.
// Lifetime leases carry a far-future sentinel instead of no expiry so the
// flat metadata always has a comparable value.
func term(from time.Time, duration string) time.Time {
	if duration == model.LifetimeDuration {
		return time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	years := 1
	switch duration {
	case "2":
		years = 2
	case "3":
		years = 3
	case "4":
		years = 4
	case "5":
		years = 5
	}
	return from.AddDate(years, 0, 0)
}

// acquireLock takes the optional per-name lease lock. The returned release
// must run on every exit path.
func (s *Service) acquireLock(ctx context.Context, cfg *model.DomainConfig, label string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Acquire(ctx, "lease:"+cfg.Name+":"+label, lockTTL)
}
