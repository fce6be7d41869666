package lifecycle

import (
	"context"
	"fmt"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/metrics"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/pricing"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/registry"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/search"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/sealer"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// LeaseRequest asks to reserve a name.
type LeaseRequest struct {
	Domain   string
	Label    string
	Duration string
	// Referral is the referrer's bare label. When ReferralOptional is set
	// an unresolvable referral is silently dropped instead of failing.
	Referral         string
	ReferralOptional bool

	// Biometric proof forwarded opaquely to the sealing collaborator.
	Face     string
	Password string

	// Addresses is the lessee's chain address bundle.
	Addresses map[string]string
}

// OfflineLeaseRequest reserves a name with a credential sealed ahead of
// time, without a live session.
type OfflineLeaseRequest struct {
	Domain           string
	Label            string
	Duration         string
	Referral         string
	ReferralOptional bool
	SealedCredential string
	Addresses        map[string]string
}

// LeaseResult is the outcome of a lease: the written record, its quote and
// — unless the name was free — the payment intent to settle.
type LeaseResult struct {
	Tag    *model.TagRecord
	Quote  model.PriceQuote
	Intent *model.PaymentIntent
}

// Lease reserves a name online: validate, seal, price, then either write a
// hold or — for a zero price — promote straight to mainnet.
func (s *Service) Lease(ctx context.Context, req LeaseRequest) (*LeaseResult, error) {
	cfg, err := s.activeDomain(ctx, req.Domain)
	if err != nil {
		return nil, err
	}
	if err := registry.ValidateLabel(cfg, req.Label); err != nil {
		metrics.Leases.WithLabelValues(req.Domain, "rejected").Inc()
		return nil, err
	}

	sealed, err := s.sealer.Seal(ctx, sealer.SealRequest{
		Payload:  sealPayload(cfg.FullName(req.Label), req.Addresses),
		Face:     req.Face,
		Password: req.Password,
	})
	if err != nil {
		metrics.Leases.WithLabelValues(req.Domain, "rejected").Inc()
		return nil, err
	}

	return s.lease(ctx, cfg, leaseParams{
		label:            req.Label,
		duration:         req.Duration,
		referral:         req.Referral,
		referralOptional: req.ReferralOptional,
		sealedCredential: sealed,
		addresses:        req.Addresses,
		origin:           model.OriginOnline,
	})
}

// LeaseOffline reserves a name with a pre-sealed credential. The sync path
// reconciles the record once the owner is back online.
func (s *Service) LeaseOffline(ctx context.Context, req OfflineLeaseRequest) (*LeaseResult, error) {
	cfg, err := s.activeDomain(ctx, req.Domain)
	if err != nil {
		return nil, err
	}
	if err := registry.ValidateLabel(cfg, req.Label); err != nil {
		metrics.Leases.WithLabelValues(req.Domain, "rejected").Inc()
		return nil, err
	}
	if req.SealedCredential == "" {
		return nil, zelferr.ErrVerificationFailed
	}

	return s.lease(ctx, cfg, leaseParams{
		label:            req.Label,
		duration:         req.Duration,
		referral:         req.Referral,
		referralOptional: req.ReferralOptional,
		sealedCredential: req.SealedCredential,
		addresses:        req.Addresses,
		origin:           model.OriginOffline,
	})
}

type leaseParams struct {
	label            string
	duration         string
	referral         string
	referralOptional bool
	sealedCredential string
	addresses        map[string]string
	origin           string
}

func (s *Service) lease(ctx context.Context, cfg *model.DomainConfig, p leaseParams) (*LeaseResult, error) {
	if p.duration == "" {
		p.duration = "1"
	}

	// A domain whose backend flags resolve to no constructed backend has
	// nowhere to write; refuse it instead of panicking downstream.
	enabled := s.search.Enabled(cfg)
	if len(enabled) == 0 {
		metrics.Leases.WithLabelValues(cfg.Name, "rejected").Inc()
		return nil, zelferr.ErrDomainNotActive.WithCause(fmt.Errorf("domain %s enables no storage backends", cfg.Name))
	}

	referrer, referrerAddr, err := s.resolveReferral(ctx, cfg, p.referral, p.referralOptional)
	if err != nil {
		metrics.Leases.WithLabelValues(cfg.Name, "rejected").Inc()
		return nil, err
	}

	release, err := s.acquireLock(ctx, cfg, p.label)
	if err != nil {
		metrics.Leases.WithLabelValues(cfg.Name, "conflict").Inc()
		return nil, err
	}
	defer release()

	// Re-verified under the lock (when one is configured). Without a
	// locker two concurrent leases can both pass this check; see the
	// consistency notes in DESIGN.md.
	res, err := s.search.SearchTag(ctx, search.Query{
		Label:    p.label,
		Domain:   cfg,
		Duration: p.duration,
		Referral: referrer,
	})
	if err != nil {
		return nil, err
	}

	var supersededRefs []model.StorageRef
	if res.Tag != nil {
		// A lapsed hold no longer reserves the name; its artifacts get
		// replaced by the new lease.
		if !(res.Tag.IsHold() && res.Tag.Expired(s.now())) {
			metrics.Leases.WithLabelValues(cfg.Name, "conflict").Inc()
			return nil, zelferr.ErrTagAlreadyExists
		}
		supersededRefs = res.Tag.Artifacts

		quote, qErr := pricing.Price(cfg, p.label, p.duration, referrer)
		if qErr != nil {
			return nil, qErr
		}
		res.Quote = &quote
	}

	quote := *res.Quote
	now := s.now()

	rec := &model.TagRecord{
		Domain:           cfg.Name,
		SealedCredential: p.sealedCredential,
		Addresses:        p.addresses,
		Origin:           p.origin,
		Price:            quote.Price,
		Duration:         quote.Duration,
		Referrer:         referrer,
		ReferrerAddress:  referrerAddr,
		RegisteredAt:     now,
	}

	if quote.Free() {
		// Zero-price names never hold: straight to mainnet.
		tag, err := s.confirmFreeTag(ctx, cfg, p.label, rec, supersededRefs)
		if err != nil {
			metrics.Leases.WithLabelValues(cfg.Name, "error").Inc()
			return nil, err
		}
		metrics.Leases.WithLabelValues(cfg.Name, "free").Inc()
		return &LeaseResult{Tag: tag, Quote: quote}, nil
	}

	rec.Name = cfg.HoldName(p.label)
	rec.Status = model.TagStatusHold
	rec.ExpiresAt = now.Add(HoldTTL)

	// Holds live only in the primary content store; the durable ledger is
	// reserved for confirmed promotions.
	primary := enabled[:1]
	if _, err := s.writer.Replace(ctx, primary, rec, supersededRefs); err != nil {
		metrics.Leases.WithLabelValues(cfg.Name, "error").Inc()
		return nil, err
	}

	intent, err := s.intents.NewIntent(ctx, cfg.FullName(p.label), quote.Price, nil)
	if err != nil {
		// A hold with no way to pay for it must not block the name for
		// 24 hours; roll it back.
		if rmErr := s.writer.Remove(ctx, primary, rec.Artifacts); rmErr != nil {
			s.logger.Warn().Err(rmErr).
				Str("name", rec.Name).
				Msg("rollback of hold after intent failure did not complete")
		}
		metrics.Leases.WithLabelValues(cfg.Name, "error").Inc()
		return nil, err
	}

	metrics.Leases.WithLabelValues(cfg.Name, "hold").Inc()
	s.logger.Info().
		Str("name", rec.Name).
		Float64("price", quote.Price).
		Msg("hold created")

	return &LeaseResult{Tag: rec, Quote: quote, Intent: intent}, nil
}

// confirmFreeTag promotes a zero-price lease directly to mainnet.
func (s *Service) confirmFreeTag(ctx context.Context, cfg *model.DomainConfig, label string, rec *model.TagRecord, superseded []model.StorageRef) (*model.TagRecord, error) {
	rec.Name = cfg.FullName(label)
	rec.Status = model.TagStatusMainnet
	rec.ExpiresAt = term(rec.RegisteredAt, rec.Duration)

	if _, err := s.writer.Replace(ctx, s.search.Enabled(cfg), rec, superseded); err != nil {
		return nil, err
	}

	metrics.Promotions.WithLabelValues(cfg.Name).Inc()
	s.logger.Info().Str("name", rec.Name).Msg("free tag confirmed to mainnet")
	return rec, nil
}

// resolveReferral checks that a referral label holds a live tag and
// returns its payout address.
func (s *Service) resolveReferral(ctx context.Context, cfg *model.DomainConfig, referral string, optional bool) (string, string, error) {
	if referral == "" {
		return "", "", nil
	}

	tag, err := s.search.Resolve(ctx, cfg, referral)
	if err != nil {
		if optional {
			s.logger.Debug().Str("referral", referral).Msg("optional referral did not resolve, dropping")
			return "", "", nil
		}
		return "", "", zelferr.ErrReferralNotFound.WithCause(err)
	}

	return referral, tag.Addresses["ETH"], nil
}

func sealPayload(fullName string, addresses map[string]string) map[string]string {
	payload := map[string]string{"tagName": fullName}
	for chain, addr := range addresses {
		payload[chain+"Address"] = addr
	}
	return payload
}
