package lifecycle

import (
	"context"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/metrics"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/pricing"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/search"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// ConfirmRequest asks to settle a hold. PaymentRef is the receiving
// address on chain rails, or the charge id for hosted checkout.
type ConfirmRequest struct {
	Domain     string
	Label      string
	Network    string
	PaymentRef string
}

// ConfirmResult carries the promoted record and the rail's verdict.
type ConfirmResult struct {
	Tag          *model.TagRecord
	Confirmation model.Confirmation
}

// ConfirmPayment verifies that a hold has been paid and promotes it to
// mainnet. Calling it again for a name already on mainnet is a no-op
// success, so payment pollers can retry freely.
func (s *Service) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	cfg, err := s.activeDomain(ctx, req.Domain)
	if err != nil {
		return nil, err
	}

	res, err := s.search.SearchTag(ctx, search.Query{Label: req.Label, Domain: cfg})
	if err != nil {
		return nil, err
	}
	if res.Tag == nil {
		return nil, zelferr.ErrTagNotFound
	}
	if !res.Tag.IsHold() {
		// Already promoted; nothing left to confirm.
		return &ConfirmResult{
			Tag:          res.Tag,
			Confirmation: model.Confirmation{Confirmed: true, Network: req.Network},
		}, nil
	}

	hold := res.Tag
	now := s.now()
	if hold.Expired(now) {
		// A lapsed hold no longer reserves the name; the lease must be
		// taken out again.
		return nil, zelferr.ErrTagNotFound
	}

	conf := model.Confirmation{Confirmed: true, Network: req.Network}
	if hold.Price > 0 {
		conf, err = s.payments.Confirm(ctx, req.Network, req.PaymentRef, hold.Price)
		if err != nil {
			return nil, err
		}
		if !conf.Confirmed {
			return nil, zelferr.ErrPaymentConfirmationFailed
		}
	}

	promoted := *hold
	promoted.Name = cfg.FullName(req.Label)
	promoted.Status = model.TagStatusMainnet
	promoted.RegisteredAt = now
	promoted.ExpiresAt = term(now, hold.Duration)
	promoted.Artifacts = nil

	if _, err := s.writer.Replace(ctx, s.search.Enabled(cfg), &promoted, hold.Artifacts); err != nil {
		return nil, err
	}

	metrics.Promotions.WithLabelValues(cfg.Name).Inc()
	s.logger.Info().
		Str("name", promoted.Name).
		Str("network", conf.Network).
		Str("method", conf.Method).
		Float64("amount", conf.AmountReceived).
		Msg("hold promoted to mainnet")

	return &ConfirmResult{Tag: &promoted, Confirmation: conf}, nil
}

// RenewRequest asks to extend a mainnet lease by a purchased duration.
type RenewRequest struct {
	Domain     string
	Label      string
	Duration   string
	Network    string
	PaymentRef string
}

// Renew extends a mainnet record's expiry by the purchased duration. The
// record is fully re-serialized and re-written: content-addressed stores
// have no in-place update.
func (s *Service) Renew(ctx context.Context, req RenewRequest) (*LeaseResult, error) {
	cfg, err := s.activeDomain(ctx, req.Domain)
	if err != nil {
		return nil, err
	}

	rec, err := s.search.Resolve(ctx, cfg, req.Label)
	if err != nil {
		return nil, err
	}
	if rec.IsHold() {
		// Holds settle through ConfirmPayment, not renewal.
		return nil, zelferr.ErrTagNotFound
	}

	duration := req.Duration
	if duration == "" {
		duration = "1"
	}
	quote, err := pricing.Price(cfg, req.Label, duration, "")
	if err != nil {
		return nil, err
	}

	if !quote.Free() {
		conf, err := s.payments.Confirm(ctx, req.Network, req.PaymentRef, quote.Price)
		if err != nil {
			return nil, err
		}
		if !conf.Confirmed {
			return nil, zelferr.ErrPaymentConfirmationFailed
		}
	}

	// An expired record renews from now; a live one extends its term.
	now := s.now()
	base := rec.ExpiresAt
	if base.Before(now) {
		base = now
	}

	renewed := *rec
	renewed.Duration = duration
	renewed.Price = quote.Price
	renewed.ExpiresAt = term(base, duration)
	renewed.Artifacts = nil

	if _, err := s.writer.Replace(ctx, s.search.Enabled(cfg), &renewed, rec.Artifacts); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("name", renewed.Name).
		Str("duration", duration).
		Time("expires_at", renewed.ExpiresAt).
		Msg("lease renewed")

	return &LeaseResult{Tag: &renewed, Quote: quote}, nil
}
