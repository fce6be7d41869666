package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/platform"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/wallet"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// IntentTTL bounds how long a generated intent's addresses are quoted for.
const IntentTTL = time.Hour

// IntentService mints per-lease payment intents: a fresh receiving address
// per chain plus, when requested, a hosted-checkout charge.
type IntentService struct {
	deriver  wallet.Deriver
	checkout *CoinbaseClient
}

func NewIntentService(deriver wallet.Deriver, checkout *CoinbaseClient) *IntentService {
	return &IntentService{deriver: deriver, checkout: checkout}
}

// NewIntent generates addresses for a lease. prev, when non-nil, is the
// intent being regenerated; the counter increments so stale intents are
// never confused with the current one.
func (s *IntentService) NewIntent(ctx context.Context, tagName string, amountUSD float64, prev *model.PaymentIntent) (*model.PaymentIntent, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate intent seed: %w", err)
	}

	addresses, err := s.deriver.DeriveAddresses(ctx, hex.EncodeToString(seed), wallet.DefaultChains)
	if err != nil {
		return nil, zelferr.ErrUpstream.WithCause(fmt.Errorf("derive intent addresses for %s: %w", tagName, err))
	}

	now := time.Now()
	intent := &model.PaymentIntent{
		ID:        platform.NewID(),
		TagName:   tagName,
		Addresses: addresses,
		AmountUSD: amountUSD,
		Count:     1,
		CreatedAt: now,
		ExpiresAt: now.Add(IntentTTL),
	}
	if prev != nil {
		intent.Count = prev.Count + 1
	}

	if s.checkout != nil {
		charge, err := s.checkout.CreateCharge(ctx, tagName, amountUSD, map[string]string{
			"tagName":  tagName,
			"intentId": intent.ID,
		})
		if err != nil {
			return nil, zelferr.ErrUpstream.WithCause(err)
		}
		intent.ChargeID = charge.ID
		intent.ChargeURL = charge.HostedURL
	}

	return intent, nil
}
