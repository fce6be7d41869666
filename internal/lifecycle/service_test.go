package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/consistency"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/sealer"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/search"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/storage"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

func avaxConfig() *model.DomainConfig {
	return &model.DomainConfig{
		Name:       "avax",
		Status:     model.DomainStatusActive,
		HoldSuffix: ".hold",
		Validation: model.NameRule{MinLength: 1, MaxLength: 15},
		Pricing: model.PricingTable{
			"3": {"1": 72, "2": 144, "lifetime": 1080},
			"4": {"1": 0},
		},
		RewardPricePerUnit: 10,
		Backends:           model.BackendFlags{IPFS: true, Arweave: true},
	}
}

type fakeDomains struct{ cfg *model.DomainConfig }

func (f fakeDomains) GetDomain(_ context.Context, name string) (*model.DomainConfig, error) {
	if f.cfg != nil && name == f.cfg.Name {
		return f.cfg, nil
	}
	return nil, zelferr.ErrDomainNotFound
}

type fakeSealer struct {
	sealErr error
	openErr error
	opened  int
}

func (f *fakeSealer) Seal(context.Context, sealer.SealRequest) (string, error) {
	if f.sealErr != nil {
		return "", f.sealErr
	}
	return "sealed-blob", nil
}

func (f *fakeSealer) Open(context.Context, sealer.OpenRequest) (*sealer.OpenResult, error) {
	f.opened++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &sealer.OpenResult{Payload: map[string]string{}}, nil
}

func (f *fakeSealer) Preview(context.Context, string) (*sealer.PreviewResult, error) {
	return &sealer.PreviewResult{}, nil
}

type fakePayments struct {
	conf         model.Confirmation
	err          error
	calls        int
	lastNetwork  string
	lastRef      string
	lastExpected float64
}

func (f *fakePayments) Confirm(_ context.Context, network, ref string, expected float64) (model.Confirmation, error) {
	f.calls++
	f.lastNetwork = network
	f.lastRef = ref
	f.lastExpected = expected
	if f.err != nil {
		return model.Confirmation{}, f.err
	}
	return f.conf, nil
}

type fakeIntents struct {
	calls      int
	lastAmount float64
	err        error
}

func (f *fakeIntents) NewIntent(_ context.Context, tagName string, amountUSD float64, _ *model.PaymentIntent) (*model.PaymentIntent, error) {
	f.calls++
	f.lastAmount = amountUSD
	if f.err != nil {
		return nil, f.err
	}
	return &model.PaymentIntent{
		ID:        "intent-1",
		TagName:   tagName,
		Addresses: map[string]string{"ETH": "0xpay"},
		AmountUSD: amountUSD,
		Count:     1,
	}, nil
}

type fakeLocker struct {
	acquired int
	released int
	fail     bool
}

func (f *fakeLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.fail {
		return nil, zelferr.ErrTagAlreadyExists
	}
	f.acquired++
	return func() { f.released++ }, nil
}

type harness struct {
	svc      *Service
	cfg      *model.DomainConfig
	ipfs     *storage.MemoryBackend
	arweave  *storage.MemoryBackend
	search   *search.Service
	writer   *consistency.Controller
	sealer   *fakeSealer
	payments *fakePayments
	intents  *fakeIntents
	now      time.Time
}

func newHarness(cfg *model.DomainConfig) *harness {
	logger := zerolog.Nop()
	h := &harness{
		cfg:      cfg,
		ipfs:     storage.NewMemoryBackend(storage.NameIPFS),
		arweave:  storage.NewMemoryBackend(storage.NameArweave),
		sealer:   &fakeSealer{},
		payments: &fakePayments{},
		intents:  &fakeIntents{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	backends := map[string]storage.Backend{
		storage.NameIPFS:    h.ipfs,
		storage.NameArweave: h.arweave,
	}
	h.search = search.NewService(backends, logger)
	h.writer = consistency.NewController(logger)
	h.svc = &Service{
		domains:  fakeDomains{cfg},
		search:   h.search,
		writer:   h.writer,
		sealer:   h.sealer,
		payments: h.payments,
		intents:  h.intents,
		logger:   logger,
		now:      func() time.Time { return h.now },
	}
	return h
}

// seed writes a record straight through the consistency controller,
// bypassing the lifecycle.
func (h *harness) seed(t *testing.T, rec *model.TagRecord) {
	t.Helper()
	_, err := h.writer.Replace(context.Background(), h.search.Enabled(h.cfg), rec, nil)
	require.NoError(t, err)
}

func TestLeaseCreatesHold(t *testing.T) {
	h := newHarness(avaxConfig())

	res, err := h.svc.Lease(context.Background(), LeaseRequest{
		Domain:    "avax",
		Label:     "abc",
		Duration:  "1",
		Face:      "face-scan",
		Addresses: map[string]string{"ETH": "0xabc"},
	})
	require.NoError(t, err)

	require.Equal(t, "abc.hold.avax", res.Tag.Name)
	require.Equal(t, model.TagStatusHold, res.Tag.Status)
	require.Equal(t, 72.0, res.Quote.Price)
	require.Equal(t, h.now.Add(HoldTTL), res.Tag.ExpiresAt)
	require.Equal(t, "sealed-blob", res.Tag.SealedCredential)

	require.NotNil(t, res.Intent)
	require.Equal(t, 72.0, h.intents.lastAmount)

	// Holds live only in the primary content store.
	require.Equal(t, 1, h.ipfs.Len())
	require.Equal(t, 0, h.arweave.Len())

	sr, err := h.search.SearchTag(context.Background(), search.Query{Label: "abc", Domain: h.cfg})
	require.NoError(t, err)
	require.False(t, sr.Available)
	require.Equal(t, "abc.hold.avax", sr.Tag.Name)
}

func TestLeaseZeroPriceGoesStraightToMainnet(t *testing.T) {
	h := newHarness(avaxConfig())

	res, err := h.svc.Lease(context.Background(), LeaseRequest{
		Domain: "avax",
		Label:  "gift",
		Face:   "face-scan",
	})
	require.NoError(t, err)

	require.Equal(t, "gift.avax", res.Tag.Name)
	require.Equal(t, model.TagStatusMainnet, res.Tag.Status)
	require.Equal(t, h.now.AddDate(1, 0, 0), res.Tag.ExpiresAt)
	require.Nil(t, res.Intent)
	require.Zero(t, h.intents.calls)

	// Mainnet records go to every enabled backend.
	require.Equal(t, 1, h.ipfs.Len())
	require.Equal(t, 1, h.arweave.Len())
}

func TestLeaseDuplicateRejected(t *testing.T) {
	h := newHarness(avaxConfig())

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)

	_, err = h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.ErrorIs(t, err, zelferr.ErrTagAlreadyExists)
	require.Equal(t, 1, h.ipfs.Len())
}

func TestLeaseSupersedesLapsedHold(t *testing.T) {
	h := newHarness(avaxConfig())

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)

	h.now = h.now.Add(HoldTTL + time.Hour)

	res, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)
	require.Equal(t, model.TagStatusHold, res.Tag.Status)
	require.Equal(t, h.now.Add(HoldTTL), res.Tag.ExpiresAt)

	// The lapsed hold's artifact was replaced, not accumulated.
	require.Equal(t, 1, h.ipfs.Len())
}

func TestLeaseNoResolvableBackends(t *testing.T) {
	for name, flags := range map[string]model.BackendFlags{
		"all disabled": {},
		"archive only": {Archive: true},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := avaxConfig()
			cfg.Backends = flags
			h := newHarness(cfg)

			_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
			require.ErrorIs(t, err, zelferr.ErrDomainNotActive)
		})
	}
}

func TestLeaseRollsBackHoldOnIntentFailure(t *testing.T) {
	h := newHarness(avaxConfig())
	h.intents.err = errors.New("derivation service down")

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.Error(t, err)
	require.Zero(t, h.ipfs.Len())

	// With no lingering hold the name is immediately leasable again.
	h.intents.err = nil
	res, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)
	require.NotNil(t, res.Intent)
}

func TestLeaseInactiveDomain(t *testing.T) {
	cfg := avaxConfig()
	cfg.Status = model.DomainStatusSuspended
	h := newHarness(cfg)

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.ErrorIs(t, err, zelferr.ErrDomainNotActive)
}

func TestLeaseRequiredReferralMissing(t *testing.T) {
	h := newHarness(avaxConfig())

	_, err := h.svc.Lease(context.Background(), LeaseRequest{
		Domain:   "avax",
		Label:    "abc",
		Face:     "f",
		Referral: "nobody",
	})
	require.ErrorIs(t, err, zelferr.ErrReferralNotFound)
	require.Equal(t, 0, h.ipfs.Len())
}

func TestLeaseOptionalReferralDropped(t *testing.T) {
	h := newHarness(avaxConfig())

	res, err := h.svc.Lease(context.Background(), LeaseRequest{
		Domain:           "avax",
		Label:            "abc",
		Face:             "f",
		Referral:         "nobody",
		ReferralOptional: true,
	})
	require.NoError(t, err)
	require.Empty(t, res.Tag.Referrer)
	require.Equal(t, 72.0, res.Quote.Price)
}

func TestLeaseReferralDiscount(t *testing.T) {
	h := newHarness(avaxConfig())
	h.seed(t, &model.TagRecord{
		Name:      "ref.avax",
		Domain:    "avax",
		Status:    model.TagStatusMainnet,
		Addresses: map[string]string{"ETH": "0xref"},
		Origin:    model.OriginOnline,
		Duration:  "1",
		ExpiresAt: h.now.AddDate(1, 0, 0),
	})

	res, err := h.svc.Lease(context.Background(), LeaseRequest{
		Domain:   "avax",
		Label:    "abc",
		Face:     "f",
		Referral: "ref",
	})
	require.NoError(t, err)

	// Unlisted referrer gets the flat default discount off the 72 base.
	require.Equal(t, 64.8, res.Quote.Price)
	require.Equal(t, "ref", res.Tag.Referrer)
	require.Equal(t, "0xref", res.Tag.ReferrerAddress)
}

func TestLeaseOfflineRequiresCredential(t *testing.T) {
	h := newHarness(avaxConfig())

	_, err := h.svc.LeaseOffline(context.Background(), OfflineLeaseRequest{Domain: "avax", Label: "abc"})
	require.ErrorIs(t, err, zelferr.ErrVerificationFailed)
}

func TestConfirmPaymentPromotes(t *testing.T) {
	h := newHarness(avaxConfig())
	h.payments.conf = model.Confirmation{
		Confirmed:      true,
		Network:        "ETH",
		Method:         model.ConfirmMethodTransactions,
		AmountReceived: 72,
	}

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)

	res, err := h.svc.ConfirmPayment(context.Background(), ConfirmRequest{
		Domain:     "avax",
		Label:      "abc",
		Network:    "ETH",
		PaymentRef: "0xpay",
	})
	require.NoError(t, err)

	require.Equal(t, "abc.avax", res.Tag.Name)
	require.Equal(t, model.TagStatusMainnet, res.Tag.Status)
	require.Equal(t, h.now.AddDate(1, 0, 0), res.Tag.ExpiresAt)
	require.Equal(t, 72.0, h.payments.lastExpected)
	require.Equal(t, "0xpay", h.payments.lastRef)

	// Hold copy unpinned; mainnet record on both backends.
	require.Equal(t, 1, h.ipfs.Len())
	require.Equal(t, 1, h.arweave.Len())

	rec, err := h.search.Resolve(context.Background(), h.cfg, "abc")
	require.NoError(t, err)
	require.Equal(t, "abc.avax", rec.Name)

	_, err = h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.ErrorIs(t, err, zelferr.ErrTagAlreadyExists)
}

func TestConfirmPaymentIdempotentOnMainnet(t *testing.T) {
	h := newHarness(avaxConfig())
	h.payments.conf = model.Confirmation{Confirmed: true, Network: "ETH"}

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)
	_, err = h.svc.ConfirmPayment(context.Background(), ConfirmRequest{Domain: "avax", Label: "abc", Network: "ETH", PaymentRef: "0xpay"})
	require.NoError(t, err)

	res, err := h.svc.ConfirmPayment(context.Background(), ConfirmRequest{Domain: "avax", Label: "abc", Network: "ETH", PaymentRef: "0xpay"})
	require.NoError(t, err)
	require.True(t, res.Confirmation.Confirmed)
	require.Equal(t, model.TagStatusMainnet, res.Tag.Status)
	require.Equal(t, 1, h.payments.calls)
}

func TestConfirmPaymentUnconfirmed(t *testing.T) {
	h := newHarness(avaxConfig())
	h.payments.conf = model.Confirmation{Confirmed: false, Network: "ETH"}

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)

	_, err = h.svc.ConfirmPayment(context.Background(), ConfirmRequest{Domain: "avax", Label: "abc", Network: "ETH", PaymentRef: "0xpay"})
	require.ErrorIs(t, err, zelferr.ErrPaymentConfirmationFailed)

	// The hold stays put.
	rec, err := h.search.Resolve(context.Background(), h.cfg, "abc")
	require.NoError(t, err)
	require.Equal(t, model.TagStatusHold, rec.Status)
}

func TestConfirmPaymentLapsedHold(t *testing.T) {
	h := newHarness(avaxConfig())
	h.payments.conf = model.Confirmation{Confirmed: true, Network: "ETH"}

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)

	h.now = h.now.Add(HoldTTL + time.Minute)

	_, err = h.svc.ConfirmPayment(context.Background(), ConfirmRequest{Domain: "avax", Label: "abc", Network: "ETH", PaymentRef: "0xpay"})
	require.ErrorIs(t, err, zelferr.ErrTagNotFound)
	require.Zero(t, h.payments.calls)
}

func TestConfirmPaymentNoRecord(t *testing.T) {
	h := newHarness(avaxConfig())

	_, err := h.svc.ConfirmPayment(context.Background(), ConfirmRequest{Domain: "avax", Label: "ghost", Network: "ETH", PaymentRef: "0xpay"})
	require.ErrorIs(t, err, zelferr.ErrTagNotFound)
}

func TestRenewExtendsFromCurrentExpiry(t *testing.T) {
	h := newHarness(avaxConfig())
	h.payments.conf = model.Confirmation{Confirmed: true, Network: "ETH"}

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)
	_, err = h.svc.ConfirmPayment(context.Background(), ConfirmRequest{Domain: "avax", Label: "abc", Network: "ETH", PaymentRef: "0xpay"})
	require.NoError(t, err)

	res, err := h.svc.Renew(context.Background(), RenewRequest{
		Domain:     "avax",
		Label:      "abc",
		Duration:   "1",
		Network:    "ETH",
		PaymentRef: "0xpay",
	})
	require.NoError(t, err)

	// One live year plus the renewed year.
	require.Equal(t, h.now.AddDate(2, 0, 0), res.Tag.ExpiresAt)
	require.Equal(t, 72.0, res.Quote.Price)
	require.Equal(t, 1, h.ipfs.Len())
	require.Equal(t, 1, h.arweave.Len())
}

func TestRenewLifetime(t *testing.T) {
	h := newHarness(avaxConfig())
	h.payments.conf = model.Confirmation{Confirmed: true, Network: "ETH"}

	h.seed(t, &model.TagRecord{
		Name:      "abc.avax",
		Domain:    "avax",
		Status:    model.TagStatusMainnet,
		Origin:    model.OriginOnline,
		Duration:  "1",
		ExpiresAt: h.now.AddDate(1, 0, 0),
	})

	res, err := h.svc.Renew(context.Background(), RenewRequest{
		Domain:     "avax",
		Label:      "abc",
		Duration:   model.LifetimeDuration,
		Network:    "ETH",
		PaymentRef: "0xpay",
	})
	require.NoError(t, err)
	require.Equal(t, 9999, res.Tag.ExpiresAt.Year())
	require.Equal(t, 1080.0, h.payments.lastExpected)
}

func TestRenewRejectsHold(t *testing.T) {
	h := newHarness(avaxConfig())

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)

	_, err = h.svc.Renew(context.Background(), RenewRequest{Domain: "avax", Label: "abc", Duration: "1"})
	require.ErrorIs(t, err, zelferr.ErrTagNotFound)
}

func TestSyncMergesMissingAddresses(t *testing.T) {
	h := newHarness(avaxConfig())

	_, err := h.svc.LeaseOffline(context.Background(), OfflineLeaseRequest{
		Domain:           "avax",
		Label:            "gift",
		SealedCredential: "sealed-blob",
		Addresses:        map[string]string{"ETH": "0xoriginal"},
	})
	require.NoError(t, err)

	rec, err := h.svc.Sync(context.Background(), SyncRequest{
		Domain:   "avax",
		Label:    "gift",
		Face:     "face-scan",
		Password: "pw",
		Addresses: map[string]string{
			"ETH": "0xattacker",
			"SOL": "sol-addr",
		},
	})
	require.NoError(t, err)

	// Existing addresses are never overwritten; missing ones merge in.
	require.Equal(t, "0xoriginal", rec.Addresses["ETH"])
	require.Equal(t, "sol-addr", rec.Addresses["SOL"])
	require.Equal(t, model.OriginOnline, rec.Origin)
	require.Equal(t, 1, h.sealer.opened)
}

func TestSyncVerificationFailure(t *testing.T) {
	h := newHarness(avaxConfig())
	h.sealer.openErr = zelferr.ErrVerificationFailed

	_, err := h.svc.LeaseOffline(context.Background(), OfflineLeaseRequest{
		Domain:           "avax",
		Label:            "gift",
		SealedCredential: "sealed-blob",
	})
	require.NoError(t, err)

	_, err = h.svc.Sync(context.Background(), SyncRequest{Domain: "avax", Label: "gift", Face: "wrong"})
	require.ErrorIs(t, err, zelferr.ErrVerificationFailed)

	rec, err := h.search.Resolve(context.Background(), h.cfg, "gift")
	require.NoError(t, err)
	require.Equal(t, model.OriginOffline, rec.Origin)
}

func TestDeleteUnpinsEverywhere(t *testing.T) {
	h := newHarness(avaxConfig())

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "gift", Face: "f"})
	require.NoError(t, err)
	require.Equal(t, 1, h.ipfs.Len())
	require.Equal(t, 1, h.arweave.Len())

	err = h.svc.Delete(context.Background(), DeleteRequest{Domain: "avax", Label: "gift", Face: "f"})
	require.NoError(t, err)

	require.Zero(t, h.ipfs.Len())
	require.Zero(t, h.arweave.Len())

	_, err = h.search.Resolve(context.Background(), h.cfg, "gift")
	require.ErrorIs(t, err, zelferr.ErrTagNotFound)
}

func TestDeleteWrongProof(t *testing.T) {
	h := newHarness(avaxConfig())
	h.sealer.openErr = zelferr.ErrVerificationFailed

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "gift", Face: "f"})
	require.NoError(t, err)

	err = h.svc.Delete(context.Background(), DeleteRequest{Domain: "avax", Label: "gift", Face: "wrong"})
	require.ErrorIs(t, err, zelferr.ErrVerificationFailed)
	require.Equal(t, 1, h.ipfs.Len())
}

func TestLockReleasedOnBothPaths(t *testing.T) {
	h := newHarness(avaxConfig())
	locker := &fakeLocker{}
	h.svc.locker = locker

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.NoError(t, err)
	require.Equal(t, 1, locker.acquired)
	require.Equal(t, 1, locker.released)

	_, err = h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.ErrorIs(t, err, zelferr.ErrTagAlreadyExists)
	require.Equal(t, 2, locker.acquired)
	require.Equal(t, 2, locker.released)
}

func TestLockContention(t *testing.T) {
	h := newHarness(avaxConfig())
	h.svc.locker = &fakeLocker{fail: true}

	_, err := h.svc.Lease(context.Background(), LeaseRequest{Domain: "avax", Label: "abc", Face: "f"})
	require.ErrorIs(t, err, zelferr.ErrTagAlreadyExists)
	require.Zero(t, h.ipfs.Len())
}

func TestTermDurations(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, from.AddDate(1, 0, 0), term(from, "1"))
	require.Equal(t, from.AddDate(5, 0, 0), term(from, "5"))
	require.Equal(t, 9999, term(from, model.LifetimeDuration).Year())
}
