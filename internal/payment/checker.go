// Package payment decides whether a hold has been paid by polling external
// settlement rails. Every check is read-only and idempotent: nothing here
// moves funds or writes anywhere.
package payment

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/metrics"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// Checker confirms payment on one network. ref is a receiving address for
// chain rails or a charge id for hosted checkout.
type Checker interface {
	Network() string
	Confirm(ctx context.Context, ref string, expectedAmount float64) (model.Confirmation, error)
}

// Registry dispatches confirmation to the checker registered for a
// network tag. One lookup table; no string switches anywhere else.
type Registry struct {
	checkers map[string]Checker
	logger   zerolog.Logger
}

func NewRegistry(logger zerolog.Logger, checkers ...Checker) *Registry {
	m := make(map[string]Checker, len(checkers))
	for _, c := range checkers {
		m[strings.ToUpper(c.Network())] = c
	}
	return &Registry{
		checkers: m,
		logger:   logger.With().Str("component", "payment").Logger(),
	}
}

// Networks lists the registered network tags.
func (r *Registry) Networks() []string {
	out := make([]string, 0, len(r.checkers))
	for network := range r.checkers {
		out = append(out, network)
	}
	return out
}

// Confirm runs the network's checker. Provider failures surface as one
// coded payment_confirmation_failed error; the full cause goes to the log.
func (r *Registry) Confirm(ctx context.Context, network, ref string, expectedAmount float64) (model.Confirmation, error) {
	checker, ok := r.checkers[strings.ToUpper(network)]
	if !ok {
		return model.Confirmation{}, zelferr.ErrPaymentConfirmationFailed.WithCause(
			errUnknownNetwork(network))
	}

	conf, err := checker.Confirm(ctx, ref, expectedAmount)
	if err != nil {
		metrics.PaymentChecks.WithLabelValues(strings.ToUpper(network), "error").Inc()
		r.logger.Error().Err(err).
			Str("network", network).
			Str("ref", ref).
			Msg("payment check failed")
		return model.Confirmation{}, zelferr.ErrPaymentConfirmationFailed.WithCause(err)
	}

	result := "unconfirmed"
	if conf.Confirmed {
		result = "confirmed"
	}
	metrics.PaymentChecks.WithLabelValues(strings.ToUpper(network), result).Inc()
	return conf, nil
}

type errUnknownNetwork string

func (e errUnknownNetwork) Error() string {
	return "no checker registered for network " + string(e)
}
