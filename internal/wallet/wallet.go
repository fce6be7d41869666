// Package wallet wraps the per-chain address derivation collaborator.
// Derivation is a pure function of the seed phrase on the remote side.
package wallet

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// Chains every lease derives receiving addresses for.
var DefaultChains = []string{"ETH", "BTC", "SOL", "SUI"}

// Deriver is the derivation collaborator contract.
type Deriver interface {
	// DeriveAddresses returns one receiving address per chain for a seed
	// phrase. Secret keys never cross this boundary.
	DeriveAddresses(ctx context.Context, seedPhrase string, chains []string) (map[string]string, error)
}

// HTTPDeriver talks to the hosted key service.
type HTTPDeriver struct {
	client *resty.Client
}

func NewHTTPDeriver(baseURL string) *HTTPDeriver {
	return &HTTPDeriver{client: resty.New().SetBaseURL(baseURL)}
}

func (d *HTTPDeriver) DeriveAddresses(ctx context.Context, seedPhrase string, chains []string) (map[string]string, error) {
	var out struct {
		Addresses map[string]string `json:"addresses"`
	}
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"seed_phrase": seedPhrase, "chains": chains}).
		SetResult(&out).
		Post("/derive")
	if err != nil {
		return nil, zelferr.ErrUpstream.WithCause(fmt.Errorf("derive addresses: %w", err))
	}
	if resp.IsError() {
		return nil, zelferr.ErrUpstream.WithCause(fmt.Errorf("derive addresses: status %d", resp.StatusCode()))
	}
	return out.Addresses, nil
}
