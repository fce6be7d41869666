package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
)

// CoinbaseClient is both the hosted-checkout provider (charge creation)
// and the checker that confirms a charge by scanning its status timeline.
type CoinbaseClient struct {
	client       *resty.Client
	forceApprove bool
}

// Charge is a hosted-checkout reference handed back to the lessee.
type Charge struct {
	ID        string
	HostedURL string
	ExpiresAt time.Time
}

// NewCoinbaseClient builds the Coinbase Commerce client. forceApprove
// short-circuits confirmation and is only honored outside production
// (config enforces that).
func NewCoinbaseClient(baseURL, apiKey string, forceApprove bool) *CoinbaseClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("X-CC-Api-Key", apiKey).
		SetHeader("X-CC-Version", "2018-03-22")
	return &CoinbaseClient{client: client, forceApprove: forceApprove}
}

func (c *CoinbaseClient) Network() string { return "COINBASE" }

// CreateCharge opens a hosted checkout for a tag lease.
func (c *CoinbaseClient) CreateCharge(ctx context.Context, name string, amountUSD float64, metadata map[string]string) (*Charge, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"name":         name,
			"description":  "zelf tag lease",
			"pricing_type": "fixed_price",
			"local_price": map[string]string{
				"amount":   fmt.Sprintf("%.2f", amountUSD),
				"currency": "USD",
			},
			"metadata": metadata,
		}).
		Post("/charges")
	if err != nil {
		return nil, fmt.Errorf("create charge for %s: %w", name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create charge for %s: status %d: %s", name, resp.StatusCode(), resp.String())
	}

	body := resp.Body()
	charge := &Charge{
		ID:        gjson.GetBytes(body, "data.id").String(),
		HostedURL: gjson.GetBytes(body, "data.hosted_url").String(),
	}
	if exp := gjson.GetBytes(body, "data.expires_at").String(); exp != "" {
		if t, err := time.Parse(time.RFC3339, exp); err == nil {
			charge.ExpiresAt = t
		}
	}
	return charge, nil
}

// Confirm fetches the charge and scans its timeline for a terminal
// COMPLETED marker.
func (c *CoinbaseClient) Confirm(ctx context.Context, chargeID string, expectedAmount float64) (model.Confirmation, error) {
	if c.forceApprove {
		return model.Confirmation{
			Confirmed:      true,
			Network:        "COINBASE",
			Method:         model.ConfirmMethodForced,
			AmountReceived: expectedAmount,
		}, nil
	}

	resp, err := c.client.R().SetContext(ctx).Get("/charges/" + chargeID)
	if err != nil {
		return model.Confirmation{}, fmt.Errorf("get charge %s: %w", chargeID, err)
	}
	if resp.IsError() {
		return model.Confirmation{}, fmt.Errorf("get charge %s: status %d", chargeID, resp.StatusCode())
	}

	body := resp.Body()
	completed := false
	gjson.GetBytes(body, "data.timeline").ForEach(func(_, event gjson.Result) bool {
		if event.Get("status").String() == "COMPLETED" {
			completed = true
			return false
		}
		return true
	})

	return model.Confirmation{
		Confirmed:      completed,
		Network:        "COINBASE",
		Method:         model.ConfirmMethodTimeline,
		AmountReceived: gjson.GetBytes(body, "data.pricing.local.amount").Float(),
	}, nil
}
