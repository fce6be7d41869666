package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
)

const lamportsPerSol = 1e9

// SolanaChecker runs the balance-then-transfers dual check against a
// solscan-style API.
type SolanaChecker struct {
	client *resty.Client
}

func NewSolanaChecker(baseURL, apiKey string) *SolanaChecker {
	client := resty.New().SetBaseURL(baseURL)
	if apiKey != "" {
		client.SetHeader("token", apiKey)
	}
	return &SolanaChecker{client: client}
}

func (c *SolanaChecker) Network() string { return "SOL" }

func (c *SolanaChecker) Confirm(ctx context.Context, address string, expectedAmount float64) (model.Confirmation, error) {
	balance, err := c.balance(ctx, address)
	if err != nil {
		return model.Confirmation{}, err
	}
	if balance >= expectedAmount {
		return model.Confirmation{
			Confirmed:      true,
			Network:        "SOL",
			Method:         model.ConfirmMethodBalance,
			AmountReceived: balance,
		}, nil
	}

	received, err := c.incomingSum(ctx, address)
	if err != nil {
		return model.Confirmation{}, err
	}
	return model.Confirmation{
		Confirmed:      received >= expectedAmount,
		Network:        "SOL",
		Method:         model.ConfirmMethodTransactions,
		AmountReceived: received,
	}, nil
}

func (c *SolanaChecker) balance(ctx context.Context, address string) (float64, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		Get("/account/detail")
	if err != nil {
		return 0, fmt.Errorf("sol balance for %s: %w", address, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("sol balance for %s: status %d", address, resp.StatusCode())
	}
	return gjson.GetBytes(resp.Body(), "data.lamports").Float() / lamportsPerSol, nil
}

func (c *SolanaChecker) incomingSum(ctx context.Context, address string) (float64, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"address": address,
			"flow":    "in",
		}).
		Get("/account/transfer")
	if err != nil {
		return 0, fmt.Errorf("sol transfers for %s: %w", address, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("sol transfers for %s: status %d", address, resp.StatusCode())
	}

	var sum float64
	gjson.GetBytes(resp.Body(), "data").ForEach(func(_, transfer gjson.Result) bool {
		if !strings.EqualFold(transfer.Get("to_address").String(), address) {
			return true
		}
		sum += transfer.Get("amount").Float() / lamportsPerSol
		return true
	})
	return sum, nil
}
