package payment

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
)

const satsPerBTC = 1e8

// BitcoinChecker confirms against a blockstream-style API. BTC settles on
// exact equality with the expected amount: the fee model means an
// overpaying or underpaying transfer is not this lease's payment.
type BitcoinChecker struct {
	client *resty.Client
}

func NewBitcoinChecker(baseURL string) *BitcoinChecker {
	return &BitcoinChecker{client: resty.New().SetBaseURL(baseURL)}
}

func (c *BitcoinChecker) Network() string { return "BTC" }

func (c *BitcoinChecker) Confirm(ctx context.Context, address string, expectedAmount float64) (model.Confirmation, error) {
	resp, err := c.client.R().SetContext(ctx).Get("/address/" + address)
	if err != nil {
		return model.Confirmation{}, fmt.Errorf("btc address %s: %w", address, err)
	}
	if resp.IsError() {
		return model.Confirmation{}, fmt.Errorf("btc address %s: status %d", address, resp.StatusCode())
	}

	body := resp.Body()
	funded := gjson.GetBytes(body, "chain_stats.funded_txo_sum").Float() +
		gjson.GetBytes(body, "mempool_stats.funded_txo_sum").Float()
	received := funded / satsPerBTC

	return model.Confirmation{
		Confirmed:      received == expectedAmount,
		Network:        "BTC",
		Method:         model.ConfirmMethodTransactions,
		AmountReceived: received,
	}, nil
}
