package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
)

// ExplorerChecker confirms payment on an etherscan-family chain (ETH,
// AVAX). Two checks run in order: if the address balance alone covers the
// expected amount the payment is confirmed on the "balance" check;
// otherwise incoming transfers are summed and compared, because a balance
// can under-report after fees were spent forward.
//
// Known ambiguity, preserved on purpose: a wallet whose balance exceeds
// the expected amount due to unrelated prior deposits confirms on the
// balance check alone.
type ExplorerChecker struct {
	network string
	client  *resty.Client
	apiKey  string
	// decimals converts the chain's integer unit to whole coins.
	unitDivisor float64
}

func NewEthereumChecker(baseURL, apiKey string) *ExplorerChecker {
	return newExplorerChecker("ETH", baseURL, apiKey)
}

func NewAvalancheChecker(baseURL, apiKey string) *ExplorerChecker {
	return newExplorerChecker("AVAX", baseURL, apiKey)
}

func newExplorerChecker(network, baseURL, apiKey string) *ExplorerChecker {
	return &ExplorerChecker{
		network:     network,
		client:      resty.New().SetBaseURL(baseURL),
		apiKey:      apiKey,
		unitDivisor: 1e18,
	}
}

func (c *ExplorerChecker) Network() string { return c.network }

func (c *ExplorerChecker) Confirm(ctx context.Context, address string, expectedAmount float64) (model.Confirmation, error) {
	balance, err := c.balance(ctx, address)
	if err != nil {
		return model.Confirmation{}, err
	}
	if balance >= expectedAmount {
		return model.Confirmation{
			Confirmed:      true,
			Network:        c.network,
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
		Network:        c.network,
		Method:         model.ConfirmMethodTransactions,
		AmountReceived: received,
	}, nil
}

func (c *ExplorerChecker) balance(ctx context.Context, address string) (float64, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"module":  "account",
			"action":  "balance",
			"address": address,
			"tag":     "latest",
			"apikey":  c.apiKey,
		}).
		Get("")
	if err != nil {
		return 0, fmt.Errorf("%s balance for %s: %w", c.network, address, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("%s balance for %s: status %d", c.network, address, resp.StatusCode())
	}

	body := resp.Body()
	if status := gjson.GetBytes(body, "status").String(); status != "" && status != "1" {
		return 0, fmt.Errorf("%s balance for %s: %s", c.network, address, gjson.GetBytes(body, "message").String())
	}
	return gjson.GetBytes(body, "result").Float() / c.unitDivisor, nil
}

func (c *ExplorerChecker) incomingSum(ctx context.Context, address string) (float64, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"module":  "account",
			"action":  "txlist",
			"address": address,
			"sort":    "desc",
			"apikey":  c.apiKey,
		}).
		Get("")
	if err != nil {
		return 0, fmt.Errorf("%s txlist for %s: %w", c.network, address, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("%s txlist for %s: status %d", c.network, address, resp.StatusCode())
	}

	var sum float64
	gjson.GetBytes(resp.Body(), "result").ForEach(func(_, tx gjson.Result) bool {
		// Only transfers INTO the receiving address count.
		if !strings.EqualFold(tx.Get("to").String(), address) {
			return true
		}
		if tx.Get("isError").String() == "1" {
			return true
		}
		sum += tx.Get("value").Float() / c.unitDivisor
		return true
	})
	return sum, nil
}
