package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/strategy-trader/internal/broker"
)

const (
	chainPageSize = "1000"
	maxChainPages = 10
)

type contractDTO struct {
	Symbol           string          `json:"symbol"`
	Status           string          `json:"status"`
	Tradable         bool            `json:"tradable"`
	ExpirationDate   string          `json:"expiration_date"`
	UnderlyingSymbol string          `json:"underlying_symbol"`
	Type             string          `json:"type"`
	StrikePrice      decimal.Decimal `json:"strike_price"`
	OpenInterest     decimal.Decimal `json:"open_interest"`
	ClosePrice       decimal.Decimal `json:"close_price"`
}

type contractsDTO struct {
	Contracts     []contractDTO `json:"option_contracts"`
	NextPageToken *string       `json:"next_page_token"`
}

// GetDerivativeChain pages through every option contract on the underlying.
func (c *Client) GetDerivativeChain(ctx context.Context, symbol string) ([]broker.Contract, error) {
	q := url.Values{}
	q.Set("underlying_symbols", symbol)
	q.Set("limit", chainPageSize)

	var chain []broker.Contract
	for page := 0; page < maxChainPages; page++ {
		var dto contractsDTO
		if err := c.do(ctx, http.MethodGet, c.baseURL, "/v2/options/contracts", q, nil, &dto); err != nil {
			return nil, fmt.Errorf("get option contracts %s: %w", symbol, err)
		}
		if dto.Contracts == nil && page == 0 {
			return nil, fmt.Errorf("get option contracts %s: response has no option_contracts", symbol)
		}

		for _, oc := range dto.Contracts {
			chain = append(chain, oc.toContract())
		}

		if dto.NextPageToken == nil || *dto.NextPageToken == "" {
			break
		}
		q.Set("page_token", *dto.NextPageToken)
	}

	return chain, nil
}

func (oc contractDTO) toContract() broker.Contract {
	ct := broker.Contract{
		Symbol:       oc.Symbol,
		Underlying:   oc.UnderlyingSymbol,
		Type:         oc.Type,
		Strike:       oc.StrikePrice.InexactFloat64(),
		OpenInterest: oc.OpenInterest.InexactFloat64(),
		ClosePrice:   oc.ClosePrice.InexactFloat64(),
		Tradable:     oc.Tradable,
		Status:       oc.Status,
	}
	if exp, err := time.Parse("2006-01-02", oc.ExpirationDate); err == nil {
		ct.Expiration = exp
	}
	return ct
}
