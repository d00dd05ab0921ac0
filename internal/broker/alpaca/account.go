package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/camuig/strategy-trader/internal/broker"
)

type accountDTO struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Currency    string          `json:"currency"`
	Cash        decimal.Decimal `json:"cash"`
	Equity      decimal.Decimal `json:"equity"`
	BuyingPower decimal.Decimal `json:"buying_power"`
}

type positionDTO struct {
	Symbol        string          `json:"symbol"`
	Qty           decimal.Decimal `json:"qty"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPL  decimal.Decimal `json:"unrealized_pl"`
	AssetClass    string          `json:"asset_class"`
}

func (p positionDTO) toPosition() broker.Position {
	return broker.Position{
		Symbol:        p.Symbol,
		Qty:           p.Qty.InexactFloat64(),
		AvgEntryPrice: p.AvgEntryPrice.InexactFloat64(),
		CurrentPrice:  p.CurrentPrice.InexactFloat64(),
		MarketValue:   p.MarketValue.InexactFloat64(),
		UnrealizedPL:  p.UnrealizedPL.InexactFloat64(),
		AssetClass:    p.AssetClass,
	}
}

func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	var dto accountDTO
	if err := c.do(ctx, http.MethodGet, c.baseURL, "/v2/account", nil, nil, &dto); err != nil {
		return broker.Account{}, fmt.Errorf("get account: %w", err)
	}
	return broker.Account{
		ID:          dto.ID,
		Status:      dto.Status,
		Currency:    dto.Currency,
		Cash:        dto.Cash.InexactFloat64(),
		Equity:      dto.Equity.InexactFloat64(),
		BuyingPower: dto.BuyingPower.InexactFloat64(),
	}, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]broker.Position, error) {
	var dtos []positionDTO
	if err := c.do(ctx, http.MethodGet, c.baseURL, "/v2/positions", nil, nil, &dtos); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	out := make([]broker.Position, 0, len(dtos))
	for _, p := range dtos {
		out = append(out, p.toPosition())
	}
	return out, nil
}

func (c *Client) GetPosition(ctx context.Context, symbol string) (*broker.Position, error) {
	var dto positionDTO
	err := c.do(ctx, http.MethodGet, c.baseURL, "/v2/positions/"+url.PathEscape(symbol), nil, nil, &dto)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", symbol, err)
	}
	pos := dto.toPosition()
	return &pos, nil
}
