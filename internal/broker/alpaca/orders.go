package alpaca

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/camuig/strategy-trader/internal/broker"
)

type orderRequestDTO struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id"`
}

type orderDTO struct {
	ID             string          `json:"id"`
	ClientOrderID  string          `json:"client_order_id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Qty            decimal.Decimal `json:"qty"`
	Status         string          `json:"status"`
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
}

func (c *Client) CreateOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	if req.Type == "" {
		req.Type = broker.OrderTypeMarket
	}
	if req.TimeInForce == "" {
		req.TimeInForce = broker.TimeInForceDay
	}

	body := orderRequestDTO{
		Symbol:        req.Symbol,
		Qty:           decimal.NewFromFloat(req.Qty).String(),
		Side:          string(req.Side),
		Type:          string(req.Type),
		TimeInForce:   string(req.TimeInForce),
		ClientOrderID: uuid.NewString(),
	}

	var dto orderDTO
	if err := c.do(ctx, http.MethodPost, c.baseURL, "/v2/orders", nil, body, &dto); err != nil {
		return broker.Order{}, fmt.Errorf("%s order %s: %w", req.Side, req.Symbol, err)
	}

	c.logger.Info("order submitted",
		"symbol", dto.Symbol, "side", dto.Side, "qty", body.Qty,
		"order_id", dto.ID, "status", dto.Status)

	return broker.Order{
		ID:             dto.ID,
		ClientOrderID:  dto.ClientOrderID,
		Symbol:         dto.Symbol,
		Side:           broker.Side(dto.Side),
		Qty:            dto.Qty.InexactFloat64(),
		Status:         dto.Status,
		FilledAvgPrice: dto.FilledAvgPrice.InexactFloat64(),
	}, nil
}

// CreateDerivativeOrder submits a market day order for an option contract.
func (c *Client) CreateDerivativeOrder(ctx context.Context, contractSymbol string, side broker.Side, qty float64) (broker.Order, error) {
	return c.CreateOrder(ctx, broker.OrderRequest{
		Symbol:      contractSymbol,
		Side:        side,
		Type:        broker.OrderTypeMarket,
		TimeInForce: broker.TimeInForceDay,
		Qty:         qty,
	})
}
