package tinkoff

import (
	"context"
	"fmt"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	pb "github.com/russianinvestments/invest-api-go-sdk/proto"

	"github.com/camuig/strategy-trader/internal/broker"
)

// CreateOrder places a market order. Time in force is always the trading
// day on this venue, so req.TimeInForce is ignored.
func (c *Client) CreateOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	if req.Type != "" && req.Type != broker.OrderTypeMarket {
		return broker.Order{}, fmt.Errorf("%s order type: %w", req.Type, broker.ErrUnsupported)
	}
	uid, err := c.uidForTicker(req.Symbol)
	if err != nil {
		return broker.Order{}, err
	}
	lot, err := c.lotSize(uid)
	if err != nil {
		return broker.Order{}, err
	}
	lots, err := sharesToLots(req.Qty, lot)
	if err != nil {
		return broker.Order{}, fmt.Errorf("order %s: %w", req.Symbol, err)
	}

	direction := pb.OrderDirection_ORDER_DIRECTION_BUY
	if req.Side == broker.SideSell {
		direction = pb.OrderDirection_ORDER_DIRECTION_SELL
	}

	orderID := investgo.CreateUid()
	short := &investgo.PostOrderRequestShort{
		InstrumentId: uid,
		Quantity:     lots,
		AccountId:    c.AccountID(),
		OrderType:    pb.OrderType_ORDER_TYPE_MARKET,
		OrderId:      orderID,
	}

	var resp *investgo.PostOrderResponse
	switch {
	case c.cfg.Sandbox:
		resp, err = c.sdk.NewSandboxServiceClient().PostSandboxOrder(&investgo.PostOrderRequest{
			InstrumentId: short.InstrumentId,
			Quantity:     short.Quantity,
			Direction:    direction,
			AccountId:    short.AccountId,
			OrderType:    short.OrderType,
			OrderId:      short.OrderId,
		})
	case req.Side == broker.SideSell:
		resp, err = c.sdk.NewOrdersServiceClient().Sell(short)
	default:
		resp, err = c.sdk.NewOrdersServiceClient().Buy(short)
	}
	if err != nil {
		return broker.Order{}, fmt.Errorf("%s order %s: %w", req.Side, req.Symbol, err)
	}

	order := broker.Order{
		ID:            resp.GetOrderId(),
		ClientOrderID: orderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Qty:           float64(resp.GetLotsExecuted() * lot),
		Status:        resp.GetExecutionReportStatus().String(),
	}
	if ep := resp.GetExecutedOrderPrice(); ep != nil {
		order.FilledAvgPrice = ep.ToFloat()
	}

	c.logger.Info("order submitted",
		"symbol", req.Symbol, "side", req.Side, "shares", req.Qty, "lots", lots, "order_id", order.ID)
	return order, nil
}
