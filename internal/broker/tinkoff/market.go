package tinkoff

import (
	"context"
	"fmt"
	"time"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"

	"github.com/camuig/strategy-trader/internal/broker"
)

func (c *Client) GetQuote(ctx context.Context, symbol string) (broker.Quote, error) {
	uid, err := c.uidForTicker(symbol)
	if err != nil {
		return broker.Quote{}, err
	}

	md := c.sdk.NewMarketDataServiceClient()
	resp, err := md.GetOrderBook(uid, 1)
	if err != nil {
		return broker.Quote{}, fmt.Errorf("get order book %s: %w", symbol, err)
	}

	q := broker.Quote{Symbol: symbol, Time: time.Now()}
	if bids := resp.GetBids(); len(bids) > 0 {
		q.BidPrice = bids[0].GetPrice().ToFloat()
		q.BidSize = float64(bids[0].GetQuantity())
	}
	if asks := resp.GetAsks(); len(asks) > 0 {
		q.AskPrice = asks[0].GetPrice().ToFloat()
		q.AskSize = float64(asks[0].GetQuantity())
	}
	if lp := resp.GetLastPrice(); lp != nil {
		q.LastPrice = lp.ToFloat()
	}
	return q, nil
}

// GetBars returns daily candles, oldest first.
func (c *Client) GetBars(ctx context.Context, symbol string, limit int) ([]broker.Bar, error) {
	if limit <= 0 {
		limit = 50
	}
	uid, err := c.uidForTicker(symbol)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	from := now.AddDate(0, 0, -2*limit)

	md := c.sdk.NewMarketDataServiceClient()
	resp, err := md.GetCandles(
		uid,
		pb.CandleInterval_CANDLE_INTERVAL_DAY,
		from, now,
		pb.GetCandlesRequest_CANDLE_SOURCE_EXCHANGE,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("get candles %s: %w", symbol, err)
	}

	candles := resp.GetCandles()
	bars := make([]broker.Bar, 0, len(candles))
	for _, cd := range candles {
		bars = append(bars, broker.Bar{
			Time:   cd.GetTime().AsTime(),
			Open:   cd.GetOpen().ToFloat(),
			High:   cd.GetHigh().ToFloat(),
			Low:    cd.GetLow().ToFloat(),
			Close:  cd.GetClose().ToFloat(),
			Volume: float64(cd.GetVolume()),
		})
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// IsMarketOpen reports whether the reference instrument accepts market
// orders through the API right now.
func (c *Client) IsMarketOpen(ctx context.Context) (bool, error) {
	uid, err := c.uidForTicker(c.cfg.ReferenceTicker)
	if err != nil {
		return false, err
	}

	md := c.sdk.NewMarketDataServiceClient()
	resp, err := md.GetTradingStatuses([]string{uid})
	if err != nil {
		return false, fmt.Errorf("get trading status: %w", err)
	}

	for _, s := range resp.GetTradingStatuses() {
		if s.GetInstrumentUid() == uid {
			return s.GetApiTradeAvailableFlag() && s.GetMarketOrderAvailableFlag(), nil
		}
	}
	return false, fmt.Errorf("no trading status for %s", c.cfg.ReferenceTicker)
}
