package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/camuig/strategy-trader/internal/broker"
)

type latestQuoteDTO struct {
	Symbol string `json:"symbol"`
	Quote  struct {
		Time     time.Time `json:"t"`
		AskPrice float64   `json:"ap"`
		AskSize  float64   `json:"as"`
		BidPrice float64   `json:"bp"`
		BidSize  float64   `json:"bs"`
	} `json:"quote"`
}

type latestTradeDTO struct {
	Trade struct {
		Price float64 `json:"p"`
	} `json:"trade"`
}

type barsDTO struct {
	Bars []struct {
		Time   time.Time `json:"t"`
		Open   float64   `json:"o"`
		High   float64   `json:"h"`
		Low    float64   `json:"l"`
		Close  float64   `json:"c"`
		Volume float64   `json:"v"`
	} `json:"bars"`
}

type clockDTO struct {
	IsOpen bool `json:"is_open"`
}

func (c *Client) GetQuote(ctx context.Context, symbol string) (broker.Quote, error) {
	q := url.Values{}
	if c.feed != "" {
		q.Set("feed", c.feed)
	}

	var dto latestQuoteDTO
	path := "/v2/stocks/" + url.PathEscape(symbol) + "/quotes/latest"
	if err := c.do(ctx, http.MethodGet, c.dataURL, path, q, nil, &dto); err != nil {
		return broker.Quote{}, fmt.Errorf("get quote %s: %w", symbol, err)
	}

	quote := broker.Quote{
		Symbol:   symbol,
		BidPrice: dto.Quote.BidPrice,
		BidSize:  dto.Quote.BidSize,
		AskPrice: dto.Quote.AskPrice,
		AskSize:  dto.Quote.AskSize,
		Time:     dto.Quote.Time,
	}

	// A one-sided or empty book still needs a reference price.
	if quote.BidPrice == 0 || quote.AskPrice == 0 {
		var trade latestTradeDTO
		path := "/v2/stocks/" + url.PathEscape(symbol) + "/trades/latest"
		if err := c.do(ctx, http.MethodGet, c.dataURL, path, q, nil, &trade); err != nil {
			c.logger.Debug("latest trade unavailable", "symbol", symbol, "error", err)
		} else {
			quote.LastPrice = trade.Trade.Price
		}
	}

	return quote, nil
}

// GetBars returns up to limit daily bars, oldest first.
func (c *Client) GetBars(ctx context.Context, symbol string, limit int) ([]broker.Bar, error) {
	if limit <= 0 {
		limit = 50
	}
	q := url.Values{}
	q.Set("timeframe", "1Day")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("adjustment", "raw")
	// Calendar days outnumber sessions; ask for twice the span.
	q.Set("start", c.now().AddDate(0, 0, -2*limit).UTC().Format(time.RFC3339))
	if c.feed != "" {
		q.Set("feed", c.feed)
	}

	var dto barsDTO
	path := "/v2/stocks/" + url.PathEscape(symbol) + "/bars"
	if err := c.do(ctx, http.MethodGet, c.dataURL, path, q, nil, &dto); err != nil {
		return nil, fmt.Errorf("get bars %s: %w", symbol, err)
	}

	bars := make([]broker.Bar, 0, len(dto.Bars))
	for _, b := range dto.Bars {
		bars = append(bars, broker.Bar{
			Time:   b.Time,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (c *Client) IsMarketOpen(ctx context.Context) (bool, error) {
	var dto clockDTO
	if err := c.do(ctx, http.MethodGet, c.baseURL, "/v2/clock", nil, nil, &dto); err != nil {
		return false, fmt.Errorf("get clock: %w", err)
	}
	return dto.IsOpen, nil
}
