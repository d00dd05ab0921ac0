package broker

import "time"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
)

const (
	ContractCall = "call"
	ContractPut  = "put"

	ContractStatusActive = "active"
)

type Account struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Currency    string  `json:"currency"`
	Cash        float64 `json:"cash"`
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buyingPower"`
}

type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avgEntryPrice"`
	CurrentPrice  float64 `json:"currentPrice"`
	MarketValue   float64 `json:"marketValue"`
	UnrealizedPL  float64 `json:"unrealizedPl"`
	AssetClass    string  `json:"assetClass"`
}

// IsOption reports whether the position is a derivative contract rather than
// stock. Alpaca reports "us_option", the invest API "option".
func (p Position) IsOption() bool {
	switch p.AssetClass {
	case "us_option", "option":
		return true
	}
	return false
}

type Quote struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bidPrice"`
	BidSize   float64   `json:"bidSize"`
	AskPrice  float64   `json:"askPrice"`
	AskSize   float64   `json:"askSize"`
	LastPrice float64   `json:"lastPrice"`
	Time      time.Time `json:"time"`
}

// Mid returns the bid/ask midpoint, falling back to whichever side is quoted
// and then to the last trade.
func (q Quote) Mid() float64 {
	switch {
	case q.BidPrice > 0 && q.AskPrice > 0:
		return (q.BidPrice + q.AskPrice) / 2
	case q.AskPrice > 0:
		return q.AskPrice
	case q.BidPrice > 0:
		return q.BidPrice
	default:
		return q.LastPrice
	}
}

type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Contract is one option contract on an underlying symbol.
type Contract struct {
	Symbol       string    `json:"symbol"`
	Underlying   string    `json:"underlying"`
	Type         string    `json:"type"`
	Strike       float64   `json:"strike"`
	Expiration   time.Time `json:"expiration"`
	OpenInterest float64   `json:"openInterest"`
	ClosePrice   float64   `json:"closePrice"`
	Tradable     bool      `json:"tradable"`
	Status       string    `json:"status"`
}

// Live reports whether the contract can be traded right now.
func (c Contract) Live() bool {
	return c.Tradable && c.Status == ContractStatusActive
}

type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	TimeInForce TimeInForce
	Qty         float64
}

type Order struct {
	ID             string  `json:"id"`
	ClientOrderID  string  `json:"clientOrderId"`
	Symbol         string  `json:"symbol"`
	Side           Side    `json:"side"`
	Qty            float64 `json:"qty"`
	Status         string  `json:"status"`
	FilledAvgPrice float64 `json:"filledAvgPrice"`
}
