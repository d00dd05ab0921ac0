package tinkoff

import (
	"context"
	"fmt"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"

	"github.com/camuig/strategy-trader/internal/broker"
)

type portfolioResponse interface {
	GetTotalAmountPortfolio() *pb.MoneyValue
	GetTotalAmountCurrencies() *pb.MoneyValue
	GetPositions() []*pb.PortfolioPosition
}

func (c *Client) portfolio() (portfolioResponse, error) {
	accountID := c.AccountID()
	currency := pb.PortfolioRequest_RUB

	if c.cfg.Sandbox {
		r, err := c.sdk.NewSandboxServiceClient().GetSandboxPortfolio(accountID, currency)
		if err != nil {
			return nil, fmt.Errorf("get sandbox portfolio: %w", err)
		}
		return r.PortfolioResponse, nil
	}

	r, err := c.sdk.NewOperationsServiceClient().GetPortfolio(accountID, currency)
	if err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	return r.PortfolioResponse, nil
}

func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	resp, err := c.portfolio()
	if err != nil {
		return broker.Account{}, err
	}

	acc := broker.Account{
		ID:       c.AccountID(),
		Status:   "ACTIVE",
		Currency: "RUB",
	}
	if total := resp.GetTotalAmountPortfolio(); total != nil {
		acc.Equity = total.ToFloat()
	}
	if cash := resp.GetTotalAmountCurrencies(); cash != nil {
		acc.Cash = cash.ToFloat()
		acc.BuyingPower = acc.Cash
	}
	return acc, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]broker.Position, error) {
	resp, err := c.portfolio()
	if err != nil {
		return nil, err
	}

	var out []broker.Position
	for _, pos := range resp.GetPositions() {
		if pos.GetInstrumentType() == "currency" {
			continue
		}
		p := broker.Position{AssetClass: pos.GetInstrumentType()}
		ticker, err := c.tickerForUID(pos.GetInstrumentUid())
		if err != nil {
			c.logger.Warn("skip position with unknown ticker", "uid", pos.GetInstrumentUid(), "error", err)
			continue
		}
		p.Symbol = ticker
		// Quantity is in shares, matching what CreateOrder accepts.
		if q := pos.GetQuantity(); q != nil {
			p.Qty = q.ToFloat()
		}
		if ap := pos.GetAveragePositionPrice(); ap != nil {
			p.AvgEntryPrice = ap.ToFloat()
		}
		if cp := pos.GetCurrentPrice(); cp != nil {
			p.CurrentPrice = cp.ToFloat()
		}
		p.MarketValue = p.CurrentPrice * p.Qty
		if ey := pos.GetExpectedYield(); ey != nil {
			p.UnrealizedPL = ey.ToFloat()
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) GetPosition(ctx context.Context, symbol string) (*broker.Position, error) {
	positions, err := c.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		if p.Symbol == symbol && p.Qty != 0 {
			return &p, nil
		}
	}
	return nil, nil
}
