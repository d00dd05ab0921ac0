// Package tinkoff implements broker.Port on the Russian Investments gRPC SDK.
// Only shares are supported. Quantities crossing the Port are in shares and
// are converted to lots when an order is placed.
package tinkoff

import (
	"context"
	"fmt"
	"sync"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"

	"github.com/camuig/strategy-trader/internal/broker"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
)

const (
	sandboxEndpoint = "sandbox-invest-public-api.tinkoff.ru:443"
	liveEndpoint    = "invest-public-api.tinkoff.ru:443"

	appName = "strategy-trader"
)

var (
	_ broker.Port            = (*Client)(nil)
	_ broker.HistoryProvider = (*Client)(nil)
)

type Client struct {
	sdk    *investgo.Client
	cfg    config.TinkoffConfig
	logger *logger.Logger

	// ticker <-> instrument uid, and shares per lot by uid
	uidByTicker sync.Map
	tickerByUID sync.Map
	lotByUID    sync.Map
}

func NewClient(ctx context.Context, cfg config.TinkoffConfig, log *logger.Logger) (*Client, error) {
	endpoint := liveEndpoint
	if cfg.Sandbox {
		endpoint = sandboxEndpoint
	}

	sdk, err := investgo.NewClient(ctx, investgo.Config{
		EndPoint:  endpoint,
		Token:     cfg.Token,
		AccountId: cfg.AccountID,
		AppName:   appName,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create investgo client: %w", err)
	}

	c := &Client{
		sdk:    sdk,
		cfg:    cfg,
		logger: log.Component("tinkoff"),
	}

	if cfg.Sandbox && cfg.AccountID == "" {
		if err := c.fundSandbox(); err != nil {
			return nil, fmt.Errorf("setup sandbox: %w", err)
		}
	}

	return c, nil
}

func (c *Client) fundSandbox() error {
	sandbox := c.sdk.NewSandboxServiceClient()

	_, err := sandbox.SandboxPayIn(&investgo.SandboxPayInRequest{
		AccountId: c.AccountID(),
		Currency:  "RUB",
		Unit:      1000000,
	})
	if err != nil {
		return fmt.Errorf("sandbox pay in: %w", err)
	}

	c.logger.Info("sandbox account funded", "account_id", c.AccountID())
	return nil
}

func (c *Client) AccountID() string {
	return c.sdk.Config.AccountId
}

func (c *Client) Stop() error {
	return c.sdk.Stop()
}

// GetDerivativeChain is not offered: the venue exposes no open interest feed.
func (c *Client) GetDerivativeChain(ctx context.Context, symbol string) ([]broker.Contract, error) {
	return nil, fmt.Errorf("derivative chain %s: %w", symbol, broker.ErrUnsupported)
}

func (c *Client) CreateDerivativeOrder(ctx context.Context, contractSymbol string, side broker.Side, qty float64) (broker.Order, error) {
	return broker.Order{}, fmt.Errorf("derivative order %s: %w", contractSymbol, broker.ErrUnsupported)
}
