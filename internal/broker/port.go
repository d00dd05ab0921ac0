// Package broker defines the brokerage port consumed by the trading core and
// the value types exchanged over it. Adapters live in subpackages.
package broker

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is returned by adapters for operations the venue does not offer.
var ErrUnsupported = errors.New("operation not supported by broker")

// Port is the set of brokerage operations the core depends on. Every call may
// fail with a transport or auth error.
type Port interface {
	GetAccount(ctx context.Context) (Account, error)
	GetPositions(ctx context.Context) ([]Position, error)
	// GetPosition returns nil without error when nothing is held.
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	GetDerivativeChain(ctx context.Context, symbol string) ([]Contract, error)
	CreateDerivativeOrder(ctx context.Context, contractSymbol string, side Side, qty float64) (Order, error)
	IsMarketOpen(ctx context.Context) (bool, error)
}

// HistoryProvider is implemented by adapters that can serve daily bars.
type HistoryProvider interface {
	GetBars(ctx context.Context, symbol string, limit int) ([]Bar, error)
}

// APIError is a non-2xx answer from a brokerage endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker api status %d: %s", e.StatusCode, e.Message)
}
