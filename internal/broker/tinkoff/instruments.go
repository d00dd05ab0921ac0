package tinkoff

import (
	"fmt"
	"math"
)

func (c *Client) remember(ticker, uid string) {
	c.uidByTicker.Store(ticker, uid)
	c.tickerByUID.Store(uid, ticker)
}

// tickerForUID resolves an instrument uid back to its ticker.
func (c *Client) tickerForUID(uid string) (string, error) {
	if cached, ok := c.tickerByUID.Load(uid); ok {
		return cached.(string), nil
	}

	instruments := c.sdk.NewInstrumentsServiceClient()
	resp, err := instruments.InstrumentByUid(uid)
	if err != nil {
		return "", fmt.Errorf("instrument by uid %s: %w", uid, err)
	}

	inst := resp.GetInstrument()
	c.remember(inst.GetTicker(), uid)
	c.lotByUID.Store(uid, normalizeLot(int64(inst.GetLot())))
	return inst.GetTicker(), nil
}

// lotSize returns how many shares one lot of the instrument holds.
func (c *Client) lotSize(uid string) (int64, error) {
	if cached, ok := c.lotByUID.Load(uid); ok {
		return cached.(int64), nil
	}

	instruments := c.sdk.NewInstrumentsServiceClient()
	resp, err := instruments.InstrumentByUid(uid)
	if err != nil {
		return 0, fmt.Errorf("instrument by uid %s: %w", uid, err)
	}

	lot := normalizeLot(int64(resp.GetInstrument().GetLot()))
	c.lotByUID.Store(uid, lot)
	return lot, nil
}

func normalizeLot(lot int64) int64 {
	if lot < 1 {
		return 1
	}
	return lot
}

// sharesToLots converts a share quantity into whole lots. Quantities that
// are not a whole number of lots are rejected instead of rounded.
func sharesToLots(shares float64, lot int64) (int64, error) {
	lots := shares / float64(lot)
	if lots < 1 {
		return 0, fmt.Errorf("quantity %v is below one lot of %d", shares, lot)
	}
	if lots != math.Trunc(lots) {
		return 0, fmt.Errorf("quantity %v is not a whole number of lots of %d", shares, lot)
	}
	return int64(lots), nil
}

// uidForTicker resolves a ticker to the instrument uid, preferring an exact match.
func (c *Client) uidForTicker(ticker string) (string, error) {
	if cached, ok := c.uidByTicker.Load(ticker); ok {
		return cached.(string), nil
	}

	instruments := c.sdk.NewInstrumentsServiceClient()
	resp, err := instruments.FindInstrument(ticker)
	if err != nil {
		return "", fmt.Errorf("find instrument %s: %w", ticker, err)
	}

	for _, inst := range resp.GetInstruments() {
		if inst.GetTicker() == ticker && inst.GetApiTradeAvailableFlag() {
			c.remember(ticker, inst.GetUid())
			return inst.GetUid(), nil
		}
	}
	for _, inst := range resp.GetInstruments() {
		if inst.GetTicker() == ticker {
			c.remember(ticker, inst.GetUid())
			return inst.GetUid(), nil
		}
	}

	return "", fmt.Errorf("instrument not found: %s", ticker)
}
