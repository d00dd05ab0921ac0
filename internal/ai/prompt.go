package ai

import (
	"fmt"
	"strings"

	"github.com/camuig/strategy-trader/internal/market"
)

const systemPrompt = `You are an experienced US equities trader.
Analyze the quote, the recent daily closes and the current position for one symbol.
Decide: BUY (open a position), SELL (close the position) or HOLD.
The horizon is a few hours to two days.

Rules:
1. Do not BUY when a position is already open.
2. Only SELL when a position is open.
3. Confidence is 0 to 100, higher means more certain.

Answer strictly with one JSON object:
{"action": "BUY", "confidence": 75, "reasoning": "why"}`

// historyInPrompt caps how many closes are sent to the model.
const historyInPrompt = 20

func BuildUserPrompt(snap market.Snapshot) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %s\n", snap.Symbol)
	fmt.Fprintf(&sb, "Price: %.2f (bid %.2f x %.0f, ask %.2f x %.0f)\n",
		snap.Price, snap.Quote.BidPrice, snap.Quote.BidSize, snap.Quote.AskPrice, snap.Quote.AskSize)

	if snap.HasPosition() {
		p := snap.Position
		fmt.Fprintf(&sb, "Position: %.0f @ %.2f, unrealized P/L %.2f\n", p.Qty, p.AvgEntryPrice, p.UnrealizedPL)
	} else {
		sb.WriteString("Position: none\n")
	}

	if len(snap.History) > 0 {
		closes := snap.History
		if len(closes) > historyInPrompt {
			closes = closes[len(closes)-historyInPrompt:]
		}
		parts := make([]string, len(closes))
		for i, c := range closes {
			parts[i] = fmt.Sprintf("%.2f", c)
		}
		fmt.Fprintf(&sb, "Daily closes, oldest first: %s\n", strings.Join(parts, ", "))
		if first := closes[0]; first > 0 {
			fmt.Fprintf(&sb, "Change over window: %+.2f%%\n", (snap.Price-first)/first*100)
		}
	} else {
		sb.WriteString("Daily closes: unavailable\n")
	}

	return sb.String()
}
