package strategy

import (
	"fmt"
	"strings"
)

// Decide reduces qualifying signals to one decision. It reports false when
// there is nothing to act on.
func Decide(signals []Signal, useConsensus bool) (Signal, bool) {
	if useConsensus {
		return Consensus(signals)
	}
	return Best(signals)
}

// Best returns the signal with the strictly highest confidence; on exact
// ties the earliest one wins.
func Best(signals []Signal) (Signal, bool) {
	if len(signals) == 0 {
		return Signal{}, false
	}
	best := signals[0]
	for _, s := range signals[1:] {
		if s.Confidence > best.Confidence {
			best = s
		}
	}
	return best, true
}

// Consensus picks the action with the most votes, breaking ties in the
// order buy, sell, hold. Confidence is the mean within the winning group.
func Consensus(signals []Signal) (Signal, bool) {
	if len(signals) == 0 {
		return Signal{}, false
	}

	groups := map[Action][]Signal{}
	for _, s := range signals {
		groups[s.Action] = append(groups[s.Action], s)
	}
	buys, sells, holds := len(groups[ActionBuy]), len(groups[ActionSell]), len(groups[ActionHold])

	var winner Action
	switch {
	case buys > 0 && buys >= sells && buys >= holds:
		winner = ActionBuy
	case sells > 0 && sells >= holds:
		winner = ActionSell
	default:
		winner = ActionHold
	}

	group := groups[winner]
	var sum float64
	names := make([]string, 0, len(group))
	for _, s := range group {
		sum += s.Confidence
		if name := s.Strategy(); name != "" {
			names = append(names, name)
		}
	}

	decision := Signal{
		Action:     winner,
		Confidence: sum / float64(max(len(group), 1)),
		Reason: fmt.Sprintf("consensus %d/%d for %s (buy %d, sell %d, hold %d)",
			len(group), len(signals), winner, buys, sells, holds),
		Metadata: map[string]any{
			"votes":      map[string]int{"buy": buys, "sell": sells, "hold": holds},
			"strategies": strings.Join(names, ","),
		},
	}
	if len(names) > 0 {
		decision.Metadata[MetaStrategy] = names[0]
	}
	for _, s := range group {
		if s.Quantity > 0 {
			decision.Quantity = s.Quantity
			break
		}
	}
	return decision, true
}
