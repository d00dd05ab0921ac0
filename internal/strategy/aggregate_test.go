package strategy

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sig(action Action, confidence float64, name string) Signal {
	return Signal{Action: action, Confidence: confidence, Metadata: map[string]any{MetaStrategy: name}}
}

func TestBest(t *testing.T) {
	testCases := []struct {
		desc     string
		input    []Signal
		expected string
	}{
		{"single", []Signal{sig(ActionBuy, 0.3, "a")}, "a"},
		{"highest wins", []Signal{sig(ActionBuy, 0.2, "a"), sig(ActionBuy, 0.9, "b"), sig(ActionSell, 0.5, "c")}, "b"},
		{"first seen on tie", []Signal{sig(ActionSell, 0.7, "a"), sig(ActionBuy, 0.7, "b")}, "a"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := Best(tc.input)
			require.True(t, ok)
			assert.Equal(t, tc.expected, got.Strategy())
		})
	}

	_, ok := Best(nil)
	assert.False(t, ok)
}

func TestBestIsMaximalAndStable(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		n := 1 + rng.IntN(8)
		signals := make([]Signal, n)
		for i := range signals {
			// Coarse confidences force frequent ties.
			signals[i] = sig(ActionBuy, float64(rng.IntN(4))/4, string(rune('a'+i)))
		}

		got, ok := Best(signals)
		require.True(t, ok)

		firstMax := 0
		for i, s := range signals {
			assert.LessOrEqual(t, s.Confidence, got.Confidence)
			if s.Confidence > signals[firstMax].Confidence {
				firstMax = i
			}
		}
		assert.Equal(t, signals[firstMax].Strategy(), got.Strategy())
	}
}

func TestConsensus(t *testing.T) {
	testCases := []struct {
		desc       string
		input      []Signal
		action     Action
		confidence float64
	}{
		{"majority sell", []Signal{sig(ActionSell, 0.6, "a"), sig(ActionSell, 0.8, "b"), sig(ActionBuy, 0.9, "c")}, ActionSell, 0.7},
		{"buy sell tie goes to buy", []Signal{sig(ActionSell, 0.9, "a"), sig(ActionBuy, 0.5, "b")}, ActionBuy, 0.5},
		{"buy hold tie goes to buy", []Signal{sig(ActionHold, 0.9, "a"), sig(ActionBuy, 0.4, "b")}, ActionBuy, 0.4},
		{"sell hold tie goes to sell", []Signal{sig(ActionHold, 0.9, "a"), sig(ActionSell, 0.6, "b")}, ActionSell, 0.6},
		{"only holds", []Signal{sig(ActionHold, 0.2, "a"), sig(ActionHold, 0.4, "b")}, ActionHold, 0.3},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := Consensus(tc.input)
			require.True(t, ok)
			assert.Equal(t, tc.action, got.Action)
			assert.InDelta(t, tc.confidence, got.Confidence, 1e-9)
		})
	}

	_, ok := Consensus(nil)
	assert.False(t, ok)
}

func TestConsensusWinnerHasMostVotes(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	actions := []Action{ActionBuy, ActionSell, ActionHold}
	rank := map[Action]int{ActionBuy: 0, ActionSell: 1, ActionHold: 2}

	for range 300 {
		n := 1 + rng.IntN(7)
		signals := make([]Signal, n)
		counts := map[Action]int{}
		for i := range signals {
			a := actions[rng.IntN(3)]
			counts[a]++
			signals[i] = sig(a, rng.Float64(), "r")
		}

		got, ok := Consensus(signals)
		require.True(t, ok)
		for _, a := range actions {
			assert.GreaterOrEqual(t, counts[got.Action], counts[a])
			if counts[a] == counts[got.Action] {
				assert.LessOrEqual(t, rank[got.Action], rank[a], "tie must resolve buy > sell > hold")
			}
		}
	}
}

func TestConsensusQuantityAndTag(t *testing.T) {
	a := sig(ActionBuy, 0.6, "first")
	b := sig(ActionBuy, 0.8, "second")
	b.Quantity = 7

	got, ok := Consensus([]Signal{a, b})
	require.True(t, ok)
	assert.Equal(t, 7.0, got.Quantity)
	assert.Equal(t, "first", got.Strategy())
	assert.Equal(t, "first,second", got.Metadata["strategies"])
}

func TestDecide(t *testing.T) {
	signals := []Signal{sig(ActionBuy, 0.9, "a"), sig(ActionSell, 0.3, "b"), sig(ActionSell, 0.4, "c")}

	best, ok := Decide(signals, false)
	require.True(t, ok)
	assert.Equal(t, ActionBuy, best.Action)

	cons, ok := Decide(signals, true)
	require.True(t, ok)
	assert.Equal(t, ActionSell, cons.Action)
}
