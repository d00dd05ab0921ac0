package broker

import (
	"sort"
	"time"
)

// ContractFilter narrows a derivative chain down to acceptable contracts.
type ContractFilter struct {
	Type            string
	MinOpenInterest float64
	// MaxStrike is ignored when zero.
	MaxStrike float64
	// ExpiresBefore is ignored when zero.
	ExpiresBefore time.Time
}

// FindBestContract keeps live contracts of the requested type that pass the
// filter, then orders them by open interest descending and strike ascending
// for calls (descending for puts). The first one wins.
func FindBestContract(chain []Contract, f ContractFilter) (Contract, bool) {
	candidates := make([]Contract, 0, len(chain))
	for _, c := range chain {
		if c.Type != f.Type || !c.Live() {
			continue
		}
		if c.OpenInterest < f.MinOpenInterest {
			continue
		}
		if f.MaxStrike > 0 && c.Strike > f.MaxStrike {
			continue
		}
		if !f.ExpiresBefore.IsZero() && !c.Expiration.IsZero() && c.Expiration.After(f.ExpiresBefore) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return Contract{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.OpenInterest != b.OpenInterest {
			return a.OpenInterest > b.OpenInterest
		}
		if f.Type == ContractPut {
			return a.Strike > b.Strike
		}
		return a.Strike < b.Strike
	})
	return candidates[0], true
}
