package strategy

import "math"

// sma is the simple average of the last n values.
func sma(values []float64, n int) float64 {
	if n <= 0 || len(values) < n {
		return 0
	}
	var sum float64
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// rsi is the relative strength index over the last period changes, using
// simple averages. A window without losses yields 100.
func rsi(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}
	window := values[len(values)-period-1:]

	var gains, losses float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// buyQuantity sizes a buy in whole units from the rule's max position size.
func buyQuantity(cfg Config) float64 {
	return math.Floor(cfg.MaxPositionSize)
}
