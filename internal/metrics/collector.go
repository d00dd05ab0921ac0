package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "strategy_trader"

// StatusSource supplies scheduler counters to the collector.
type StatusSource interface {
	Running() bool
	Runs() int64
	Errors() int64
}

// Collector exposes the tracker and scheduler counters. Values are read at
// scrape time, so a Reset shows up as a counter reset.
type Collector struct {
	tracker *Tracker
	status  StatusSource

	trades      *prometheus.Desc
	successRate *prometheus.Desc
	symbols     *prometheus.Desc
	running     *prometheus.Desc
	runs        *prometheus.Desc
	runErrors   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector. status may be nil.
func NewCollector(tracker *Tracker, status StatusSource) *Collector {
	return &Collector{
		tracker: tracker,
		status:  status,
		trades: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "trades_total"),
			"Trade attempts by result",
			[]string{"result"}, nil,
		),
		successRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "trade_success_rate_percent"),
			"Successful trades as a percentage of all trades",
			nil, nil,
		),
		symbols: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "symbols_traded"),
			"Distinct symbols with at least one successful trade",
			nil, nil,
		),
		running: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "scheduler", "running"),
			"1 while the scheduler is running",
			nil, nil,
		),
		runs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "scheduler", "runs_total"),
			"Scheduler ticks since process start",
			nil, nil,
		),
		runErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "scheduler", "errors_total"),
			"Failed scheduler cycles since process start",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.trades
	ch <- c.successRate
	ch <- c.symbols
	if c.status != nil {
		ch <- c.running
		ch <- c.runs
		ch <- c.runErrors
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.tracker.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.trades, prometheus.CounterValue, float64(s.SuccessfulTrades), "success")
	ch <- prometheus.MustNewConstMetric(c.trades, prometheus.CounterValue, float64(s.FailedTrades), "failed")
	ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, s.SuccessRate)
	ch <- prometheus.MustNewConstMetric(c.symbols, prometheus.GaugeValue, float64(len(s.Symbols)))

	if c.status == nil {
		return
	}
	running := 0.0
	if c.status.Running() {
		running = 1
	}
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, running)
	ch <- prometheus.MustNewConstMetric(c.runs, prometheus.CounterValue, float64(c.status.Runs()))
	ch <- prometheus.MustNewConstMetric(c.runErrors, prometheus.CounterValue, float64(c.status.Errors()))
}
