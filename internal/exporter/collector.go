package exporter

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wmc1992/npustat/internal/npu"
	"github.com/wmc1992/npustat/internal/stat"
)

// QueryFunc runs one status query per scrape.
type QueryFunc func(ctx context.Context) (*stat.Collection, error)

// both tools report chip memory in MB
const megabyte = 1 << 20

var chipLabels = []string{"card_id", "chip_id", "device_id", "chip_name"}

// Collector queries the NPUs on every scrape and reports the result as
// const metrics. Readings the tools could not report are left out.
type Collector struct {
	query   QueryFunc
	timeout time.Duration
	log     *zap.Logger

	duration prometheus.Histogram
	failures prometheus.Counter

	up          *prometheus.Desc
	info        *prometheus.Desc
	cardPower   *prometheus.Desc
	temperature *prometheus.Desc
	aicore      *prometheus.Desc
	memUsed     *prometheus.Desc
	memTotal    *prometheus.Desc
	health      *prometheus.Desc
}

func NewCollector(query QueryFunc, timeout time.Duration, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{
		query:   query,
		timeout: timeout,
		log:     log,

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "npustat_query_duration_seconds",
			Help:    "Duration of NPU status queries in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "npustat_query_failures_total",
			Help: "Total number of failed NPU status queries.",
		}),

		up: prometheus.NewDesc("npustat_up",
			"Whether the last NPU status query succeeded.", nil, nil),
		info: prometheus.NewDesc("npustat_info",
			"Tool version and host of the last query.", []string{"version", "hostname", "backend"}, nil),
		cardPower: prometheus.NewDesc("npustat_card_power_watts",
			"Card power in watts.", []string{"card_id", "type"}, nil),
		temperature: prometheus.NewDesc("npustat_chip_temperature_celsius",
			"Chip temperature in degrees Celsius.", chipLabels, nil),
		aicore: prometheus.NewDesc("npustat_chip_aicore_usage_ratio",
			"AI core utilisation between 0 and 1.", chipLabels, nil),
		memUsed: prometheus.NewDesc("npustat_chip_memory_used_bytes",
			"Chip memory in use in bytes.", chipLabels, nil),
		memTotal: prometheus.NewDesc("npustat_chip_memory_total_bytes",
			"Chip memory capacity in bytes.", chipLabels, nil),
		health: prometheus.NewDesc("npustat_chip_health",
			"Chip health, 1 for the reported state.", append(append([]string{}, chipLabels...), "health"), nil),
	}
}

// Register adds the collector and its self metrics to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c, c.duration, c.failures} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.info
	ch <- c.cardPower
	ch <- c.temperature
	ch <- c.aicore
	ch <- c.memUsed
	ch <- c.memTotal
	ch <- c.health
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	col, err := c.query(ctx)
	c.duration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.failures.Inc()
		c.log.Warn("scrape query failed", zap.Error(err))
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1, col.Version, col.Hostname, col.Backend)

	for _, card := range col.Cards {
		if w, ok := npu.ParseWatts(card.Power); ok {
			ch <- prometheus.MustNewConstMetric(c.cardPower, prometheus.GaugeValue, w, card.CardID, card.Type)
		}
		for _, chip := range card.Chips {
			labels := []string{card.CardID, chip.ChipID, chip.DeviceID, chip.ChipName}
			if v, ok := chip.Temperature.Value(); ok {
				ch <- prometheus.MustNewConstMetric(c.temperature, prometheus.GaugeValue, float64(v), labels...)
			}
			if v, ok := chip.AICoreUsage.Value(); ok {
				ch <- prometheus.MustNewConstMetric(c.aicore, prometheus.GaugeValue, float64(v)/100, labels...)
			}
			if v, ok := chip.MemoryUsed.Float(); ok {
				ch <- prometheus.MustNewConstMetric(c.memUsed, prometheus.GaugeValue, v*megabyte, labels...)
			}
			if v, ok := chip.MemoryTotal.Float(); ok {
				ch <- prometheus.MustNewConstMetric(c.memTotal, prometheus.GaugeValue, v*megabyte, labels...)
			}
			ch <- prometheus.MustNewConstMetric(c.health, prometheus.GaugeValue, 1, append(labels, string(chip.Health))...)
		}
	}
}
