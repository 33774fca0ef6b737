package stats

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a Prometheus-backed exporter of the counters this package
// tracks. A nil *Metrics is safe to call methods on — every method is a
// no-op — so callers can wire metrics in optionally without a parallel
// nil-check at every call site, the pattern dittofs's
// pkg/metrics/cache.go/registerOrReuse idiom establishes for this kind of
// collaborator.
type Metrics struct {
	blocksRead     prometheus.Counter
	blocksReadHit  prometheus.Counter
	cacheSize      prometheus.Gauge
	readCacheSize  prometheus.Gauge
	writeCacheSize prometheus.Gauge
}

// NewMetrics registers (or reuses, on a second call against the same
// registerer) the cache's collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	return &Metrics{
		blocksRead: registerOrReuseCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peercache",
			Name:      "blocks_read_total",
			Help:      "Total TryRead attempts, hit or miss.",
		})),
		blocksReadHit: registerOrReuseCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peercache",
			Name:      "blocks_read_hit_total",
			Help:      "TryRead attempts served from cache.",
		})),
		cacheSize: registerOrReuseGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peercache",
			Name:      "cache_size_blocks",
			Help:      "Resident blocks across all pieces.",
		})),
		readCacheSize: registerOrReuseGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peercache",
			Name:      "read_cache_size_blocks",
			Help:      "Resident clean blocks.",
		})),
		writeCacheSize: registerOrReuseGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peercache",
			Name:      "write_cache_size_blocks",
			Help:      "Resident dirty blocks.",
		})),
	}
}

// RecordRead mirrors Counters.RecordRead.
func (m *Metrics) RecordRead(hit bool) {
	if m == nil {
		return
	}
	m.blocksRead.Inc()
	if hit {
		m.blocksReadHit.Inc()
	}
}

// SetSizes mirrors Counters.SetSizes.
func (m *Metrics) SetSizes(cacheSize, readCacheSize, writeCacheSize int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(cacheSize))
	m.readCacheSize.Set(float64(readCacheSize))
	m.writeCacheSize.Set(float64(writeCacheSize))
}

// registerOrReuseCounter registers c with reg, or returns the already
// registered collector if one with the same descriptor exists.
func registerOrReuseCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
		panic(err)
	}
	return c
}

func registerOrReuseGauge(reg prometheus.Registerer, g prometheus.Gauge) prometheus.Gauge {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge)
		}
		panic(err)
	}
	return g
}
