// Package gdpmetrics defines the Prometheus metrics exported by a
// gdp-router node: per-action packet counters, the resident route store
// size, AEAD failure counters, and RIB round-trip latency.
package gdpmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dantte-lp/gdp-router/internal/gdp"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "gdp"
	subsystem = "router"
)

// Label names for GDP metrics.
const (
	labelAction = "action"
	labelPort   = "port"
)

// -------------------------------------------------------------------------
// Collector — Prometheus GDP Router Metrics
// -------------------------------------------------------------------------

// Collector holds all gdp-router Prometheus metrics.
//
//   - PacketsByAction tracks packets processed per GDP action, per port.
//   - StoreSize tracks the resident name->address route store's entry count.
//   - AEADFailures flags packets that failed to decrypt or authenticate.
//   - RibRoundTrip records the latency between an ActionRibGet and its
//     matching ActionRibReply, for switches that query the RIB.
type Collector struct {
	// PacketsByAction counts packets dispatched per action and port.
	PacketsByAction *prometheus.CounterVec

	// PacketsDropped counts packets dropped during pipeline processing
	// (unhandled action, expired TTL, a failed rewrite or RIB lookup, and
	// RibReply packets the switch consumes after installing the route).
	PacketsDropped *prometheus.CounterVec

	// StoreSize is the current number of entries in the route store.
	StoreSize prometheus.Gauge

	// AEADFailures counts packets whose AEAD open failed (bad key,
	// truncated ciphertext, or tampering).
	AEADFailures *prometheus.CounterVec

	// RibRoundTrip records the latency between sending an ActionRibGet and
	// receiving its ActionRibReply.
	RibRoundTrip prometheus.Histogram
}

// NewCollector creates a Collector with all GDP metrics registered against
// the provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketsByAction,
		c.PacketsDropped,
		c.StoreSize,
		c.AEADFailures,
		c.RibRoundTrip,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	actionPortLabels := []string{labelAction, labelPort}
	portLabels := []string{labelPort}

	return &Collector{
		PacketsByAction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_total",
			Help:      "Total GDP packets processed, labeled by action and port.",
		}, actionPortLabels),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total GDP packets dropped during pipeline processing, labeled by port.",
		}, portLabels),

		StoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_entries",
			Help:      "Current number of entries in the resident name-to-address route store.",
		}),

		AEADFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "aead_failures_total",
			Help:      "Total packets that failed AEAD open, labeled by port.",
		}, portLabels),

		RibRoundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rib_round_trip_seconds",
			Help:      "Latency between an ActionRibGet query and its matching ActionRibReply.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// -------------------------------------------------------------------------
// Packet Counters
// -------------------------------------------------------------------------

// IncPacket increments the per-action packet counter for the given port.
func (c *Collector) IncPacket(action gdp.Action, port string) {
	c.PacketsByAction.WithLabelValues(action.String(), port).Inc()
}

// IncDropped increments the dropped-packet counter for the given port.
func (c *Collector) IncDropped(port string) {
	c.PacketsDropped.WithLabelValues(port).Inc()
}

// -------------------------------------------------------------------------
// Store Size
// -------------------------------------------------------------------------

// SetStoreSize sets the route store size gauge to n.
func (c *Collector) SetStoreSize(n int) {
	c.StoreSize.Set(float64(n))
}

// -------------------------------------------------------------------------
// AEAD
// -------------------------------------------------------------------------

// IncAEADFailure increments the AEAD failure counter for the given port.
func (c *Collector) IncAEADFailure(port string) {
	c.AEADFailures.WithLabelValues(port).Inc()
}

// -------------------------------------------------------------------------
// RIB Round Trip
// -------------------------------------------------------------------------

// ObserveRibRoundTrip records a RibGet -> RibReply round-trip latency in
// seconds.
func (c *Collector) ObserveRibRoundTrip(seconds float64) {
	c.RibRoundTrip.Observe(seconds)
}
