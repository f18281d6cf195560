// Package metrics exposes per-bearer Prometheus instrumentation for the
// RLC-AM and PDCP entities. Every counter/gauge/histogram is labeled by
// lcid so one process can host many bearers under one registry.
//
// Grounded on github.com/prometheus/client_golang, the one third-party
// dependency shared by three separate repos in the retrieval pack
// (aistore, runZeroInc-conniver, runZeroInc-sockstats).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the metric families shared across every bearer in a
// process. Construct one per process and derive a BearerMetrics per bearer
// with ForBearer.
type Registry struct {
	txPDUs            *prometheus.CounterVec
	rxPDUs            *prometheus.CounterVec
	txBytes           *prometheus.CounterVec
	rxBytes           *prometheus.CounterVec
	lostSDUs          *prometheus.CounterVec
	txErrors          *prometheus.CounterVec
	rxBufferedBytes   *prometheus.GaugeVec
	reassemblyLatency *prometheus.HistogramVec
}

// NewRegistry constructs a Registry and registers its collectors with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		txPDUs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l2core_tx_pdus_total",
			Help: "Number of PDUs transmitted.",
		}, []string{"lcid"}),
		rxPDUs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l2core_rx_pdus_total",
			Help: "Number of PDUs received.",
		}, []string{"lcid"}),
		txBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l2core_tx_bytes_total",
			Help: "Bytes transmitted.",
		}, []string{"lcid"}),
		rxBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l2core_rx_bytes_total",
			Help: "Bytes received.",
		}, []string{"lcid"}),
		lostSDUs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l2core_lost_sdus_total",
			Help: "SDUs declared lost (max retx exceeded, or discarded).",
		}, []string{"lcid"}),
		txErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l2core_tx_errors_total",
			Help: "Transmit-path errors (queue full, out of memory).",
		}, []string{"lcid"}),
		rxBufferedBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "l2core_rx_buffered_bytes",
			Help: "Bytes currently held in the receive reassembly/reorder buffer.",
		}, []string{"lcid"}),
		reassemblyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "l2core_reassembly_latency_ticks",
			Help:    "Ticks between first segment arrival and SDU reassembly completion.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"lcid"}),
	}
	reg.MustRegister(
		r.txPDUs, r.rxPDUs, r.txBytes, r.rxBytes,
		r.lostSDUs, r.txErrors, r.rxBufferedBytes, r.reassemblyLatency,
	)
	return r
}

// BearerMetrics is a registry pre-bound to one bearer's lcid label. A nil
// *BearerMetrics is valid and every method on it is a no-op, so entities
// can be constructed without a Registry in tests.
type BearerMetrics struct {
	txPDUs            prometheus.Counter
	rxPDUs            prometheus.Counter
	txBytes           prometheus.Counter
	rxBytes           prometheus.Counter
	lostSDUs          prometheus.Counter
	txErrors          prometheus.Counter
	rxBufferedBytes   prometheus.Gauge
	reassemblyLatency prometheus.Observer
}

// ForBearer binds r's metric families to lcid. r may be nil, in which case
// the returned BearerMetrics is the nil-safe no-op.
func (r *Registry) ForBearer(lcid uint16) *BearerMetrics {
	if r == nil {
		return nil
	}
	label := prometheus.Labels{"lcid": strconv.FormatUint(uint64(lcid), 10)}
	return &BearerMetrics{
		txPDUs:            r.txPDUs.With(label),
		rxPDUs:            r.rxPDUs.With(label),
		txBytes:           r.txBytes.With(label),
		rxBytes:           r.rxBytes.With(label),
		lostSDUs:          r.lostSDUs.With(label),
		txErrors:          r.txErrors.With(label),
		rxBufferedBytes:   r.rxBufferedBytes.With(label),
		reassemblyLatency: r.reassemblyLatency.With(label),
	}
}

func (m *BearerMetrics) TxPDU(bytes int) {
	if m == nil {
		return
	}
	m.txPDUs.Inc()
	m.txBytes.Add(float64(bytes))
}

func (m *BearerMetrics) RxPDU(bytes int) {
	if m == nil {
		return
	}
	m.rxPDUs.Inc()
	m.rxBytes.Add(float64(bytes))
}

func (m *BearerMetrics) LostSDU() {
	if m == nil {
		return
	}
	m.lostSDUs.Inc()
}

func (m *BearerMetrics) TxError() {
	if m == nil {
		return
	}
	m.txErrors.Inc()
}

func (m *BearerMetrics) SetRxBufferedBytes(n int) {
	if m == nil {
		return
	}
	m.rxBufferedBytes.Set(float64(n))
}

func (m *BearerMetrics) ObserveReassemblyLatency(ticks uint64) {
	if m == nil {
		return
	}
	m.reassemblyLatency.Observe(float64(ticks))
}
