package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilBearerMetricsAreNoOp(t *testing.T) {
	var m *BearerMetrics
	assert.NotPanics(t, func() {
		m.TxPDU(100)
		m.RxPDU(50)
		m.LostSDU()
		m.TxError()
		m.SetRxBufferedBytes(10)
		m.ObserveReassemblyLatency(3)
	})
}

func TestBearerMetricsRecordsAgainstLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)
	bm := r.ForBearer(5)
	require.NotNil(t, bm)

	bm.TxPDU(128)
	bm.TxPDU(64)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "l2core_tx_pdus_total" {
			found = f
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Metric, 1)
	assert.Equal(t, "5", found.Metric[0].Label[0].GetValue())
	assert.Equal(t, float64(2), found.Metric[0].Counter.GetValue())
}
