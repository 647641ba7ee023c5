package slowbroker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMetric_HistoryTestFires(t *testing.T) {
	current := map[BrokerID]float64{1: 1000, 2: 10}
	history := map[BrokerID][]float64{
		1: {10, 10, 10, 10, 10, 10, 10, 10, 10, 10},
		2: {10, 10, 10, 10, 10, 10, 10, 10, 10, 10},
	}
	flagged := classifyMetric(current, history, 90, 3.0, 50, 1000.0)

	assert.True(t, flagged[BrokerID(1)])
	assert.False(t, flagged[BrokerID(2)])
}

func TestClassifyMetric_PeerTestFires(t *testing.T) {
	current := map[BrokerID]float64{1: 1000, 2: 10, 3: 12, 4: 11}
	// No history for anyone; only the peer test can fire.
	flagged := classifyMetric(current, nil, 90, 1000.0, 50, 10.0)

	assert.True(t, flagged[BrokerID(1)])
	assert.False(t, flagged[BrokerID(2)])
}

func TestClassifyMetric_InsufficientDataNeverFires(t *testing.T) {
	current := map[BrokerID]float64{1: 1000}
	history := map[BrokerID][]float64{1: {10}}
	flagged := classifyMetric(current, history, 90, 1.0, 90, 1.0)

	assert.False(t, flagged[BrokerID(1)])
}

func TestIntersectAnomalies_RequiresBothMetrics(t *testing.T) {
	flush := map[BrokerID]bool{1: true, 2: true}
	perByte := map[BrokerID]bool{2: true, 3: true}

	got := intersectAnomalies(flush, perByte)

	assert.Equal(t, map[BrokerID]bool{2: true}, got)
}

func TestClassify_IntersectionOfBothMetricsRequired(t *testing.T) {
	cfg := DefaultConfig()
	ex := extracted{
		currentFlush:   map[BrokerID]float64{1: 1000, 2: 10},
		historyFlush:   map[BrokerID][]float64{1: repeat(10, 10), 2: repeat(10, 10)},
		currentPerByte: map[BrokerID]float64{1: 10, 2: 10},
		historyPerByte: map[BrokerID][]float64{1: repeat(10, 10), 2: repeat(10, 10)},
	}

	anomalous, err := classify(ex, cfg)
	require.NoError(t, err)

	// Broker 1 is flagged on flush (history test) but not on per-byte
	// (its per-byte value matches history exactly), so it must not be
	// declared anomalous: only the intersection counts.
	assert.False(t, anomalous[BrokerID(1)])
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
