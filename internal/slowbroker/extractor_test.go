package slowbroker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMetrics_SkipsNegligibleIngress(t *testing.T) {
	current := map[BrokerID]MetricSnapshot{
		1: {LogFlushP999Ms: 100, LeaderBytesIn: 0, ReplicationBytesIn: 0},
		2: {LogFlushP999Ms: 100, LeaderBytesIn: 600_000, ReplicationBytesIn: 500_000},
	}
	ex := extractMetrics(current, nil, 1_048_576)

	assert.Contains(t, ex.skipped, BrokerID(1))
	assert.NotContains(t, ex.currentFlush, BrokerID(1))
	assert.Contains(t, ex.currentFlush, BrokerID(2))
}

func TestExtractMetrics_BoundaryAtThreshold(t *testing.T) {
	threshold := 1_048_576.0
	current := map[BrokerID]MetricSnapshot{
		// Just under threshold: skipped.
		1: {LogFlushP999Ms: 10, LeaderBytesIn: threshold/2 - 1, ReplicationBytesIn: threshold / 2},
		// Exactly at threshold: not skipped.
		2: {LogFlushP999Ms: 10, LeaderBytesIn: threshold / 2, ReplicationBytesIn: threshold / 2},
	}
	ex := extractMetrics(current, nil, threshold)

	assert.Contains(t, ex.skipped, BrokerID(1))
	assert.NotContains(t, ex.skipped, BrokerID(2))
	assert.Contains(t, ex.currentPerByte, BrokerID(2))
}

func TestExtractMetrics_MissingHistoryLeavesEmptySeries(t *testing.T) {
	current := map[BrokerID]MetricSnapshot{
		1: {LogFlushP999Ms: 10, LeaderBytesIn: 2_000_000, ReplicationBytesIn: 0},
	}
	ex := extractMetrics(current, map[BrokerID]MetricHistory{}, 1_048_576)

	require.Contains(t, ex.currentFlush, BrokerID(1))
	assert.Empty(t, ex.historyFlush[BrokerID(1)])
	assert.Empty(t, ex.historyPerByte[BrokerID(1)])
}

func TestExtractMetrics_FlushNoiseFloorAppliesOnlyToFlushHistory(t *testing.T) {
	history := map[BrokerID]MetricHistory{
		1: {
			LogFlushP999Ms:     []float64{1, 2, 5, 5.01, 10, 20},
			LeaderBytesIn:      []float64{2_000_000, 2_000_000, 2_000_000, 2_000_000, 2_000_000, 2_000_000},
			ReplicationBytesIn: []float64{0, 0, 0, 0, 0, 0},
		},
	}
	current := map[BrokerID]MetricSnapshot{
		1: {LogFlushP999Ms: 10, LeaderBytesIn: 2_000_000, ReplicationBytesIn: 0},
	}
	ex := extractMetrics(current, history, 1_048_576)

	// Only samples strictly greater than 5.0 survive the noise floor.
	assert.Equal(t, []float64{5.01, 10, 20}, ex.historyFlush[BrokerID(1)])
	// The per-byte history has its own divisor gate, not the flush filter,
	// so all six samples (all above the ingress threshold) survive.
	assert.Len(t, ex.historyPerByte[BrokerID(1)], 6)
}

func TestExtractMetrics_PerByteHistoryGatedByThreshold(t *testing.T) {
	history := map[BrokerID]MetricHistory{
		1: {
			LogFlushP999Ms:     []float64{10, 10, 10},
			LeaderBytesIn:      []float64{0, 2_000_000, 2_000_000},
			ReplicationBytesIn: []float64{0, 0, 0},
		},
	}
	current := map[BrokerID]MetricSnapshot{
		1: {LogFlushP999Ms: 10, LeaderBytesIn: 2_000_000, ReplicationBytesIn: 0},
	}
	ex := extractMetrics(current, history, 1_048_576)

	assert.Len(t, ex.historyPerByte[BrokerID(1)], 2)
}
