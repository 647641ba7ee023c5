package slowbroker

// flushHistoryNoiseFloor filters out near-zero historical flush samples so
// a long run of noise doesn't produce a degenerate percentile.
const flushHistoryNoiseFloor = 5.0

// extracted holds the four per-broker mappings MetricExtractor produces,
// plus the set of brokers skipped this round for negligible ingress.
type extracted struct {
	currentFlush   map[BrokerID]float64
	historyFlush   map[BrokerID][]float64
	currentPerByte map[BrokerID]float64
	historyPerByte map[BrokerID][]float64
	skipped        []BrokerID
}

// extractMetrics derives the flush and per-byte metrics for every broker
// present in current, using history for the historical side of each
// metric. A broker whose current ingress (leader + replication bytes/sec)
// is below threshold is skipped entirely: it contributes to neither
// classifier nor scoreboard update this round.
func extractMetrics(current map[BrokerID]MetricSnapshot, history map[BrokerID]MetricHistory, threshold float64) extracted {
	out := extracted{
		currentFlush:   make(map[BrokerID]float64, len(current)),
		historyFlush:   make(map[BrokerID][]float64, len(current)),
		currentPerByte: make(map[BrokerID]float64, len(current)),
		historyPerByte: make(map[BrokerID][]float64, len(current)),
	}

	for id, snap := range current {
		bytesIn := snap.LeaderBytesIn + snap.ReplicationBytesIn
		if bytesIn < threshold {
			out.skipped = append(out.skipped, id)
			continue
		}

		out.currentFlush[id] = snap.LogFlushP999Ms
		// Guarded above by the threshold check; bytesIn >= threshold > 0
		// whenever threshold > 0, and when threshold == 0 a zero divisor
		// can only occur for a broker with literally zero ingress, which
		// the >= comparison still admits. Guard explicitly regardless so
		// a degenerate configuration can never emit a non-finite value.
		if bytesIn > 0 {
			out.currentPerByte[id] = snap.LogFlushP999Ms / bytesIn
		} else {
			out.skipped = append(out.skipped, id)
			delete(out.currentFlush, id)
			continue
		}

		hist, ok := history[id]
		if !ok {
			// Missing history: both derived history series are empty, so
			// the history-vs-self test simply won't fire for this broker.
			// The peer test is unaffected.
			continue
		}

		out.historyFlush[id] = filterFlushHistory(hist.LogFlushP999Ms)
		out.historyPerByte[id] = perByteHistory(hist, threshold)
	}

	return out
}

func filterFlushHistory(samples []float64) []float64 {
	filtered := make([]float64, 0, len(samples))
	for _, v := range samples {
		if v > flushHistoryNoiseFloor {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

func perByteHistory(h MetricHistory, threshold float64) []float64 {
	n := len(h.LogFlushP999Ms)
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		bytesIn := h.LeaderBytesIn[i] + h.ReplicationBytesIn[i]
		if bytesIn >= threshold && bytesIn > 0 {
			out = append(out, h.LogFlushP999Ms[i]/bytesIn)
		}
	}
	return out
}
