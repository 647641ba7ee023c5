package slowbroker

import "golang.org/x/sync/errgroup"

// classifyMetric flags a broker on one metric if either the history test or
// the peer test fires. current/history come from one of the two metric
// mappings extractMetrics produced.
func classifyMetric(current map[BrokerID]float64, history map[BrokerID][]float64, historyPercentile, historyMargin, peerPercentile, peerMargin float64) map[BrokerID]bool {
	flagged := make(map[BrokerID]bool, len(current))

	// Peer test: percentile over every non-skipped broker's current value
	// for this metric, computed once.
	peerValues := make([]float64, 0, len(current))
	for _, v := range current {
		peerValues = append(peerValues, v)
	}
	peerSufficient := hasSufficientData(len(peerValues), peerPercentile)
	var peerBase float64
	if peerSufficient {
		peerBase = percentile(peerValues, peerPercentile)
	}

	for id, cur := range current {
		if peerSufficient && cur > peerBase*peerMargin {
			flagged[id] = true
			continue
		}

		hist := history[id]
		if hasSufficientData(len(hist), historyPercentile) {
			base := percentile(hist, historyPercentile)
			if cur > base*historyMargin {
				flagged[id] = true
			}
		}
	}

	return flagged
}

// intersectAnomalies returns the set of brokers flagged on both metrics:
// the raw latency test catches outright stalls, the per-byte test catches
// brokers whose latency is disproportionate to their workload. Both must
// fire.
func intersectAnomalies(flushFlagged, perByteFlagged map[BrokerID]bool) map[BrokerID]bool {
	anomalous := make(map[BrokerID]bool)
	for id := range flushFlagged {
		if perByteFlagged[id] {
			anomalous[id] = true
		}
	}
	return anomalous
}

// classify runs the flush and per-byte classifications concurrently (they
// are independent reads over the extractor's output) and returns their
// intersection. The round remains a single synchronous call to the
// caller; only this internal fan-out is parallelized.
func classify(ex extracted, cfg Config) (map[BrokerID]bool, error) {
	var flushFlagged, perByteFlagged map[BrokerID]bool

	var g errgroup.Group
	g.Go(func() error {
		flushFlagged = classifyMetric(ex.currentFlush, ex.historyFlush,
			cfg.MetricHistoryPercentile, cfg.MetricHistoryMargin,
			cfg.PeerMetricPercentile, cfg.PeerMetricMargin)
		return nil
	})
	g.Go(func() error {
		perByteFlagged = classifyMetric(ex.currentPerByte, ex.historyPerByte,
			cfg.MetricHistoryPercentile, cfg.MetricHistoryMargin,
			cfg.PeerMetricPercentile, cfg.PeerMetricMargin)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return intersectAnomalies(flushFlagged, perByteFlagged), nil
}
