package slowbroker

import (
	"fmt"
	"sort"
	"strings"
)

// escalate partitions the post-update scoreboard entries for this round's
// anomalous brokers into demote/remove bands, applies the fleet-wide
// fixability gate, and returns the anomalies to emit.
//
// clusterSize is the size of the history map handed to DetectRound — the
// total monitored population, regardless of this round's skips.
func escalate(board scoreboard, anomalous map[BrokerID]bool, clusterSize int, nowMs int64, cfg Config) []SlowBrokerAnomaly {
	var toRemove, toDemote []BrokerID

	for id := range anomalous {
		entry, ok := board[id]
		if !ok {
			// Evicted in this same round's update is impossible for an
			// anomalous broker (update always grants it score >= 1), but
			// guard defensively rather than panic on a map miss.
			continue
		}
		switch {
		case entry.Score == cfg.DecommissionScore:
			toRemove = append(toRemove, id)
		case entry.Score >= cfg.DemotionScore:
			toDemote = append(toDemote, id)
		}
	}

	flagged := len(toRemove) + len(toDemote)
	if float64(flagged) > float64(clusterSize)*cfg.SelfHealingUnfixableRatio {
		union := append(append([]BrokerID{}, toRemove...), toDemote...)
		return []SlowBrokerAnomaly{
			newAnomaly(board, union, false, RemediationDemote, nowMs),
		}
	}

	var anomalies []SlowBrokerAnomaly
	if len(toDemote) > 0 {
		anomalies = append(anomalies, newAnomaly(board, toDemote, true, RemediationDemote, nowMs))
	}
	if len(toRemove) > 0 {
		anomalies = append(anomalies, newAnomaly(board, toRemove, cfg.SlowBrokerRemovalEnabled, RemediationRemove, nowMs))
	}
	return anomalies
}

func newAnomaly(board scoreboard, ids []BrokerID, fixable bool, remediation RemediationType, nowMs int64) SlowBrokerAnomaly {
	sorted := append([]BrokerID{}, ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	brokers := make(map[BrokerID]int64, len(sorted))
	lines := make([]string, 0, len(sorted))
	for _, id := range sorted {
		ts := board[id].FirstDetectedAtMs
		brokers[id] = ts
		lines = append(lines, fmt.Sprintf("Broker %d's performance degraded at %s", id, isoTime(ts)))
	}

	return SlowBrokerAnomaly{
		Brokers:         brokers,
		Fixable:         fixable,
		Remediation:     remediation,
		Description:     strings.Join(lines, "; "),
		DetectionTimeMs: nowMs,
	}
}
