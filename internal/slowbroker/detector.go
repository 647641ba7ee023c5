package slowbroker

import (
	"sync"

	"github.com/newrelic/infra-integrations-sdk/v3/log"
)

// Detector is the slow-broker anomaly detector. A single instance owns its
// scoreboard exclusively; external collaborators only ever observe the
// anomalies DetectRound returns.
//
// Detector is safe for concurrent use: DetectRound and Configure both take
// an exclusive lock covering the whole round / the whole reconfiguration.
type Detector struct {
	mu    sync.Mutex
	cfg   Config
	board scoreboard
}

// NewDetector returns a Detector configured with DefaultConfig.
func NewDetector() *Detector {
	return &Detector{
		cfg:   DefaultConfig(),
		board: make(scoreboard),
	}
}

// Configure validates and applies the given tunables.
// Unknown keys are ignored; missing keys keep their current value; any
// type or range violation rejects the *entire* call with a *ConfigError
// and leaves the detector's configuration unchanged.
func (d *Detector) Configure(options map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg, err := parseConfig(d.cfg, options)
	if err != nil {
		return err
	}
	d.cfg = cfg
	return nil
}

// DetectRound runs one detection round over the given history and current
// snapshots, updates the scoreboard, and returns the anomalies to emit.
//
// If anything inside the round panics, it is recovered, logged at Warn,
// and an empty anomaly set is returned; the scoreboard is left exactly as
// it was before the call. This is implemented by computing the round's
// update into a scratch copy of the scoreboard and only swapping it in
// after the round completes without error.
func (d *Detector) DetectRound(history map[BrokerID]MetricHistory, current map[BrokerID]MetricSnapshot, nowMs int64) (anomalies []SlowBrokerAnomaly) {
	d.mu.Lock()
	defer d.mu.Unlock()

	log.Info("slowbroker: round starting, %d brokers in history, %d current snapshots", len(history), len(current))

	defer func() {
		if r := recover(); r != nil {
			log.Warn("slowbroker: round failed, discarding this round's scoreboard progression: %v", r)
			anomalies = nil
		}
	}()

	scratch := d.board.clone()

	ex := extractMetrics(current, history, d.cfg.BytesInRateDetectionThreshold)
	for _, id := range ex.skipped {
		snap := current[id]
		log.Info("slowbroker: skipping broker %d this round, ingress %.0f B/s below threshold (%.0f B/s)",
			id, snap.LeaderBytesIn+snap.ReplicationBytesIn, d.cfg.BytesInRateDetectionThreshold)
	}

	anomalous, err := classify(ex, d.cfg)
	if err != nil {
		log.Warn("slowbroker: classification failed: %v", err)
		return nil
	}

	scratch.update(anomalous, nowMs, d.cfg.DecommissionScore)

	result := escalate(scratch, anomalous, len(history), nowMs, d.cfg)

	d.board = scratch

	log.Info("slowbroker: round finished, %d anomalous this round, %d anomalies emitted, %d brokers on scoreboard",
		len(anomalous), len(result), len(d.board))

	return result
}

// Scoreboard returns a defensive copy of the current per-broker scores,
// for observability / tests. It is not part of the spec's external
// contract but a supplemental read-only accessor.
func (d *Detector) Scoreboard() map[BrokerID]ScoreEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[BrokerID]ScoreEntry, len(d.board))
	for id, entry := range d.board {
		out[id] = entry
	}
	return out
}
