package jmxcollect

import (
	"sync"

	"github.com/newrelic/infra-integrations-sdk/v3/log"

	"github.com/TeamTap/cruise-control/internal/slowbroker"
)

// DefaultWindowSize is how many prior rounds' snapshots a broker's history
// retains. slowbroker's history test computes its percentile and
// sufficiency check over this window, so it must be large enough for
// metricHistoryPercentile's default of 90 to clear the data-sufficiency
// guard (at least 10 samples).
const DefaultWindowSize = 30

// window is a fixed-capacity ring buffer of a broker's past snapshots for
// one metric.
type window struct {
	samples []float64
	cap     int
	next    int
	filled  bool
}

func newWindow(cap int) *window {
	return &window{samples: make([]float64, 0, cap), cap: cap}
}

func (w *window) push(v float64) {
	if len(w.samples) < w.cap {
		w.samples = append(w.samples, v)
		return
	}
	w.samples[w.next] = v
	w.next = (w.next + 1) % w.cap
	w.filled = true
}

func (w *window) values() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}

type brokerWindows struct {
	flush    *window
	leaderIn *window
	replIn   *window
}

// Collector maintains a rolling per-broker metric history from repeated
// JMX polls and turns each round's poll into the history/current pair
// slowbroker.Detector.DetectRound expects.
type Collector struct {
	provider   Provider
	windowSize int

	mu      sync.Mutex
	windows map[slowbroker.BrokerID]*brokerWindows
}

// NewCollector returns a Collector that polls through p, keeping
// windowSize past samples per broker per metric.
func NewCollector(p Provider, windowSize int) *Collector {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Collector{
		provider:   p,
		windowSize: windowSize,
		windows:    make(map[slowbroker.BrokerID]*brokerWindows),
	}
}

// CollectRound polls every broker in conns, returning the history (this
// broker's samples from *before* this round) and current snapshot (this
// round's poll) pair, then folds this round's poll into the rolling
// window for next time.
//
// A broker whose poll fails is logged and omitted from both returned maps
// entirely, rather than failing the whole round: slowbroker.DetectRound
// decays an absent broker's score just like one skipped for negligible
// ingress, but an absent broker is also left out of the cluster size the
// fleet-wide fixability gate uses (the size of the history map).
func (c *Collector) CollectRound(conns map[slowbroker.BrokerID]ConnInfo) (map[slowbroker.BrokerID]slowbroker.MetricHistory, map[slowbroker.BrokerID]slowbroker.MetricSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make(map[slowbroker.BrokerID]slowbroker.MetricHistory, len(conns))
	current := make(map[slowbroker.BrokerID]slowbroker.MetricSnapshot, len(conns))

	for id, conn := range conns {
		flush, leaderIn, replIn, err := snapshotOne(c.provider, conn)
		if err != nil {
			log.Warn("jmxcollect: skipping broker %d this round, JMX poll failed: %s", id, err)
			continue
		}

		bw, ok := c.windows[id]
		if !ok {
			bw = &brokerWindows{
				flush:    newWindow(c.windowSize),
				leaderIn: newWindow(c.windowSize),
				replIn:   newWindow(c.windowSize),
			}
			c.windows[id] = bw
		}

		history[id] = slowbroker.MetricHistory{
			LogFlushP999Ms:     bw.flush.values(),
			LeaderBytesIn:      bw.leaderIn.values(),
			ReplicationBytesIn: bw.replIn.values(),
		}
		current[id] = slowbroker.MetricSnapshot{
			LogFlushP999Ms:     flush,
			LeaderBytesIn:      leaderIn,
			ReplicationBytesIn: replIn,
		}

		bw.flush.push(flush)
		bw.leaderIn.push(leaderIn)
		bw.replIn.push(replIn)
	}

	return history, current
}
