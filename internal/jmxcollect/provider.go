// Package jmxcollect pulls the three raw metrics the slow-broker detector
// needs (log flush p999 latency, leader bytes-in, replication bytes-in)
// off each broker's JMX endpoint and turns them into the rolling
// MetricHistory/MetricSnapshot pairs slowbroker.DetectRound consumes.
package jmxcollect

import (
	"fmt"

	"github.com/newrelic/nrjmx/gojmx"
)

// mbean/attribute pairs for the three metrics the detector classifies on.
// These mirror the mbean naming the rest of this integration's broker
// metric definitions use.
const (
	logFlushMBean  = "kafka.log:type=LogFlushStats,name=LogFlushRateAndTimeMs"
	logFlushAttr   = "attr=999thPercentile"
	bytesInMBean   = "kafka.server:type=BrokerTopicMetrics,name=BytesInPerSec"
	bytesInAttr    = "attr=OneMinuteRate"
	replBytesMBean = "kafka.server:type=BrokerTopicMetrics,name=ReplicationBytesInPerSec"
	replBytesAttr  = "attr=OneMinuteRate"
)

// ConnInfo names the JMX endpoint for one broker.
type ConnInfo struct {
	Hostname string
	Port     int
	Username string
	Password string
}

// Provider opens JMX connections and queries mbean attributes. It exists
// so collector tests can substitute a fake instead of dialing a real
// broker, the same separation of concerns this integration's JMX
// connection layer uses elsewhere.
type Provider interface {
	// QueryMBean returns the numeric value of the named mbean attribute
	// on the broker described by conn.
	QueryMBean(conn ConnInfo, mbean, attr string) (float64, error)
}

// GoJMXProvider is the Provider backed by the real nrjmx/gojmx client.
type GoJMXProvider struct{}

func (GoJMXProvider) QueryMBean(conn ConnInfo, mbean, attr string) (float64, error) {
	client, err := gojmx.NewClient(nil).Open(&gojmx.JMXConfig{
		Hostname: conn.Hostname,
		Port:     int32(conn.Port),
		Username: conn.Username,
		Password: conn.Password,
	})
	if err != nil {
		return 0, fmt.Errorf("jmxcollect: failed to open JMX connection to %s:%d: %w", conn.Hostname, conn.Port, err)
	}
	defer client.Close()

	results, err := client.QueryMBean(mbean)
	if err != nil {
		return 0, fmt.Errorf("jmxcollect: failed to query mbean %s on %s:%d: %w", mbean, conn.Hostname, conn.Port, err)
	}

	for _, attrResp := range results {
		if attrResp.Name == attr {
			if attrResp.ResponseType == gojmx.ResponseType_RESPONSE_TYPE_ERROR {
				return 0, fmt.Errorf("jmxcollect: mbean attribute %s#%s returned an error: %s", mbean, attr, attrResp.StatusMsg)
			}
			return attrResp.GetDoubleValue(), nil
		}
	}
	return 0, fmt.Errorf("jmxcollect: attribute %s not found on mbean %s", attr, mbean)
}

// snapshotOne queries the three metrics for a single broker and assembles
// a slowbroker.MetricSnapshot.
func snapshotOne(p Provider, conn ConnInfo) (flush, leaderBytesIn, replicationBytesIn float64, err error) {
	flush, err = p.QueryMBean(conn, logFlushMBean, logFlushAttr)
	if err != nil {
		return 0, 0, 0, err
	}
	leaderBytesIn, err = p.QueryMBean(conn, bytesInMBean, bytesInAttr)
	if err != nil {
		return 0, 0, 0, err
	}
	replicationBytesIn, err = p.QueryMBean(conn, replBytesMBean, replBytesAttr)
	if err != nil {
		return 0, 0, 0, err
	}
	return flush, leaderBytesIn, replicationBytesIn, nil
}
