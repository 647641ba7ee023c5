// Package topology discovers the broker fleet a detection round needs:
// the ZooKeeper broker registry gives each broker's host, Kafka port and
// JMX port, cross-checked against what the cluster itself reports over
// the Kafka protocol so a broker that lingers in ZooKeeper after leaving
// the cluster is dropped rather than monitored. A broker the cluster
// reports but ZooKeeper does not list is not returned.
package topology

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Shopify/sarama"
	"github.com/samuel/go-zookeeper/zk"

	"github.com/newrelic/infra-integrations-sdk/v3/log"

	"github.com/TeamTap/cruise-control/internal/slowbroker"
)

const brokerIdsPath = "/brokers/ids"

// Broker is one entry in the discovered fleet: enough to both dial its
// JMX endpoint and correlate it back to a slowbroker.BrokerID.
type Broker struct {
	ID      slowbroker.BrokerID
	Host    string
	Port    int
	JMXPort int
}

// zkBrokerRegistration mirrors the JSON ZooKeeper stores at
// /brokers/ids/<id>. Only the fields this package needs are declared.
type zkBrokerRegistration struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	JMXPort int    `json:"jmx_port"`
}

// SASLConfig configures SASL/SCRAM authentication for the sarama admin
// client used to cross-check ZooKeeper's view of the fleet. A nil
// *SASLConfig disables SASL entirely (the PLAINTEXT/TLS-only case).
type SASLConfig struct {
	Username  string
	Password  string
	Mechanism string // "scram-sha256" or "scram-sha512"
}

// zkClient is the subset of *zk.Conn Discoverer needs, so tests can
// substitute a fake ensemble instead of dialing a real one.
type zkClient interface {
	Children(path string) ([]string, *zk.Stat, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Close()
}

// clusterAdmin reports which broker IDs the cluster itself currently
// considers live. It wraps sarama.ClusterAdmin.DescribeCluster down to
// just the IDs, since sarama.Broker values are otherwise awkward to
// construct in tests.
type clusterAdmin interface {
	LiveBrokerIDs() (map[int32]struct{}, error)
	Close() error
}

// saramaClusterAdmin adapts sarama.ClusterAdmin to clusterAdmin.
type saramaClusterAdmin struct {
	admin sarama.ClusterAdmin
}

func (a saramaClusterAdmin) LiveBrokerIDs() (map[int32]struct{}, error) {
	metadata, _, err := a.admin.DescribeCluster()
	if err != nil {
		return nil, fmt.Errorf("topology: failed to describe cluster: %w", err)
	}
	live := make(map[int32]struct{}, len(metadata))
	for _, b := range metadata {
		live[b.ID()] = struct{}{}
	}
	return live, nil
}

func (a saramaClusterAdmin) Close() error {
	return a.admin.Close()
}

// Discoverer reads the broker registry from ZooKeeper and cross-checks it
// against sarama's cluster metadata.
type Discoverer struct {
	zkConn zkClient
	admin  clusterAdmin
}

// NewDiscoverer connects to ZooKeeper and opens a sarama cluster admin
// client against bootstrapBrokers for cross-checking.
func NewDiscoverer(zkServers []string, zkTimeout time.Duration, bootstrapBrokers []string, sasl *SASLConfig) (*Discoverer, error) {
	zkConn, _, err := zk.Connect(zkServers, zkTimeout)
	if err != nil {
		return nil, fmt.Errorf("topology: failed to connect to zookeeper: %w", err)
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	if sasl != nil {
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.User = sasl.Username
		cfg.Net.SASL.Password = sasl.Password
		cfg.Net.SASL.Handshake = true
		switch sasl.Mechanism {
		case "scram-sha512":
			cfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA512} }
			cfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		case "scram-sha256":
			cfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA256} }
			cfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		default:
			zkConn.Close()
			return nil, fmt.Errorf("topology: unsupported SASL mechanism %q", sasl.Mechanism)
		}
	}

	admin, err := sarama.NewClusterAdmin(bootstrapBrokers, cfg)
	if err != nil {
		zkConn.Close()
		return nil, fmt.Errorf("topology: failed to create cluster admin: %w", err)
	}

	return &Discoverer{zkConn: zkConn, admin: saramaClusterAdmin{admin: admin}}, nil
}

// Close releases the ZooKeeper connection and the sarama admin client.
func (d *Discoverer) Close() error {
	d.zkConn.Close()
	return d.admin.Close()
}

// DiscoverBrokers reads every broker registration under /brokers/ids,
// then drops any broker ZooKeeper lists that the cluster itself does not
// currently report as a member — a broker can linger in ZooKeeper briefly
// after it leaves the cluster, and monitoring it would just produce
// spurious negligible-ingress skips.
func (d *Discoverer) DiscoverBrokers() ([]Broker, error) {
	ids, _, err := d.zkConn.Children(brokerIdsPath)
	if err != nil {
		return nil, fmt.Errorf("topology: failed to list %s: %w", brokerIdsPath, err)
	}

	live, err := d.liveBrokerIDs()
	if err != nil {
		return nil, err
	}

	brokers := make([]Broker, 0, len(ids))
	for _, idStr := range ids {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			log.Warn("topology: skipping non-numeric broker id %q in zookeeper", idStr)
			continue
		}
		if _, ok := live[int32(id)]; !ok {
			log.Info("topology: broker %d is registered in zookeeper but not reported by the cluster, skipping", id)
			continue
		}

		data, _, err := d.zkConn.Get(fmt.Sprintf("%s/%s", brokerIdsPath, idStr))
		if err != nil {
			log.Warn("topology: failed to read registration for broker %d: %s", id, err)
			continue
		}

		var reg zkBrokerRegistration
		if err := json.Unmarshal(data, &reg); err != nil {
			log.Warn("topology: failed to parse registration for broker %d: %s", id, err)
			continue
		}

		brokers = append(brokers, Broker{
			ID:      slowbroker.BrokerID(id),
			Host:    reg.Host,
			Port:    reg.Port,
			JMXPort: reg.JMXPort,
		})
	}

	return brokers, nil
}

func (d *Discoverer) liveBrokerIDs() (map[int32]struct{}, error) {
	return d.admin.LiveBrokerIDs()
}
