// Package telemetry turns slow-broker anomalies into New Relic
// infrastructure-integration entities and metric sets, in the same style
// the rest of this integration uses for brokers and topics.
package telemetry

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/newrelic/infra-integrations-sdk/v3/data/attribute"
	"github.com/newrelic/infra-integrations-sdk/v3/data/metric"
	"github.com/newrelic/infra-integrations-sdk/v3/integration"
	"github.com/newrelic/infra-integrations-sdk/v3/log"

	"github.com/TeamTap/cruise-control/internal/slowbroker"
)

// EntityType is the New Relic entity type this reporter mints GUIDs for.
const EntityType = "KAFKABROKERANOMALY"

// GenerateEntityGUID builds a New Relic entity GUID of the form
// accountId|INFRA|entityType|base64(identifier), scoped to one broker
// within one cluster so recurring anomalies against the same broker
// collapse onto the same entity.
func GenerateEntityGUID(accountID, clusterName string, brokerID slowbroker.BrokerID) string {
	identifier := fmt.Sprintf("%s:%d", clusterName, brokerID)
	encoded := base64.StdEncoding.EncodeToString([]byte(identifier))
	return fmt.Sprintf("%s|INFRA|%s|%s", accountID, EntityType, encoded)
}

// Config holds the reporter's account/cluster context. It carries nothing
// detection-specific: every other field on the emitted metric set is
// derived from the slowbroker.SlowBrokerAnomaly itself.
type Config struct {
	AccountID   string
	ClusterName string
	Environment string
}

// Reporter converts detection rounds into integration entities. A single
// Reporter is reused across rounds so that repeated anomalies against the
// same broker land on the same cached entity instead of minting a new one
// each round.
type Reporter struct {
	cfg         Config
	integration *integration.Integration

	mu       sync.Mutex
	entities map[slowbroker.BrokerID]*integration.Entity
}

// NewReporter returns a Reporter bound to the given integration instance.
func NewReporter(i *integration.Integration, cfg Config) *Reporter {
	return &Reporter{
		cfg:         cfg,
		integration: i,
		entities:    make(map[slowbroker.BrokerID]*integration.Entity),
	}
}

// Report emits one metric set per flagged broker, across all of the
// round's anomalies. A broker named in more than one anomaly (which
// cannot happen in practice, since escalate partitions brokers into
// disjoint bands, but Report does not rely on that) gets one metric set
// per anomaly it appears in.
func (r *Reporter) Report(anomalies []slowbroker.SlowBrokerAnomaly) error {
	for _, a := range anomalies {
		if err := r.reportOne(a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) reportOne(a slowbroker.SlowBrokerAnomaly) error {
	for brokerID, firstDetectedAtMs := range a.Brokers {
		entity, err := r.entityFor(brokerID)
		if err != nil {
			log.Error("telemetry: failed to get entity for broker %d: %s", brokerID, err)
			continue
		}

		ms := entity.NewMetricSet("KafkaSlowBrokerAnomalySample",
			attribute.Attribute{Key: "provider.accountId", Value: r.cfg.AccountID},
			attribute.Attribute{Key: "provider.clusterName", Value: r.cfg.ClusterName},
			attribute.Attribute{Key: "clusterName", Value: r.cfg.ClusterName},
			attribute.Attribute{Key: "environment", Value: r.cfg.Environment},
			attribute.Attribute{Key: "entityName", Value: fmt.Sprintf("broker:%d", brokerID)},
			attribute.Attribute{Key: "brokerId", Value: fmt.Sprintf("%d", brokerID)},
			attribute.Attribute{Key: "remediation", Value: a.Remediation.String()},
		)

		ms.SetMetric("provider.slowBrokerFixable", boolToFloat(a.Fixable), metric.GAUGE)
		ms.SetMetric("provider.slowBrokerRemovalRecommended", boolToFloat(a.RemoveSlowBroker()), metric.GAUGE)
		ms.SetMetric("provider.slowBrokerFirstDetectedAtMs", float64(firstDetectedAtMs), metric.GAUGE)
		ms.SetMetric("provider.slowBrokerDetectionTimeMs", float64(a.DetectionTimeMs), metric.GAUGE)

		if err := entity.SetInventoryItem("slowBroker.description", "value", a.Description); err != nil {
			log.Error("telemetry: unable to set inventory item for broker %d: %s", brokerID, err)
		}
	}
	return nil
}

func (r *Reporter) entityFor(id slowbroker.BrokerID) (*integration.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entity, ok := r.entities[id]; ok {
		return entity, nil
	}

	guid := GenerateEntityGUID(r.cfg.AccountID, r.cfg.ClusterName, id)
	entity, err := r.integration.Entity(guid, "kafka-broker-anomaly")
	if err != nil {
		return nil, fmt.Errorf("failed to create entity for broker %d: %w", id, err)
	}

	r.entities[id] = entity
	return entity, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
