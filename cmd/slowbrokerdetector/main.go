// Command slowbrokerdetector runs the slow-broker anomaly detector as a
// standalone polling loop: on each tick it discovers the broker fleet,
// polls JMX for the latest metrics, runs one detection round, and
// reports any anomalies as New Relic infrastructure entities.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/infra-integrations-sdk/v3/integration"
	"github.com/newrelic/infra-integrations-sdk/v3/log"

	"github.com/TeamTap/cruise-control/internal/jmxcollect"
	"github.com/TeamTap/cruise-control/internal/slowbroker"
	"github.com/TeamTap/cruise-control/internal/telemetry"
	"github.com/TeamTap/cruise-control/internal/topology"
)

type runConfig struct {
	zkServers        []string
	bootstrapBrokers []string
	pollInterval     time.Duration
	jmxUsername      string
	jmxPassword      string
	saslUsername     string
	saslPassword     string
	saslMechanism    string
	accountID        string
	clusterName      string
	environment      string
}

func loadConfigFromEnv() runConfig {
	cfg := runConfig{
		zkServers:        splitCSV(getEnvOrDefault("ZOOKEEPER_HOSTS", "localhost:2181")),
		bootstrapBrokers: splitCSV(getEnvOrDefault("KAFKA_BOOTSTRAP_BROKERS", "localhost:9092")),
		jmxUsername:      os.Getenv("KAFKA_JMX_USER"),
		jmxPassword:      os.Getenv("KAFKA_JMX_PASSWORD"),
		saslUsername:     os.Getenv("KAFKA_SASL_USER"),
		saslPassword:     os.Getenv("KAFKA_SASL_PASSWORD"),
		saslMechanism:    os.Getenv("KAFKA_SASL_MECHANISM"),
		accountID:        getEnvOrDefault("NEW_RELIC_ACCOUNT_ID", "0"),
		clusterName:      getEnvOrDefault("KAFKA_CLUSTER_NAME", "default-kafka-cluster"),
		environment:      getEnvOrDefault("ENVIRONMENT", "production"),
	}

	interval, err := time.ParseDuration(getEnvOrDefault("SLOWBROKER_POLL_INTERVAL", "60s"))
	if err != nil {
		interval = 60 * time.Second
	}
	cfg.pollInterval = interval

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func main() {
	cfg := loadConfigFromEnv()

	i, err := integration.New("com.newrelic.kafka.slowbrokerdetector", "1.0.0")
	if err != nil {
		log.Error("slowbrokerdetector: failed to create integration: %s", err)
		os.Exit(1)
	}

	var sasl *topology.SASLConfig
	if cfg.saslMechanism != "" {
		sasl = &topology.SASLConfig{
			Username:  cfg.saslUsername,
			Password:  cfg.saslPassword,
			Mechanism: cfg.saslMechanism,
		}
	}

	discoverer, err := topology.NewDiscoverer(cfg.zkServers, 10*time.Second, cfg.bootstrapBrokers, sasl)
	if err != nil {
		log.Error("slowbrokerdetector: failed to initialize topology discovery: %s", err)
		os.Exit(1)
	}
	defer discoverer.Close()

	collector := jmxcollect.NewCollector(jmxcollect.GoJMXProvider{}, jmxcollect.DefaultWindowSize)
	detector := slowbroker.NewDetector()
	reporter := telemetry.NewReporter(i, telemetry.Config{
		AccountID:   cfg.accountID,
		ClusterName: cfg.clusterName,
		Environment: cfg.environment,
	})

	ticker := time.NewTicker(cfg.pollInterval)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	log.Info("slowbrokerdetector: starting, polling every %s", cfg.pollInterval)

	for {
		select {
		case <-ticker.C:
			runRound(discoverer, collector, detector, reporter, cfg)
		case <-stop:
			log.Info("slowbrokerdetector: shutting down")
			return
		}
	}
}

func runRound(discoverer *topology.Discoverer, collector *jmxcollect.Collector, detector *slowbroker.Detector, reporter *telemetry.Reporter, cfg runConfig) {
	brokers, err := discoverer.DiscoverBrokers()
	if err != nil {
		log.Error("slowbrokerdetector: broker discovery failed, skipping this round: %s", err)
		return
	}

	conns := make(map[slowbroker.BrokerID]jmxcollect.ConnInfo, len(brokers))
	for _, b := range brokers {
		conns[b.ID] = jmxcollect.ConnInfo{
			Hostname: b.Host,
			Port:     b.JMXPort,
			Username: cfg.jmxUsername,
			Password: cfg.jmxPassword,
		}
	}

	history, current := collector.CollectRound(conns)
	anomalies := detector.DetectRound(history, current, time.Now().UnixMilli())

	if len(anomalies) == 0 {
		return
	}

	if err := reporter.Report(anomalies); err != nil {
		log.Error("slowbrokerdetector: failed to report anomalies: %s", err)
	}
}
