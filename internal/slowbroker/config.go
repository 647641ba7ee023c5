package slowbroker

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ConfigError is returned exclusively from Configure. It is never raised
// by DetectRound.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// Config holds the validated tunables for the detector.
type Config struct {
	BytesInRateDetectionThreshold float64
	MetricHistoryPercentile       float64
	MetricHistoryMargin           float64
	PeerMetricPercentile          float64
	PeerMetricMargin              float64
	DemotionScore                 int
	DecommissionScore             int
	SelfHealingUnfixableRatio     float64
	SlowBrokerRemovalEnabled      bool
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		BytesInRateDetectionThreshold: 1048576,
		MetricHistoryPercentile:       90.0,
		MetricHistoryMargin:           3.0,
		PeerMetricPercentile:          50.0,
		PeerMetricMargin:              10.0,
		DemotionScore:                 5,
		DecommissionScore:             50,
		SelfHealingUnfixableRatio:     0.1,
		SlowBrokerRemovalEnabled:      false,
	}
}

// configOptionsSchema constrains the *shape* of each recognized option
// before the business-rule range checks run below. Unknown keys are
// intentionally left unconstrained here (additionalProperties defaults to
// true) since they must be silently ignored, not rejected.
const configOptionsSchema = `{
  "type": "object",
  "properties": {
    "bytesInRateDetectionThreshold": {"type": "number"},
    "metricHistoryPercentile":       {"type": "number"},
    "metricHistoryMargin":           {"type": "number"},
    "peerMetricPercentile":          {"type": "number"},
    "peerMetricMargin":              {"type": "number"},
    "demotionScore":                 {"type": "number"},
    "decommissionScore":             {"type": "number"},
    "selfHealingUnfixableRatio":     {"type": "number"},
    "slowBrokerRemovalEnabled":      {"type": "boolean"}
  }
}`

var configOptionsSchemaLoader = gojsonschema.NewStringLoader(configOptionsSchema)

// parseConfig validates a flat string-keyed options map and returns the
// resulting Config, or a *ConfigError describing the first violation.
// Missing keys take the given base's value (typically DefaultConfig(), but
// Configure reuses the detector's current Config so repeated partial calls
// layer on top of each other); unknown keys are ignored.
func parseConfig(base Config, options map[string]interface{}) (Config, error) {
	if len(options) == 0 {
		return base, nil
	}

	doc, err := json.Marshal(options)
	if err != nil {
		return base, &ConfigError{Message: fmt.Sprintf("options not serializable: %s", err)}
	}

	result, err := gojsonschema.Validate(configOptionsSchemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return base, &ConfigError{Message: fmt.Sprintf("schema validation failed: %s", err)}
	}
	if !result.Valid() {
		issue := result.Errors()[0]
		return base, &ConfigError{Key: issue.Field(), Message: issue.Description()}
	}

	cfg := base

	if v, ok := options["bytesInRateDetectionThreshold"]; ok {
		f := v.(float64)
		if f < 0 {
			return base, &ConfigError{Key: "bytesInRateDetectionThreshold", Message: "must be >= 0"}
		}
		cfg.BytesInRateDetectionThreshold = f
	}

	if v, ok := options["metricHistoryPercentile"]; ok {
		f := v.(float64)
		if f < 0 || f > 100 {
			return base, &ConfigError{Key: "metricHistoryPercentile", Message: "must be in [0.0, 100.0]"}
		}
		cfg.MetricHistoryPercentile = f
	}

	if v, ok := options["metricHistoryMargin"]; ok {
		f := v.(float64)
		if f < 1.0 {
			return base, &ConfigError{Key: "metricHistoryMargin", Message: "must be >= 1.0"}
		}
		cfg.MetricHistoryMargin = f
	}

	if v, ok := options["peerMetricPercentile"]; ok {
		f := v.(float64)
		if f < 0 || f > 100 {
			return base, &ConfigError{Key: "peerMetricPercentile", Message: "must be in [0.0, 100.0]"}
		}
		cfg.PeerMetricPercentile = f
	}

	if v, ok := options["peerMetricMargin"]; ok {
		f := v.(float64)
		if f < 1.0 {
			return base, &ConfigError{Key: "peerMetricMargin", Message: "must be >= 1.0"}
		}
		cfg.PeerMetricMargin = f
	}

	// demotionScore and decommissionScore are validated together below so
	// that "decommissionScore >= demotionScore" sees both candidate values
	// regardless of which one the caller actually supplied this call.
	demotionScore := cfg.DemotionScore
	if v, ok := options["demotionScore"]; ok {
		f := v.(float64)
		if f != float64(int(f)) || f < 0 {
			return base, &ConfigError{Key: "demotionScore", Message: "must be an integer >= 0"}
		}
		demotionScore = int(f)
	}

	decommissionScore := cfg.DecommissionScore
	if v, ok := options["decommissionScore"]; ok {
		f := v.(float64)
		if f != float64(int(f)) {
			return base, &ConfigError{Key: "decommissionScore", Message: "must be an integer"}
		}
		decommissionScore = int(f)
	}

	if decommissionScore < demotionScore {
		return base, &ConfigError{Key: "decommissionScore", Message: "must be >= demotionScore"}
	}
	cfg.DemotionScore = demotionScore
	cfg.DecommissionScore = decommissionScore

	if v, ok := options["selfHealingUnfixableRatio"]; ok {
		f := v.(float64)
		if f < 0 || f > 1.0 {
			return base, &ConfigError{Key: "selfHealingUnfixableRatio", Message: "must be in [0.0, 1.0]"}
		}
		cfg.SelfHealingUnfixableRatio = f
	}

	if v, ok := options["slowBrokerRemovalEnabled"]; ok {
		cfg.SlowBrokerRemovalEnabled = v.(bool)
	}

	return cfg, nil
}
