package slowbroker

import "time"

// isoTime renders an epoch-millisecond timestamp as RFC3339 for anomaly
// descriptions.
func isoTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
