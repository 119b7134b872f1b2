package store

import "fmt"

// Resource type for Redis keys.
type Resource string

const (
	ResourceTracking Resource = "tracking"
	ResourceSchedule Resource = "schedules"
	ResourceReplay   Resource = "replay"
)

// Key constructs a fully qualified Redis key.
// Format: lineplan:{resource}:{id}
func Key(resource Resource, id string) string {
	return fmt.Sprintf("lineplan:%s:%s", resource, id)
}

// Prefix constructs a scan pattern prefix for a resource.
// Format: lineplan:{resource}:
func Prefix(resource Resource) string {
	return fmt.Sprintf("lineplan:%s:", resource)
}

// scheduleSeqKey holds the monotonic schedule id counter.
const scheduleSeqKey = "lineplan:schedules:seq"

// latestKey points at the newest schedule id per status.
func latestKey(status string) string {
	return "lineplan:schedules:latest:" + status
}
