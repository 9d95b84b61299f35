// Package sink publishes registry updates to external brokers.
package sink

import (
	"encoding/json"

	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

const (
	SinkRedis = "redis"
	SinkNats  = "nats"

	prefix = "mobilealerts"
)

// field is the name an update is stored and routed under: the measurement
// key for value updates, "availability" otherwise.
func field(u models.Update) string {
	if u.Type == models.UpdateValue && u.Measurement != nil {
		return u.Measurement.Key
	}
	return string(models.UpdateAvailability)
}

// state is the last known value of field as stored by the sinks.
func state(u models.Update) ([]byte, error) {
	if u.Type == models.UpdateValue && u.Measurement != nil {
		return json.Marshal(u.Measurement)
	}
	return json.Marshal(map[string]any{
		"state":       u.State,
		"available":   u.Available,
		"battery_low": u.BatteryLow,
		"timestamp":   u.Timestamp,
	})
}
