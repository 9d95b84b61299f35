package models

import "time"

type UpdateType string

const (
	UpdateValue        UpdateType = "value"
	UpdateAvailability UpdateType = "availability"
)

// Update is one notification for the entity layer. Seq grows by one per
// update of the same sensor and gives subscribers the per-device order.
type Update struct {
	Type        UpdateType   `json:"type"`
	GatewayID   string       `json:"gateway_id"`
	SensorID    string       `json:"sensor_id"`
	Kind        SensorKind   `json:"kind"`
	Measurement *Measurement `json:"measurement,omitempty"`
	State       DeviceState  `json:"state"`
	Available   bool         `json:"available"`
	BatteryLow  bool         `json:"battery_low"`
	Timestamp   time.Time    `json:"timestamp"`
	Seq         uint64       `json:"seq"`
}
