package models

import "time"

type SensorKind string

const (
	KindThermo             SensorKind = "thermo"
	KindThermoHygro        SensorKind = "thermo_hygro"
	KindThermoHygroWet     SensorKind = "thermo_hygro_wet"
	KindAirQuality         SensorKind = "air_quality"
	KindThermoHygroPool    SensorKind = "thermo_hygro_pool"
	KindThermoHygroOutdoor SensorKind = "thermo_hygro_outdoor"
	KindRain               SensorKind = "rain"
	KindThermoHygroCable   SensorKind = "thermo_hygro_cable"
	KindAlarm              SensorKind = "alarm"
	KindWind               SensorKind = "wind"
	KindDoorWindow         SensorKind = "door_window"
	KindKeyPress           SensorKind = "key_press"
	KindPressure           SensorKind = "pressure"
)

type DeviceState string

const (
	StateUnknown   DeviceState = "unknown"
	StateAvailable DeviceState = "available"
	StateStale     DeviceState = "stale"
)

// SensorInfo is a read-only view of a registered sensor.
type SensorInfo struct {
	ID         string        `json:"id"`
	GatewayID  string        `json:"gateway_id"`
	Kind       SensorKind    `json:"kind"`
	Model      string        `json:"model,omitempty"`
	Name       string        `json:"name,omitempty"`
	BatteryLow bool          `json:"battery_low"`
	ByEvent    bool          `json:"by_event"`
	State      DeviceState   `json:"state"`
	LastUpdate time.Time     `json:"last_update"`
	Values     []Measurement `json:"values"`
}

// GatewayInfo is a read-only view of a known gateway and its ProxyState.
type GatewayInfo struct {
	ID              string    `json:"id"`
	Address         string    `json:"address,omitempty"`
	Name            string    `json:"name,omitempty"`
	SendDataToCloud bool      `json:"send_data_to_cloud"`
	Upstream        string    `json:"upstream,omitempty"`
	Online          bool      `json:"online"`
	LastSeen        time.Time `json:"last_seen"`
}
