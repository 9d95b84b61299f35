package models

import "math"

type MeasurementType string

const (
	MeasurementTemperature   MeasurementType = "temperature"
	MeasurementHumidity      MeasurementType = "humidity"
	MeasurementWetness       MeasurementType = "wetness"
	MeasurementCO2           MeasurementType = "co2"
	MeasurementPressure      MeasurementType = "pressure"
	MeasurementRain          MeasurementType = "rain"
	MeasurementTimeSpan      MeasurementType = "time_span"
	MeasurementWindDirection MeasurementType = "wind_direction"
	MeasurementWindSpeed     MeasurementType = "wind_speed"
	MeasurementGust          MeasurementType = "gust"
	MeasurementDoorWindow    MeasurementType = "door_window"
	MeasurementAlarm         MeasurementType = "alarm"
	MeasurementKeyPressed    MeasurementType = "key_pressed"
	MeasurementKeyPressType  MeasurementType = "key_press_type"
	MeasurementBatteryLow    MeasurementType = "battery_low"

	// derived by the registry from the rain counter history
	MeasurementIsRaining    MeasurementType = "is_raining"
	MeasurementLastRain     MeasurementType = "last_rain"
	MeasurementLastHourRain MeasurementType = "last_hour_rain"
	MeasurementLastDayRain  MeasurementType = "last_day_rain"
)

const (
	UnitCelsius     = "°C"
	UnitPercent     = "%"
	UnitPPM         = "ppm"
	UnitHectoPascal = "hPa"
	UnitMillimeter  = "mm"
	UnitSecond      = "s"
	UnitDegree      = "°"
	UnitMeterPerSec = "m/s"
)

const (
	StateOn  = "on"
	StateOff = "off"
)

var (
	KeyPressedValues   = []string{"none", "green", "orange", "red", "yellow"}
	KeyPressTypeValues = []string{"none", "short", "double", "long"}
)

// Epsilon is the tolerance used when comparing numeric measurement values.
const Epsilon = 1e-6

// IsEnumerated reports whether values of t are compared exactly.
func (t MeasurementType) IsEnumerated() bool {
	switch t {
	case MeasurementWetness, MeasurementDoorWindow, MeasurementAlarm,
		MeasurementKeyPressed, MeasurementKeyPressType, MeasurementBatteryLow,
		MeasurementIsRaining:
		return true
	}
	return false
}

// Measurement is one typed value decoded from a frame. Key is stable per
// sensor and names the entity the value belongs to.
type Measurement struct {
	Type   MeasurementType `json:"type"`
	Key    string          `json:"key"`
	Prefix string          `json:"prefix,omitempty"`
	Index  int             `json:"index,omitempty"`
	Value  float64         `json:"value"`
	Text   string          `json:"text,omitempty"`
	Unit   string          `json:"unit,omitempty"`
	Valid  bool            `json:"valid"`
	Error  string          `json:"error,omitempty"`
	Prior  *float64        `json:"prior,omitempty"`
}

// Equal compares the observable state of two measurements of the same key.
// Enumerated and binary values compare exactly, numbers within Epsilon, and
// a change of validity always counts as a change.
func (m Measurement) Equal(o Measurement) bool {
	if m.Type != o.Type || m.Key != o.Key || m.Valid != o.Valid {
		return false
	}
	if !m.Valid {
		return m.Error == o.Error
	}
	if m.Type.IsEnumerated() {
		return m.Text == o.Text && m.Value == o.Value
	}
	return math.Abs(m.Value-o.Value) <= Epsilon && m.Text == o.Text
}

// State renders the value the entity layer shows for m.
func (m Measurement) State() any {
	if !m.Valid {
		return nil
	}
	if m.Text != "" {
		return m.Text
	}
	return m.Value
}

func BoolText(b bool) string {
	if b {
		return StateOn
	}
	return StateOff
}
