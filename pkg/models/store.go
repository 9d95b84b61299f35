package models

import "time"

// Gateway, Sensor and Reading are the persisted rows behind the registry.

type Gateway struct {
	ID              string `gorm:"primaryKey"`
	Address         string
	Name            string
	SendDataToCloud bool
	Upstream        string
	LastSeen        time.Time

	Sensors []Sensor `gorm:"foreignKey:GatewayID;references:ID"`
}

type Sensor struct {
	ID         string `gorm:"primaryKey"`
	GatewayID  string `gorm:"index"`
	Kind       SensorKind
	Name       string
	BatteryLow bool
	LastUpdate time.Time

	Readings []Reading `gorm:"foreignKey:SensorID;references:ID"`
}

type Reading struct {
	SensorID  string `gorm:"primaryKey"`
	Key       string `gorm:"primaryKey"`
	Type      MeasurementType
	Prefix    string
	Idx       int
	Value     float64
	Text      string
	Unit      string
	Valid     bool
	Error     string
	UpdatedAt time.Time
}

func ReadingFromMeasurement(sensorID string, m Measurement, at time.Time) Reading {
	return Reading{
		SensorID:  sensorID,
		Key:       m.Key,
		Type:      m.Type,
		Prefix:    m.Prefix,
		Idx:       m.Index,
		Value:     m.Value,
		Text:      m.Text,
		Unit:      m.Unit,
		Valid:     m.Valid,
		Error:     m.Error,
		UpdatedAt: at,
	}
}

func (r Reading) Measurement() Measurement {
	return Measurement{
		Type:   r.Type,
		Key:    r.Key,
		Prefix: r.Prefix,
		Index:  r.Idx,
		Value:  r.Value,
		Text:   r.Text,
		Unit:   r.Unit,
		Valid:  r.Valid,
		Error:  r.Error,
	}
}
