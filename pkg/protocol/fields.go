package protocol

import (
	"encoding/binary"
	"math"

	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

const (
	tempOverflow     = 0x2000
	tempNotConnected = 0x1000
	tempSign         = 0x400
	tempValue        = 0x3FF

	humInvalid = 0x80
	humValue   = 0x7F

	errOverflow     = "OL"
	errNotConnected = "---"

	rainPerFlip = 0.258
)

// Fields is the checksum covered part of a frame.
type Fields []byte

func (f Fields) byteAt(off int) byte {
	return f[off]
}

func (f Fields) word(off int) uint16 {
	return binary.BigEndian.Uint16(f[off:])
}

func (f Fields) Temperature(off int, key, prefix string, index int) models.Measurement {
	m := models.Measurement{
		Type:   models.MeasurementTemperature,
		Key:    key,
		Prefix: prefix,
		Index:  index,
		Unit:   models.UnitCelsius,
	}
	w := f.word(off)
	switch {
	case w&tempOverflow != 0:
		m.Error = errOverflow
	case w&tempNotConnected != 0:
		m.Error = errNotConnected
	default:
		v := int(w & tempValue)
		if w&tempSign != 0 {
			v -= tempSign
		}
		m.Value = float64(v) / 10
		m.Valid = true
	}
	return m
}

func (f Fields) Humidity(off int, key, prefix string, index int) models.Measurement {
	m := models.Measurement{
		Type:   models.MeasurementHumidity,
		Key:    key,
		Prefix: prefix,
		Index:  index,
		Unit:   models.UnitPercent,
	}
	b := f.byteAt(off)
	if b&humInvalid != 0 {
		m.Error = errNotConnected
		return m
	}
	m.Value = float64(b & humValue)
	m.Valid = true
	return m
}

// HumidityTenths reads the 10 bit humidity word used by the pool sensor.
func (f Fields) HumidityTenths(off int, key string) models.Measurement {
	return models.Measurement{
		Type:  models.MeasurementHumidity,
		Key:   key,
		Value: float64(f.word(off)&0x3FF) / 10,
		Unit:  models.UnitPercent,
		Valid: true,
	}
}

func (f Fields) Pressure(off int, key string) models.Measurement {
	return models.Measurement{
		Type:  models.MeasurementPressure,
		Key:   key,
		Value: float64(f.word(off)) / 10,
		Unit:  models.UnitHectoPascal,
		Valid: true,
	}
}

// withPrior attaches the previous transmission's value when it is valid.
func withPrior(m, prior models.Measurement) models.Measurement {
	if prior.Valid {
		v := prior.Value
		m.Prior = &v
	}
	return m
}

func numeric(t models.MeasurementType, key string, value float64, unit string) models.Measurement {
	return models.Measurement{Type: t, Key: key, Value: value, Unit: unit, Valid: true}
}

func binaryMeasurement(t models.MeasurementType, key string, index int, on bool) models.Measurement {
	m := models.Measurement{Type: t, Key: key, Index: index, Text: models.BoolText(on), Valid: true}
	if on {
		m.Value = 1
	}
	return m
}

func enumMeasurement(t models.MeasurementType, key string, values []string, code int) models.Measurement {
	m := models.Measurement{Type: t, Key: key, Value: float64(code)}
	if code >= 0 && code < len(values) {
		m.Text = values[code]
		m.Valid = true
	} else {
		m.Error = "unknown code"
	}
	return m
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
