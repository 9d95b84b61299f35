package protocol

import (
	"strconv"
	"time"

	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

const (
	periodThermo = 7 * time.Minute
	periodWind   = 6 * time.Minute
	periodRain   = 2 * time.Hour
	periodDoor   = 6 * time.Hour
)

var defaultKinds = map[byte]KindSpec{
	0x02: {Kind: models.KindThermo, Model: "MA10100", Size: 18, UpdatePeriod: periodThermo, Decode: decodeThermo},
	0x03: {Kind: models.KindThermoHygro, Model: "MA10200", Size: 20, UpdatePeriod: periodThermo, Decode: decodeThermoHygro},
	0x04: {Kind: models.KindThermoHygroWet, Model: "MA10350", Size: 18, UpdatePeriod: periodThermo, Decode: decodeThermoHygroWet},
	0x05: {Kind: models.KindAirQuality, Model: "WL2000", Size: 19, UpdatePeriod: periodThermo, Decode: decodeAirQuality},
	0x06: {Kind: models.KindThermoHygroPool, Model: "MA10700", Size: 26, UpdatePeriod: periodThermo, Decode: decodeThermoHygroPool},
	0x07: {Kind: models.KindThermoHygroOutdoor, Model: "MA10410", Size: 20, UpdatePeriod: periodThermo, Decode: decodeThermoHygroOutdoor},
	0x08: {Kind: models.KindRain, Model: "MA10650", Size: 20, UpdatePeriod: periodRain, Decode: decodeRain},
	0x09: {Kind: models.KindThermoHygroCable, Model: "MA10320", Size: 19, UpdatePeriod: periodThermo, Decode: decodeThermoHygroCable},
	0x0A: {Kind: models.KindAlarm, Model: "MA10860", Size: 15, Decode: decodeAlarm},
	0x0B: {Kind: models.KindWind, Model: "MA10660", Size: 19, UpdatePeriod: periodWind, Decode: decodeWind},
	0x10: {Kind: models.KindDoorWindow, Model: "MA10800", Size: 15, UpdatePeriod: periodDoor, Decode: decodeDoorWindow},
	0x15: {Kind: models.KindKeyPress, Model: "MA10880", Size: 15, Decode: decodeKeyPress},
	0x18: {Kind: models.KindPressure, Model: "MA10238", Size: 25, UpdatePeriod: periodThermo, Decode: decodePressure},
}

func decodeThermo(f Fields) []models.Measurement {
	return []models.Measurement{
		withPrior(f.Temperature(14, "temperature", "", 0), f.Temperature(16, "", "", 0)),
	}
}

func decodeThermoHygro(f Fields) []models.Measurement {
	return []models.Measurement{
		withPrior(f.Temperature(14, "temperature", "", 0), f.Temperature(17, "", "", 0)),
		withPrior(f.Humidity(16, "humidity", "", 0), f.Humidity(19, "", "", 0)),
	}
}

func decodeThermoHygroWet(f Fields) []models.Measurement {
	return []models.Measurement{
		f.Temperature(14, "temperature", "", 0),
		f.Humidity(16, "humidity", "", 0),
		binaryMeasurement(models.MeasurementWetness, "wetness", 0, f.byteAt(17)&0x01 != 0),
	}
}

func decodeAirQuality(f Fields) []models.Measurement {
	return []models.Measurement{
		f.Temperature(14, "temperature", "", 0),
		f.Humidity(16, "humidity", "", 0),
		numeric(models.MeasurementCO2, "co2", float64(f.word(17)), models.UnitPPM),
	}
}

func decodeThermoHygroPool(f Fields) []models.Measurement {
	return []models.Measurement{
		withPrior(f.Temperature(14, "temperature", "", 0), f.Temperature(20, "", "", 0)),
		withPrior(f.Temperature(16, "pool_temperature", "Pool", 1), f.Temperature(22, "", "", 0)),
		withPrior(f.HumidityTenths(18, "humidity"), f.HumidityTenths(24, "")),
	}
}

func decodeThermoHygroOutdoor(f Fields) []models.Measurement {
	return []models.Measurement{
		f.Temperature(14, "temperature", "Indoor", 0),
		f.Humidity(16, "humidity", "Indoor", 0),
		f.Temperature(17, "outdoor_temperature", "Outdoor", 1),
		f.Humidity(19, "outdoor_humidity", "Outdoor", 1),
	}
}

func decodeRain(f Fields) []models.Measurement {
	return []models.Measurement{
		f.Temperature(14, "temperature", "", 0),
		numeric(models.MeasurementRain, "rain", round(float64(f.word(16))*rainPerFlip, 3), models.UnitMillimeter),
		numeric(models.MeasurementTimeSpan, "time_span", float64(f.word(18)), models.UnitSecond),
	}
}

func decodeThermoHygroCable(f Fields) []models.Measurement {
	return []models.Measurement{
		f.Temperature(14, "temperature", "", 0),
		f.Temperature(16, "cable_temperature", "Cable", 1),
		f.Humidity(18, "humidity", "", 0),
	}
}

func decodeAlarm(f Fields) []models.Measurement {
	b := f.byteAt(14)
	measurements := make([]models.Measurement, 0, 4)
	for i := range 4 {
		key := "alarm_" + strconv.Itoa(i+1)
		measurements = append(measurements, binaryMeasurement(models.MeasurementAlarm, key, i+1, b&(1<<i) != 0))
	}
	return measurements
}

func decodeWind(f Fields) []models.Measurement {
	b := f.byteAt(14)
	speed := int(b&0x01)<<8 | int(f.byteAt(15))
	gust := int(b>>1&0x01)<<8 | int(f.byteAt(16))
	return []models.Measurement{
		numeric(models.MeasurementWindDirection, "wind_direction", float64(b>>4)*22.5, models.UnitDegree),
		numeric(models.MeasurementWindSpeed, "wind_speed", float64(speed)/10, models.UnitMeterPerSec),
		numeric(models.MeasurementGust, "gust", float64(gust)/10, models.UnitMeterPerSec),
		numeric(models.MeasurementTimeSpan, "time_span", float64(f.word(17)), models.UnitSecond),
	}
}

func decodeDoorWindow(f Fields) []models.Measurement {
	return []models.Measurement{
		binaryMeasurement(models.MeasurementDoorWindow, "door_window", 0, f.byteAt(14)&0x80 != 0),
	}
}

func decodeKeyPress(f Fields) []models.Measurement {
	b := f.byteAt(14)
	return []models.Measurement{
		enumMeasurement(models.MeasurementKeyPressed, "key_pressed", models.KeyPressedValues, int(b>>4)),
		enumMeasurement(models.MeasurementKeyPressType, "key_press_type", models.KeyPressTypeValues, int(b&0x0F)),
	}
}

func decodePressure(f Fields) []models.Measurement {
	return []models.Measurement{
		withPrior(f.Temperature(15, "temperature", "", 0), f.Temperature(20, "", "", 0)),
		withPrior(f.Humidity(17, "humidity", "", 0), f.Humidity(22, "", "", 0)),
		withPrior(f.Pressure(18, "pressure"), f.Pressure(23, "")),
	}
}
