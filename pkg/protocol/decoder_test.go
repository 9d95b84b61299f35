package protocol

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

const testGatewayID = "001D8C0E1A2B"

// captured frames, zero padded to 64 bytes with the captured checksum at the end
func capturedFrame(t *testing.T, data string, checksum byte) []byte {
	t.Helper()
	b, err := hex.DecodeString(data)
	require.NoError(t, err)
	frame := make([]byte, FrameSize)
	copy(frame, b)
	frame[ChecksumOffset] = checksum
	return frame
}

func byKey(measurements []models.Measurement) map[string]models.Measurement {
	m := make(map[string]models.Measurement, len(measurements))
	for _, measurement := range measurements {
		m[measurement.Key] = measurement
	}
	return m
}

func TestDecode_KeyPressCaptures(t *testing.T) {
	decoder := NewDecoder()

	cases := []struct {
		data     string
		checksum byte
		key      string
		press    string
		ts       int64
	}{
		{"ce5d8a6e0e1215ffffffffff4019114a090204", 0x16, "green", "short", 1569353230},
		{"ce5d8bc69e1215ffffffffff401a210a4a0204", 0x11, "orange", "short", 1569441438},
		{"ce5d8bc9301215ffffffffff401d13cb0a0305", 0x1e, "green", "long", 1569442096},
		{"ce5d8bcb801215ffffffffff4023128e0b0406", 0x3b, "green", "double", 1569442688},
	}

	for _, c := range cases {
		res, err := decoder.Decode(testGatewayID, capturedFrame(t, c.data, c.checksum))
		require.NoError(t, err, c.data)

		assert.Equal(t, "15FFFFFFFFFF", res.SensorID)
		assert.Equal(t, models.KindKeyPress, res.Kind)
		assert.Equal(t, testGatewayID, res.GatewayID)
		assert.Equal(t, time.Duration(0), res.UpdatePeriod)
		assert.True(t, res.Header.ByEvent)
		assert.Equal(t, c.ts, res.Header.Timestamp.Unix())

		values := byKey(res.Measurements)
		assert.Equal(t, c.key, values["key_pressed"].Text)
		assert.Equal(t, c.press, values["key_press_type"].Text)
		assert.Equal(t, models.StateOff, values["battery"].Text)
	}
}

func TestDecode_PressureCapture(t *testing.T) {
	frame := capturedFrame(t, "E06322C5E6241829EFCB988DC0D3E200E735273800E6352738010405090C1002020202020200", 0x79)

	res, err := NewDecoder().Decode(testGatewayID, frame)
	require.NoError(t, err)

	assert.Equal(t, "1829EFCB988D", res.SensorID)
	assert.Equal(t, models.KindPressure, res.Kind)
	assert.True(t, res.Header.BatteryLow)
	assert.Equal(t, 0xD3, res.Header.TxCounter)

	values := byKey(res.Measurements)
	assert.InDelta(t, 23.1, values["temperature"].Value, 1e-9)
	require.NotNil(t, values["temperature"].Prior)
	assert.InDelta(t, 23.0, *values["temperature"].Prior, 1e-9)
	assert.InDelta(t, 53, values["humidity"].Value, 1e-9)
	assert.InDelta(t, 1004.0, values["pressure"].Value, 1e-9)
	assert.InDelta(t, 1004.0, *values["pressure"].Prior, 1e-9)
	assert.Equal(t, models.StateOn, values["battery"].Text)
}

func TestDecode_PoolCapture(t *testing.T) {
	frame := capturedFrame(t, "D66322C4331A065526A17A613AF3008C00B50A5F008B00B50A601A00", 0x04)

	res, err := NewDecoder().Decode(testGatewayID, frame)
	require.NoError(t, err)

	assert.Equal(t, "065526A17A61", res.SensorID)
	assert.Equal(t, models.KindThermoHygroPool, res.Kind)
	assert.False(t, res.Header.BatteryLow)
	assert.False(t, res.Header.ByEvent)

	values := byKey(res.Measurements)
	assert.InDelta(t, 14.0, values["temperature"].Value, 1e-9)
	assert.InDelta(t, 13.9, *values["temperature"].Prior, 1e-9)
	assert.InDelta(t, 18.1, values["pool_temperature"].Value, 1e-9)
	assert.Equal(t, "Pool", values["pool_temperature"].Prefix)
	assert.InDelta(t, 60.7, values["humidity"].Value, 1e-9)
	assert.InDelta(t, 60.8, *values["humidity"].Prior, 1e-9)
}

func TestDecode_IsDeterministic(t *testing.T) {
	decoder := NewDecoder()
	frame := capturedFrame(t, "D66322C4331A065526A17A613AF3008C00B50A5F008B00B50A601A00", 0x04)

	first, err := decoder.Decode(testGatewayID, frame)
	require.NoError(t, err)
	for range 10 {
		again, err := decoder.Decode(testGatewayID, frame)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDecode_UnsupportedKind(t *testing.T) {
	frame := capturedFrame(t, "ce5d8bcb801216ffffffffff4023128e0b0406", 0x3c)

	res, err := NewDecoder().Decode(testGatewayID, frame)
	assert.ErrorIs(t, err, common.ErrUnsupportedKind)
	assert.Empty(t, res.Measurements)
}

func TestDecode_Malformed(t *testing.T) {
	decoder := NewDecoder()
	good := capturedFrame(t, "ce5d8a6e0e1215ffffffffff4019114a090204", 0x16)

	{
		// empty
		res, err := decoder.Decode(testGatewayID, nil)
		assert.ErrorIs(t, err, common.ErrMalformedPayload)
		assert.Empty(t, res.Measurements)
	}

	{
		// truncated
		_, err := decoder.Decode(testGatewayID, good[:40])
		assert.ErrorIs(t, err, common.ErrMalformedPayload)
	}

	{
		// checksum byte flipped
		frame := append([]byte(nil), good...)
		frame[ChecksumOffset] ^= 0x01
		res, err := decoder.Decode(testGatewayID, frame)
		assert.ErrorIs(t, err, common.ErrMalformedPayload)
		assert.Empty(t, res.Measurements)
	}

	{
		// data byte flipped
		frame := append([]byte(nil), good...)
		frame[14] ^= 0x40
		_, err := decoder.Decode(testGatewayID, frame)
		assert.ErrorIs(t, err, common.ErrMalformedPayload)
	}

	{
		// package length beyond the checksum
		frame := append([]byte(nil), good...)
		frame[5] = 63
		_, err := decoder.Decode(testGatewayID, frame)
		assert.ErrorIs(t, err, common.ErrMalformedPayload)
	}

	{
		// valid checksum but too short for the pressure layout
		frame, err := NewFrame(time.Now(), "18AABBCCDDEE", append(TxWord(1, false, false), 0x00, 0x00, 0xE7))
		require.NoError(t, err)
		_, err = decoder.Decode(testGatewayID, frame)
		assert.ErrorIs(t, err, common.ErrMalformedPayload)
	}
}

func TestDecode_TemperatureEncodings(t *testing.T) {
	decoder := NewDecoder()
	decode := func(word uint16) models.Measurement {
		data := append(TxWord(5, false, false), byte(word>>8), byte(word), 0x00, 0x00)
		frame, err := NewFrame(time.Now(), "02AABBCCDDEE", data)
		require.NoError(t, err)
		res, err := decoder.Decode(testGatewayID, frame)
		require.NoError(t, err)
		return byKey(res.Measurements)["temperature"]
	}

	m := decode(213)
	assert.True(t, m.Valid)
	assert.InDelta(t, 21.3, m.Value, 1e-9)

	m = decode(0x400 | 0x3F6)
	assert.True(t, m.Valid)
	assert.InDelta(t, -1.0, m.Value, 1e-9)

	m = decode(0x2000)
	assert.False(t, m.Valid)
	assert.Equal(t, "OL", m.Error)

	m = decode(0x1000)
	assert.False(t, m.Valid)
	assert.Equal(t, "---", m.Error)
}

func TestDecode_KindLayouts(t *testing.T) {
	decoder := NewDecoder()
	decode := func(sensorID string, data ...byte) map[string]models.Measurement {
		frame, err := NewFrame(time.Now(), sensorID, append(TxWord(7, false, false), data...))
		require.NoError(t, err)
		res, err := decoder.Decode(testGatewayID, frame)
		require.NoError(t, err)
		return byKey(res.Measurements)
	}

	{
		v := decode("0BAABBCCDDEE", 0x53, 0x2A, 0x10, 0x00, 0x3C)
		assert.InDelta(t, 5*22.5, v["wind_direction"].Value, 1e-9)
		assert.InDelta(t, (256+42)/10.0, v["wind_speed"].Value, 1e-9)
		assert.InDelta(t, (256+16)/10.0, v["gust"].Value, 1e-9)
		assert.InDelta(t, 60, v["time_span"].Value, 1e-9)
	}

	{
		v := decode("08AABBCCDDEE", 0x00, 0xC8, 0x00, 0x64, 0x00, 0x00)
		assert.InDelta(t, 20.0, v["temperature"].Value, 1e-9)
		assert.InDelta(t, 25.8, v["rain"].Value, 1e-9)
		assert.Equal(t, 0.0, v["time_span"].Value)
	}

	{
		v := decode("0AAABBCCDDEE", 0x05)
		assert.Equal(t, models.StateOn, v["alarm_1"].Text)
		assert.Equal(t, models.StateOff, v["alarm_2"].Text)
		assert.Equal(t, models.StateOn, v["alarm_3"].Text)
		assert.Equal(t, 4, v["alarm_4"].Index)
	}

	{
		v := decode("10AABBCCDDEE", 0x80)
		assert.Equal(t, models.StateOn, v["door_window"].Text)
	}

	{
		v := decode("05AABBCCDDEE", 0x00, 0xD2, 0x2D, 0x03, 0x20)
		assert.InDelta(t, 800, v["co2"].Value, 1e-9)
		assert.InDelta(t, 45, v["humidity"].Value, 1e-9)
	}

	{
		v := decode("07AABBCCDDEE", 0x00, 0xD2, 0x2D, 0x07, 0xF2, 0xC8)
		assert.Equal(t, "Indoor", v["temperature"].Prefix)
		assert.InDelta(t, -1.4, v["outdoor_temperature"].Value, 1e-9)
		assert.False(t, v["outdoor_humidity"].Valid)
	}

	{
		v := decode("04AABBCCDDEE", 0x00, 0xD2, 0x2D, 0x01)
		assert.Equal(t, models.StateOn, v["wetness"].Text)
	}

	{
		v := decode("09AABBCCDDEE", 0x00, 0xD2, 0x10, 0x00, 0x2D)
		assert.InDelta(t, 21.0, v["temperature"].Value, 1e-9)
		assert.False(t, v["cable_temperature"].Valid)
		assert.Equal(t, "Cable", v["cable_temperature"].Prefix)
	}
}

func TestDecoder_Register(t *testing.T) {
	decoder := NewDecoder()
	frame, err := NewFrame(time.Now(), "16FFFFFFFFFF", append(TxWord(1, true, false), 0x12))
	require.NoError(t, err)

	_, err = decoder.Decode(testGatewayID, frame)
	require.ErrorIs(t, err, common.ErrUnsupportedKind)

	decoder.Register(0x16, KindSpec{
		Kind:  models.KindKeyPress,
		Model: "MA10880",
		Size:  15,
		Decode: func(f Fields) []models.Measurement {
			return decodeKeyPress(f)
		},
	})

	res, err := decoder.Decode(testGatewayID, frame)
	require.NoError(t, err)
	assert.Equal(t, "double", byKey(res.Measurements)["key_press_type"].Text)

	// registering on one decoder leaves others untouched
	_, err = NewDecoder().Decode(testGatewayID, frame)
	assert.ErrorIs(t, err, common.ErrUnsupportedKind)
}
