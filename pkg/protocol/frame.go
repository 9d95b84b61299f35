package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

// Gateway upload frame layout:
//
//	[0]      packet header
//	[1:5]    unix timestamp, big endian
//	[5]      package length L, bytes [0:L+1] are covered by the checksum
//	[6:12]   sensor id, [6] is the sensor type
//	[12:14]  transmit word: bit 15 battery low, bit 14 sent by event, bits 0-13 counter
//	[14:L+1] sensor data
//	[63]     checksum, sum(frame[0:L+1]) & 0x7F
const (
	FrameSize      = 64
	SensorIDSize   = 6
	ChecksumOffset = FrameSize - 1
	DataOffset     = 14

	offsetTimestamp = 1
	offsetLength    = 5
	offsetSensorID  = 6
	offsetTxWord    = 12

	minPackageLength = DataOffset - 1
	maxPackageLength = ChecksumOffset - 1

	txBatteryLow = 0x8000
	txByEvent    = 0x4000
	txCounter    = 0x3FFF

	DefaultPacketHeader byte = 0xCE
)

// Header is the kind independent part of a frame.
type Header struct {
	PacketHeader  byte
	Timestamp     time.Time
	Length        int
	SensorID      string
	Discriminator byte
	BatteryLow    bool
	ByEvent       bool
	TxCounter     int
}

func Checksum(frame []byte, length int) byte {
	var sum byte
	for _, b := range frame[:length+1] {
		sum += b
	}
	return sum & 0x7F
}

// ParseHeader validates size, length and checksum of one frame.
func ParseHeader(frame []byte) (Header, error) {
	if len(frame) != FrameSize {
		return Header{}, fmt.Errorf("frame size %d: %w", len(frame), common.ErrMalformedPayload)
	}
	length := int(frame[offsetLength])
	if length < minPackageLength || length > maxPackageLength {
		return Header{}, fmt.Errorf("package length %d: %w", length, common.ErrMalformedPayload)
	}
	if sum := Checksum(frame, length); sum != frame[ChecksumOffset] {
		return Header{}, fmt.Errorf("checksum %#02x, frame says %#02x: %w",
			sum, frame[ChecksumOffset], common.ErrMalformedPayload)
	}

	tx := binary.BigEndian.Uint16(frame[offsetTxWord:])
	return Header{
		PacketHeader:  frame[0],
		Timestamp:     time.Unix(int64(binary.BigEndian.Uint32(frame[offsetTimestamp:])), 0).UTC(),
		Length:        length,
		SensorID:      strings.ToUpper(hex.EncodeToString(frame[offsetSensorID : offsetSensorID+SensorIDSize])),
		Discriminator: frame[offsetSensorID],
		BatteryLow:    tx&txBatteryLow != 0,
		ByEvent:       tx&txByEvent != 0,
		TxCounter:     int(tx & txCounter),
	}, nil
}

// SplitFrames cuts an upload body into whole frames. rest is the size of a
// trailing partial frame, which callers count as malformed.
func SplitFrames(p models.Payload) (frames [][]byte, rest int) {
	n := p.Len() / FrameSize
	frames = make([][]byte, 0, n)
	for i := range n {
		frames = append(frames, p.Slice(i*FrameSize, FrameSize))
	}
	return frames, p.Len() % FrameSize
}

// NewFrame encodes a frame for sensorID. data starts at the transmit word.
func NewFrame(ts time.Time, sensorID string, data []byte) ([]byte, error) {
	id, err := hex.DecodeString(sensorID)
	if err != nil || len(id) != SensorIDSize {
		return nil, fmt.Errorf("invalid sensor id %q", sensorID)
	}
	length := offsetTxWord + len(data) - 1
	if length < minPackageLength || length > maxPackageLength {
		return nil, fmt.Errorf("sensor data of %d bytes does not fit a frame", len(data))
	}

	frame := make([]byte, FrameSize)
	frame[0] = DefaultPacketHeader
	binary.BigEndian.PutUint32(frame[offsetTimestamp:], uint32(ts.Unix()))
	frame[offsetLength] = byte(length)
	copy(frame[offsetSensorID:], id)
	copy(frame[offsetTxWord:], data)
	frame[ChecksumOffset] = Checksum(frame, length)
	return frame, nil
}

// TxWord builds the transmit word that starts the sensor data.
func TxWord(counter int, byEvent, batteryLow bool) []byte {
	w := uint16(counter) & txCounter
	if byEvent {
		w |= txByEvent
	}
	if batteryLow {
		w |= txBatteryLow
	}
	return binary.BigEndian.AppendUint16(nil, w)
}
