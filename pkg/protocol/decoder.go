package protocol

import (
	"fmt"
	"sync"
	"time"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

// KindSpec describes one sensor type: the kind it establishes, how many frame
// bytes the layout reads and the function extracting its measurements.
type KindSpec struct {
	Kind  models.SensorKind
	Model string
	// Size is the number of frame bytes, counted from 0, the layout reads.
	Size int
	// UpdatePeriod is the regular transmit interval, 0 for event driven sensors.
	UpdatePeriod time.Duration
	Decode       func(f Fields) []models.Measurement
}

// Descriptor identifies the sensor a frame came from.
type Descriptor struct {
	SensorID     string
	Kind         models.SensorKind
	Model        string
	UpdatePeriod time.Duration
}

type Result struct {
	Descriptor
	GatewayID    string
	Header       Header
	Measurements []models.Measurement
}

// Decoder turns frames into measurements using a table of kinds keyed by the
// frame's type byte. NewDecoder fills it with the built-in kinds.
type Decoder struct {
	mu    sync.RWMutex
	kinds map[byte]KindSpec
}

func NewDecoder() *Decoder {
	d := &Decoder{kinds: make(map[byte]KindSpec, len(defaultKinds))}
	for discriminator, spec := range defaultKinds {
		d.kinds[discriminator] = spec
	}
	return d
}

// Register adds or replaces the layout for discriminator. It is a hook for Go
// code embedding the decoder: a KindSpec carries a Decode function, so kinds
// cannot come from the environment or any config file.
func (d *Decoder) Register(discriminator byte, spec KindSpec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kinds[discriminator] = spec
}

func (d *Decoder) Lookup(discriminator byte) (KindSpec, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	spec, ok := d.kinds[discriminator]
	return spec, ok
}

// Decode validates one frame from gatewayID and decodes it. It never returns
// a partial result: on error Result is empty.
func (d *Decoder) Decode(gatewayID string, frame []byte) (Result, error) {
	header, err := ParseHeader(frame)
	if err != nil {
		return Result{}, err
	}

	spec, ok := d.Lookup(header.Discriminator)
	if !ok {
		return Result{}, fmt.Errorf("sensor %s type %#02x: %w", header.SensorID, header.Discriminator, common.ErrUnsupportedKind)
	}
	if header.Length+1 < spec.Size {
		return Result{}, fmt.Errorf("sensor %s %s needs %d bytes, got %d: %w",
			header.SensorID, spec.Kind, spec.Size, header.Length+1, common.ErrMalformedPayload)
	}

	measurements := spec.Decode(Fields(frame[:header.Length+1]))
	measurements = append(measurements, binaryMeasurement(models.MeasurementBatteryLow, "battery", 0, header.BatteryLow))

	return Result{
		Descriptor: Descriptor{
			SensorID:     header.SensorID,
			Kind:         spec.Kind,
			Model:        spec.Model,
			UpdatePeriod: spec.UpdatePeriod,
		},
		GatewayID:    gatewayID,
		Header:       header,
		Measurements: measurements,
	}, nil
}
