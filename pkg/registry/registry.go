package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	"liyu1981.xyz/mobilealerts-proxy/pkg/protocol"
)

const (
	DefaultShards         = 64
	DefaultLastRainPeriod = 10 * time.Minute

	// a sensor is stale after missing this many of its regular transmissions
	StaleFactor = 12.1
)

type Options struct {
	// StaleTimeout overrides the per kind timeout when positive.
	StaleTimeout   time.Duration
	Shards         int
	LastRainPeriod time.Duration
	Now            func() time.Time
}

// Registry holds gateways and sensors. Sensors are spread over shards by ID
// and every mutation of a sensor happens under its shard lock, which also
// serializes the updates it emits.
type Registry struct {
	opts   Options
	shards []*shard

	gwMu     sync.RWMutex
	gateways map[string]*models.GatewayInfo
}

type shard struct {
	mu      sync.Mutex
	devices map[string]*device
}

type device struct {
	info         models.SensorInfo
	updatePeriod time.Duration
	values       map[string]models.Measurement
	keys         []string
	seq          uint64
	rain         *rainHistory
}

func New(opts Options) *Registry {
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.LastRainPeriod <= 0 {
		opts.LastRainPeriod = DefaultLastRainPeriod
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Registry{
		opts:     opts,
		shards:   make([]*shard, opts.Shards),
		gateways: make(map[string]*models.GatewayInfo),
	}
	for i := range r.shards {
		r.shards[i] = &shard{devices: make(map[string]*device)}
	}
	return r
}

func (r *Registry) shardFor(sensorID string) *shard {
	return r.shards[xxhash.Sum64String(sensorID)%uint64(len(r.shards))]
}

func newDevice(gatewayID, sensorID string, kind models.SensorKind) *device {
	return &device{
		info: models.SensorInfo{
			ID:        sensorID,
			GatewayID: gatewayID,
			Kind:      kind,
			State:     models.StateUnknown,
		},
		values: make(map[string]models.Measurement),
	}
}

func (d *device) snapshot() models.SensorInfo {
	info := d.info
	info.Values = make([]models.Measurement, 0, len(d.keys))
	for _, key := range d.keys {
		info.Values = append(info.Values, d.values[key])
	}
	return info
}

// Resolve returns the sensor for desc, creating it on first sight. A sensor
// whose established kind differs from desc.Kind is left unchanged and
// ErrKindConflict is returned.
func (r *Registry) Resolve(gatewayID string, desc protocol.Descriptor) (models.SensorInfo, error) {
	s := r.shardFor(desc.SensorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := r.resolveLocked(s, gatewayID, desc)
	if err != nil {
		return models.SensorInfo{}, err
	}
	return dev.snapshot(), nil
}

func (r *Registry) resolveLocked(s *shard, gatewayID string, desc protocol.Descriptor) (*device, error) {
	dev, ok := s.devices[desc.SensorID]
	if !ok {
		dev = newDevice(gatewayID, desc.SensorID, desc.Kind)
		dev.info.Model = desc.Model
		dev.updatePeriod = desc.UpdatePeriod
		s.devices[desc.SensorID] = dev

		common.GetLoggerWith(common.LoggerNameRegistry).Info("New sensor",
			zap.String(common.LoggerFieldSensorID, desc.SensorID),
			zap.String(common.LoggerFieldGatewayID, gatewayID),
			zap.String("kind", string(desc.Kind)))
		return dev, nil
	}

	if dev.info.Kind != desc.Kind {
		return nil, fmt.Errorf("sensor %s is %s, frame decodes as %s: %w",
			desc.SensorID, dev.info.Kind, desc.Kind, common.ErrKindConflict)
	}
	if gatewayID != "" {
		dev.info.GatewayID = gatewayID
	}
	if dev.info.Model == "" {
		dev.info.Model = desc.Model
	}
	dev.updatePeriod = desc.UpdatePeriod
	return dev, nil
}

// ApplyMeasurement stores m as the last known value of its key and reports
// whether it differs from the previous one.
func (r *Registry) ApplyMeasurement(sensor models.SensorInfo, m models.Measurement) (bool, error) {
	s := r.shardFor(sensor.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[sensor.ID]
	if !ok {
		return false, fmt.Errorf("sensor %s: %w", sensor.ID, common.ErrUnknownSensor)
	}
	return dev.apply(m), nil
}

func (d *device) apply(m models.Measurement) bool {
	prev, ok := d.values[m.Key]
	if !ok {
		d.keys = append(d.keys, m.Key)
	}
	d.values[m.Key] = m
	return !ok || !prev.Equal(m)
}

// Apply records one decoded frame: resolve, state transition and the dedup
// gate. emit is called under the sensor's shard lock, once per real change,
// so updates of one sensor reach emit in the order frames were applied.
func (r *Registry) Apply(res protocol.Result, emit func(models.Update)) error {
	now := r.opts.Now()

	s := r.shardFor(res.SensorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := r.resolveLocked(s, res.GatewayID, res.Descriptor)
	if err != nil {
		return err
	}

	dev.info.BatteryLow = res.Header.BatteryLow
	dev.info.ByEvent = res.Header.ByEvent
	dev.info.LastUpdate = now

	if dev.info.State != models.StateAvailable {
		dev.info.State = models.StateAvailable
		emit(dev.availabilityUpdate(now))
	}

	for _, m := range res.Measurements {
		if dev.apply(m) {
			emit(dev.valueUpdate(m, now))
		}
	}

	if dev.info.Kind == models.KindRain {
		if dev.rain == nil {
			dev.rain = &rainHistory{}
		}
		dev.rain.observe(now, res.Measurements)
		for _, m := range dev.rain.derived(now, r.opts.LastRainPeriod) {
			if dev.apply(m) {
				emit(dev.valueUpdate(m, now))
			}
		}
	}
	return nil
}

func (d *device) availabilityUpdate(now time.Time) models.Update {
	d.seq++
	return models.Update{
		Type:       models.UpdateAvailability,
		GatewayID:  d.info.GatewayID,
		SensorID:   d.info.ID,
		Kind:       d.info.Kind,
		State:      d.info.State,
		Available:  d.info.State == models.StateAvailable,
		BatteryLow: d.info.BatteryLow,
		Timestamp:  now,
		Seq:        d.seq,
	}
}

func (d *device) valueUpdate(m models.Measurement, now time.Time) models.Update {
	u := d.availabilityUpdate(now)
	u.Type = models.UpdateValue
	u.Measurement = &m
	return u
}

func (r *Registry) staleTimeout(d *device) time.Duration {
	if r.opts.StaleTimeout > 0 {
		return r.opts.StaleTimeout
	}
	return time.Duration(float64(d.updatePeriod) * StaleFactor)
}

func (r *Registry) isStale(d *device, now time.Time) bool {
	if timeout := r.staleTimeout(d); timeout > 0 {
		return now.Sub(d.info.LastUpdate) > timeout
	}
	// event driven sensors follow their gateway
	gw, ok := r.Gateway(d.info.GatewayID)
	return ok && !gw.Online
}

// Sweep marks sensors stale that missed their timeout and refreshes time
// based rain values. It returns the number of sensors that went stale.
func (r *Registry) Sweep(now time.Time, emit func(models.Update)) int {
	stale := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for _, dev := range s.devices {
			if dev.info.State == models.StateAvailable && r.isStale(dev, now) {
				dev.info.State = models.StateStale
				emit(dev.availabilityUpdate(now))
				stale++
			}
			if dev.rain != nil {
				for _, m := range dev.rain.derived(now, r.opts.LastRainPeriod) {
					if dev.apply(m) {
						emit(dev.valueUpdate(m, now))
					}
				}
			}
		}
		s.mu.Unlock()
	}
	return stale
}

func (r *Registry) Sensor(sensorID string) (models.SensorInfo, bool) {
	sensorID = common.NormalizeID(sensorID)
	s := r.shardFor(sensorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[sensorID]
	if !ok {
		return models.SensorInfo{}, false
	}
	return dev.snapshot(), true
}

// Sensors returns all sensors ordered by ID.
func (r *Registry) Sensors() []models.SensorInfo {
	var sensors []models.SensorInfo
	for _, s := range r.shards {
		s.mu.Lock()
		for _, dev := range s.devices {
			sensors = append(sensors, dev.snapshot())
		}
		s.mu.Unlock()
	}
	slices.SortFunc(sensors, func(a, b models.SensorInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return sensors
}

// Register declares a sensor ahead of its first frame, e.g. from the admin
// API. Its kind is then established and later frames must match it.
func (r *Registry) Register(gatewayID, sensorID string, kind models.SensorKind, name string) (models.SensorInfo, error) {
	sensorID = common.NormalizeID(sensorID)
	s := r.shardFor(sensorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[sensorID]
	if !ok {
		dev = newDevice(gatewayID, sensorID, kind)
		s.devices[sensorID] = dev
	} else if dev.info.Kind != kind {
		return models.SensorInfo{}, fmt.Errorf("sensor %s is %s, not %s: %w",
			sensorID, dev.info.Kind, kind, common.ErrKindConflict)
	}
	if name != "" {
		dev.info.Name = name
	}
	return dev.snapshot(), nil
}

// Restore seeds the registry from persisted rows. Restored sensors keep
// their last values but stay unknown until their next frame.
func (r *Registry) Restore(gateways []models.Gateway) int {
	restored := 0
	for _, gw := range gateways {
		r.EnsureGateway(models.GatewayInfo{
			ID:              gw.ID,
			Address:         gw.Address,
			Name:            gw.Name,
			SendDataToCloud: gw.SendDataToCloud,
			Upstream:        gw.Upstream,
			LastSeen:        gw.LastSeen,
		})

		for _, row := range gw.Sensors {
			s := r.shardFor(row.ID)
			s.mu.Lock()
			if _, exists := s.devices[row.ID]; !exists {
				dev := newDevice(gw.ID, row.ID, row.Kind)
				dev.info.Name = row.Name
				dev.info.BatteryLow = row.BatteryLow
				dev.info.LastUpdate = row.LastUpdate
				for _, reading := range row.Readings {
					m := reading.Measurement()
					dev.apply(m)
					if m.Type == models.MeasurementRain && m.Valid {
						dev.rain = &rainHistory{counter: m.Value, hasCounter: true}
					}
				}
				s.devices[row.ID] = dev
				restored++
			}
			s.mu.Unlock()
		}
	}
	return restored
}
