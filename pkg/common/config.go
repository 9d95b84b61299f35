package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	z "github.com/Oudwins/zog"
	"github.com/joho/godotenv"
)

type Config struct {
	DBType string
	DBPath string

	HttpHostPort string
	GrpcHostPort string

	AdvertiseAddress string
	GatewayID        string
	GatewayAddress   string
	DiscoveryAddress string
	SendDataToCloud  bool

	CloudURL        string
	RelayTimeout    time.Duration
	RelayMaxRetries int
	RelayWorkers    int
	RelayQueueSize  int
	ShutdownGrace   time.Duration

	StaleTimeout    time.Duration
	SweepInterval   time.Duration
	MonitorInterval time.Duration

	DispatchShards    int
	DispatchQueueSize int

	UploadRate  float64
	UploadBurst int

	RedisAddr string
	NatsURL   string
}

var configSchema = z.Struct(z.Shape{
	"DBType":            z.String().Required().OneOf([]string{"file", "memory"}),
	"HttpHostPort":      z.String().Required(),
	"CloudURL":          z.String().Required(),
	"RelayMaxRetries":   z.Int().GTE(0),
	"RelayWorkers":      z.Int().GT(0),
	"RelayQueueSize":    z.Int().GT(0),
	"DispatchShards":    z.Int().GT(0),
	"DispatchQueueSize": z.Int().GT(0),
	"UploadRate":        z.Float64().GT(0),
	"UploadBurst":       z.Int().GT(0),
})

func DefaultConfig() Config {
	return Config{
		DBType:            "file",
		DBPath:            "mobilealerts.db",
		HttpHostPort:      ":8080",
		DiscoveryAddress:  "255.255.255.255:8003",
		SendDataToCloud:   true,
		CloudURL:          DefaultCloudURL,
		RelayTimeout:      5 * time.Second,
		RelayMaxRetries:   3,
		RelayWorkers:      4,
		RelayQueueSize:    256,
		ShutdownGrace:     10 * time.Second,
		SweepInterval:     30 * time.Second,
		MonitorInterval:   60 * time.Second,
		DispatchShards:    8,
		DispatchQueueSize: 1024,
		UploadRate:        5,
		UploadBurst:       20,
	}
}

// LoadEnvFiles loads .env style files into the process environment,
// missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadConfig reads the MA_* environment on top of DefaultConfig and validates the result.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	p := envParser{}

	p.str(EnvKeyMADBType, &cfg.DBType)
	p.str(EnvKeyMADbPath, &cfg.DBPath)
	p.str(EnvKeyMAHttpHostPort, &cfg.HttpHostPort)
	p.str(EnvKeyMAGrpcHostPort, &cfg.GrpcHostPort)
	p.str(EnvKeyMAAdvertiseAddress, &cfg.AdvertiseAddress)
	p.str(EnvKeyMAGatewayID, &cfg.GatewayID)
	p.str(EnvKeyMAGatewayAddress, &cfg.GatewayAddress)
	p.str(EnvKeyMADiscoveryAddress, &cfg.DiscoveryAddress)
	p.boolean(EnvKeyMASendDataToCloud, &cfg.SendDataToCloud)
	p.str(EnvKeyMACloudURL, &cfg.CloudURL)
	p.duration(EnvKeyMARelayTimeout, &cfg.RelayTimeout)
	p.integer(EnvKeyMARelayMaxRetries, &cfg.RelayMaxRetries)
	p.integer(EnvKeyMARelayWorkers, &cfg.RelayWorkers)
	p.integer(EnvKeyMARelayQueueSize, &cfg.RelayQueueSize)
	p.duration(EnvKeyMAShutdownGrace, &cfg.ShutdownGrace)
	p.duration(EnvKeyMAStaleTimeout, &cfg.StaleTimeout)
	p.duration(EnvKeyMASweepInterval, &cfg.SweepInterval)
	p.duration(EnvKeyMAMonitorInterval, &cfg.MonitorInterval)
	p.integer(EnvKeyMADispatchShards, &cfg.DispatchShards)
	p.integer(EnvKeyMADispatchQueue, &cfg.DispatchQueueSize)
	p.float(EnvKeyMAUploadRate, &cfg.UploadRate)
	p.integer(EnvKeyMAUploadBurst, &cfg.UploadBurst)
	p.str(EnvKeyMARedisAddr, &cfg.RedisAddr)
	p.str(EnvKeyMANatsURL, &cfg.NatsURL)

	if p.err != nil {
		return nil, p.err
	}

	if errs := configSchema.Validate(&cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %v", errs)
	}

	if cfg.RelayTimeout <= 0 {
		return nil, fmt.Errorf("invalid config: %s must be positive", EnvKeyMARelayTimeout)
	}
	if cfg.SweepInterval <= 0 || cfg.MonitorInterval <= 0 {
		return nil, fmt.Errorf("invalid config: %s and %s must be positive", EnvKeyMASweepInterval, EnvKeyMAMonitorInterval)
	}
	if cfg.StaleTimeout < 0 || cfg.ShutdownGrace < 0 {
		return nil, fmt.Errorf("invalid config: %s and %s must not be negative", EnvKeyMAStaleTimeout, EnvKeyMAShutdownGrace)
	}

	cfg.GatewayID = strings.ToUpper(cfg.GatewayID)
	return &cfg, nil
}

// envParser keeps the first parse error so LoadConfig can report it once.
type envParser struct {
	err error
}

func (p *envParser) lookup(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, found := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, found && v != ""
}

func (p *envParser) fail(key, v, want string) {
	p.err = fmt.Errorf("invalid %s=%q, should be %s", key, v, want)
}

func (p *envParser) str(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *envParser) boolean(key string, dst *bool) {
	if v, ok := p.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(key, v, "a bool value")
			return
		}
		*dst = b
	}
}

func (p *envParser) integer(key string, dst *int) {
	if v, ok := p.lookup(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			p.fail(key, v, "an int value")
			return
		}
		*dst = i
	}
}

func (p *envParser) float(key string, dst *float64) {
	if v, ok := p.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.fail(key, v, "a float64 value")
			return
		}
		*dst = f
	}
}

func (p *envParser) duration(key string, dst *time.Duration) {
	if v, ok := p.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(key, v, "a duration like 5s")
			return
		}
		*dst = d
	}
}
