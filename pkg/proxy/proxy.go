package proxy

//go:generate mockgen -destination=mocks/mock_proxy.go -package=mocks liyu1981.xyz/mobilealerts-proxy/pkg/proxy IRelay,IPublisher,IConfigurator,IStore

import (
	"context"
	"time"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/discovery"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	"liyu1981.xyz/mobilealerts-proxy/pkg/protocol"
	"liyu1981.xyz/mobilealerts-proxy/pkg/registry"
	"liyu1981.xyz/mobilealerts-proxy/pkg/relay"
)

type IRelay interface {
	Forward(req relay.Request) bool
}

type IPublisher interface {
	Publish(update models.Update)
}

type IConfigurator interface {
	Discover(ctx context.Context) ([]*discovery.GatewayConfig, error)
	GetConfig(ctx context.Context, gatewayID, address string) (*discovery.GatewayConfig, error)
	Attach(ctx context.Context, cfg *discovery.GatewayConfig, host string, port int) error
}

type IStore interface {
	SaveGateway(info models.GatewayInfo) error
	SaveSensor(info models.SensorInfo) error
}

// Proxy ties the upload pipeline together: gateways upload to it, frames are
// decoded into the registry and every change is handed to the publisher while
// the raw upload is forked to the relay.
type Proxy struct {
	Config   *common.Config
	Decoder  *protocol.Decoder
	Registry *registry.Registry

	Relay        IRelay
	Publisher    IPublisher
	Configurator IConfigurator
	Store        IStore

	now func() time.Time
}

type ServiceOpts struct {
	Relay        IRelay
	Publisher    IPublisher
	Configurator IConfigurator
	Store        IStore
}

func New(cfg *common.Config, decoder *protocol.Decoder, reg *registry.Registry) *Proxy {
	if cfg == nil {
		defaults := common.DefaultConfig()
		cfg = &defaults
	}
	if decoder == nil {
		decoder = protocol.NewDecoder()
	}
	if reg == nil {
		reg = registry.New(registry.Options{StaleTimeout: cfg.StaleTimeout})
	}
	return &Proxy{Config: cfg, Decoder: decoder, Registry: reg, now: time.Now}
}

func (p *Proxy) WithServices(opts ServiceOpts) *Proxy {
	if opts.Relay != nil {
		p.Relay = opts.Relay
	}
	if opts.Publisher != nil {
		p.Publisher = opts.Publisher
	}
	if opts.Configurator != nil {
		p.Configurator = opts.Configurator
	}
	if opts.Store != nil {
		p.Store = opts.Store
	}
	return p
}

func (p *Proxy) publish(u models.Update) {
	if p.Publisher != nil {
		p.Publisher.Publish(u)
	}
}
