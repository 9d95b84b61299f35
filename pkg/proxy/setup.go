package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/discovery"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	"liyu1981.xyz/mobilealerts-proxy/pkg/protocol"
)

type SetupOptions struct {
	// GatewayID selects a gateway, empty means discover.
	GatewayID string
	// Address of the gateway, empty uses the discovery target.
	Address         string
	SendDataToCloud *bool
}

// SetupGateway adds one gateway: it reads or discovers its config, attaches
// it to this proxy when an advertise address is set and records its
// ProxyState. The gateway's previous proxy becomes its relay upstream.
func (p *Proxy) SetupGateway(ctx context.Context, opts SetupOptions) (models.GatewayInfo, error) {
	logger := common.GetLoggerWith(common.LoggerNameProxyCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategorySetup))

	if p.Configurator == nil {
		return models.GatewayInfo{}, errors.New("gateway configurator not available")
	}

	cfg, err := p.findGateway(ctx, opts)
	if err != nil {
		logger.Warn("Gateway setup aborted", zap.String("reason", common.ErrorLabel(err)), zap.Error(err))
		return models.GatewayInfo{}, err
	}
	logger = logger.With(zap.String(common.LoggerFieldGatewayID, cfg.ID))

	host, port, err := p.advertised()
	if err != nil {
		return models.GatewayInfo{}, err
	}

	upstream := cfg.Proxy()
	if host != "" && cfg.IsAttachedTo(host, port) {
		// already ours, keep the upstream recorded before
		upstream = ""
		if known, ok := p.Registry.Gateway(cfg.ID); ok {
			upstream = known.Upstream
		}
	}

	if host != "" {
		if err := p.Configurator.Attach(ctx, cfg, host, port); err != nil {
			logger.Error("Failed to attach gateway", zap.Error(err))
			return models.GatewayInfo{}, err
		}
	}

	send := p.Config.SendDataToCloud
	if opts.SendDataToCloud != nil {
		send = *opts.SendDataToCloud
	}

	info := models.GatewayInfo{
		ID:              cfg.ID,
		Address:         cfg.Address(),
		Name:            cfg.Name,
		SendDataToCloud: send,
		Upstream:        upstream,
		Online:          true,
		LastSeen:        p.now(),
	}
	p.Registry.EnsureGateway(info)
	p.saveGateway(cfg.ID)

	info, _ = p.Registry.Gateway(cfg.ID)
	logger.Info("Gateway set up",
		zap.String("address", info.Address),
		zap.String("upstream", info.Upstream),
		zap.Bool("send_data_to_cloud", info.SendDataToCloud))
	return info, nil
}

func (p *Proxy) findGateway(ctx context.Context, opts SetupOptions) (*discovery.GatewayConfig, error) {
	if opts.GatewayID != "" {
		id := common.NormalizeID(opts.GatewayID)
		if !common.IsHexID(id, protocol.GatewayIDLength) {
			return nil, fmt.Errorf("invalid gateway id %q", opts.GatewayID)
		}
		return p.Configurator.GetConfig(ctx, id, opts.Address)
	}

	found, err := p.Configurator.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, common.ErrNoGateways
	}

	var candidates []*discovery.GatewayConfig
	for _, cfg := range found {
		if _, known := p.Registry.Gateway(cfg.ID); !known {
			candidates = append(candidates, cfg)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("all discovered gateways are already set up: %w", common.ErrNoGateways)
	case 1:
		return candidates[0], nil
	default:
		ids := common.Mapper(candidates, func(cfg *discovery.GatewayConfig) string { return cfg.ID })
		return nil, fmt.Errorf("%w: %s", common.ErrMultipleGateways, strings.Join(ids, ", "))
	}
}

// advertised splits the advertise address into the host and port gateways
// are pointed at. Empty means gateways are not reconfigured.
func (p *Proxy) advertised() (string, int, error) {
	if p.Config.AdvertiseAddress == "" {
		return "", 0, nil
	}
	host, portStr, err := net.SplitHostPort(p.Config.AdvertiseAddress)
	if err != nil {
		return "", 0, fmt.Errorf("advertise address %q: %w", p.Config.AdvertiseAddress, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("advertise address %q: invalid port", p.Config.AdvertiseAddress)
	}
	return host, port, nil
}

// SetGatewayOptions changes the ProxyState of a gateway. The next upload
// already follows it.
func (p *Proxy) SetGatewayOptions(gatewayID string, sendDataToCloud bool) (models.GatewayInfo, error) {
	gatewayID = common.NormalizeID(gatewayID)
	info, err := p.Registry.SetSendDataToCloud(gatewayID, sendDataToCloud)
	if err != nil {
		return models.GatewayInfo{}, err
	}
	p.saveGateway(gatewayID)

	common.GetLoggerWith(common.LoggerNameProxyCore,
		zap.String(common.LoggerFieldGatewayID, gatewayID)).
		Info("Gateway options changed", zap.Bool("send_data_to_cloud", sendDataToCloud))
	return info, nil
}

// RegisterSensor declares a sensor by hand, establishing its kind.
func (p *Proxy) RegisterSensor(gatewayID, sensorID string, kind models.SensorKind, name string) (models.SensorInfo, error) {
	info, err := p.Registry.Register(common.NormalizeID(gatewayID), sensorID, kind, name)
	if err != nil {
		return models.SensorInfo{}, err
	}
	if p.Store != nil {
		if err := p.Store.SaveSensor(info); err != nil {
			return info, err
		}
	}
	return info, nil
}
