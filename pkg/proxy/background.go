package proxy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/metrics"
)

// CheckGateways polls every known gateway once and updates its online flag
// and address. It returns the number of gateways online.
func (p *Proxy) CheckGateways(ctx context.Context) int {
	logger := common.GetLoggerWith(common.LoggerNameProxyCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryMonitor))

	online := 0
	for _, gw := range p.Registry.Gateways() {
		if ctx.Err() != nil {
			break
		}
		cfg, err := p.Configurator.GetConfig(ctx, gw.ID, gw.Address)
		address := ""
		if err == nil {
			address = cfg.Address()
			online++
		}
		if err := p.Registry.SetGatewayOnline(gw.ID, err == nil, address); err != nil {
			continue
		}
		if gw.Online != (err == nil) {
			logger.Info("Gateway availability changed",
				zap.String(common.LoggerFieldGatewayID, gw.ID),
				zap.Bool("online", err == nil),
				zap.Error(err))
		}
	}
	metrics.GatewaysOnline.Set(float64(online))
	return online
}

// RunGatewayMonitor calls CheckGateways every interval until ctx is done.
func (p *Proxy) RunGatewayMonitor(ctx context.Context, interval time.Duration) error {
	if p.Configurator == nil || interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.CheckGateways(ctx)
		}
	}
}

// SweepStale publishes availability updates for sensors that went stale.
func (p *Proxy) SweepStale(now time.Time) int {
	stale := p.Registry.Sweep(now, p.publish)
	if stale > 0 {
		metrics.SensorsStale.Add(float64(stale))
		common.GetLoggerWith(common.LoggerNameProxyCore,
			zap.String(common.LoggerFieldCategory, common.LoggerCategorySweep)).
			Info("Sensors went stale", zap.Int("count", stale))
	}
	return stale
}

func (p *Proxy) RunStaleSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.SweepStale(p.now())
		}
	}
}
