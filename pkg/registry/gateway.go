package registry

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

// TouchGateway records an upload from gatewayID. Unknown gateways are created
// with the given send_data_to_cloud default.
func (r *Registry) TouchGateway(gatewayID, address string, now time.Time, sendDataToCloud bool) (created bool) {
	r.gwMu.Lock()
	defer r.gwMu.Unlock()

	gw, ok := r.gateways[gatewayID]
	if !ok {
		gw = &models.GatewayInfo{ID: gatewayID, SendDataToCloud: sendDataToCloud}
		r.gateways[gatewayID] = gw
		common.GetLoggerWith(common.LoggerNameRegistry).Info("New gateway",
			zap.String(common.LoggerFieldGatewayID, gatewayID),
			zap.String("address", address))
	}
	if address != "" {
		gw.Address = address
	}
	gw.Online = true
	gw.LastSeen = now
	return !ok
}

// EnsureGateway creates or overwrites the stored settings of a gateway,
// keeping its runtime online flag.
func (r *Registry) EnsureGateway(info models.GatewayInfo) {
	r.gwMu.Lock()
	defer r.gwMu.Unlock()

	if gw, ok := r.gateways[info.ID]; ok {
		info.Online = gw.Online
		if info.LastSeen.Before(gw.LastSeen) {
			info.LastSeen = gw.LastSeen
		}
	}
	r.gateways[info.ID] = &info
}

func (r *Registry) Gateway(gatewayID string) (models.GatewayInfo, bool) {
	r.gwMu.RLock()
	defer r.gwMu.RUnlock()

	gw, ok := r.gateways[gatewayID]
	if !ok {
		return models.GatewayInfo{}, false
	}
	return *gw, true
}

func (r *Registry) Gateways() []models.GatewayInfo {
	r.gwMu.RLock()
	gateways := make([]models.GatewayInfo, 0, len(r.gateways))
	for _, gw := range r.gateways {
		gateways = append(gateways, *gw)
	}
	r.gwMu.RUnlock()

	slices.SortFunc(gateways, func(a, b models.GatewayInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return gateways
}

// SendDataToCloud is the relay decision for one upload. Gateways not yet
// known, including uploads without a valid gateway ID, get fallback.
func (r *Registry) SendDataToCloud(gatewayID string, fallback bool) bool {
	r.gwMu.RLock()
	defer r.gwMu.RUnlock()

	gw, ok := r.gateways[gatewayID]
	if !ok {
		return fallback
	}
	return gw.SendDataToCloud
}

func (r *Registry) SetSendDataToCloud(gatewayID string, send bool) (models.GatewayInfo, error) {
	r.gwMu.Lock()
	defer r.gwMu.Unlock()

	gw, ok := r.gateways[gatewayID]
	if !ok {
		return models.GatewayInfo{}, fmt.Errorf("gateway %s: %w", gatewayID, common.ErrUnknownGateway)
	}
	gw.SendDataToCloud = send
	return *gw, nil
}

func (r *Registry) SetGatewayOnline(gatewayID string, online bool, address string) error {
	r.gwMu.Lock()
	defer r.gwMu.Unlock()

	gw, ok := r.gateways[gatewayID]
	if !ok {
		return fmt.Errorf("gateway %s: %w", gatewayID, common.ErrUnknownGateway)
	}
	gw.Online = online
	if address != "" {
		gw.Address = address
	}
	return nil
}
