package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/metrics"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	"liyu1981.xyz/mobilealerts-proxy/pkg/protocol"
	"liyu1981.xyz/mobilealerts-proxy/pkg/relay"
)

const UploadPath = "/gateway/put"

// Upload is one gateway request as received by the transport.
type Upload struct {
	Identify   string
	RemoteAddr string
	Header     http.Header
	Payload    models.Payload
}

// Summary tells what happened to the frames of one upload.
type Summary struct {
	GatewayID string         `json:"gateway_id,omitempty"`
	Code      string         `json:"code,omitempty"`
	Frames    int            `json:"frames"`
	Decoded   int            `json:"decoded"`
	Updates   int            `json:"updates"`
	Relayed   bool           `json:"relayed"`
	Dropped   map[string]int `json:"dropped,omitempty"`
}

func (s *Summary) drop(label string, n int) {
	if s.Dropped == nil {
		s.Dropped = make(map[string]int)
	}
	s.Dropped[label] += n
	metrics.FramesDropped.WithLabelValues(label).Add(float64(n))
}

// HandleUpload runs one upload through the pipeline. Broken frames are
// dropped and counted, they never fail the upload as a whole. The body is
// already in memory, so every frame is decoded even if the gateway has hung
// up in the meantime.
func (p *Proxy) HandleUpload(_ context.Context, u Upload) Summary {
	started := p.now()
	defer func() { metrics.UploadDuration.Observe(time.Since(started).Seconds()) }()

	logger := common.GetLoggerWith(common.LoggerNameProxyCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryUpload))

	var summary Summary
	id, err := protocol.ParseIdentify(u.Identify)
	if err != nil {
		metrics.UploadsReceived.WithLabelValues("invalid").Inc()
		metrics.UploadsRejected.WithLabelValues(common.ErrorLabel(err)).Inc()
		logger.Warn("Upload without valid identify header",
			zap.String("identify", u.Identify),
			zap.String("remote", u.RemoteAddr),
			zap.Error(err))
	} else {
		metrics.UploadsReceived.WithLabelValues(id.Code).Inc()
		summary.GatewayID = id.GatewayID
		summary.Code = id.Code
		logger = logger.With(zap.String(common.LoggerFieldGatewayID, id.GatewayID))

		if p.Registry.TouchGateway(id.GatewayID, u.RemoteAddr, p.now(), p.Config.SendDataToCloud) {
			p.saveGateway(id.GatewayID)
		}
	}

	summary.Relayed = p.relay(u, id)

	if err == nil && !id.IsData() {
		logger.Debug("Gateway hello relayed", zap.String("identify", id.String()))
		return summary
	}

	frames, rest := protocol.SplitFrames(u.Payload)
	summary.Frames = len(frames)
	metrics.FramesReceived.Add(float64(len(frames)))
	if rest > 0 {
		logger.Warn("Upload body is not a whole number of frames", zap.Int("trailing_bytes", rest))
		summary.drop(common.ErrorLabel(common.ErrMalformedPayload), 1)
	}

	for i, frame := range frames {
		updates, err := p.applyFrame(summary.GatewayID, frame)
		summary.Updates += updates
		if err != nil {
			label := common.ErrorLabel(err)
			summary.drop(label, 1)
			fields := []zap.Field{zap.Int("frame", i), zap.String("reason", label), zap.Error(err)}
			switch {
			case errors.Is(err, common.ErrKindConflict):
				logger.Error("Frame conflicts with established sensor kind", fields...)
			case errors.Is(err, common.ErrUnsupportedKind):
				logger.Info("Skipping frame of unsupported sensor kind", fields...)
			default:
				logger.Warn("Dropping frame", fields...)
			}
			continue
		}
		summary.Decoded++
	}

	logger.Debug("Upload processed", zap.Reflect("summary", summary))
	return summary
}

// applyFrame decodes one frame into the registry. A panicking decoder only
// costs its own frame.
func (p *Proxy) applyFrame(gatewayID string, frame []byte) (updates int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoding frame panicked: %v", r)
		}
	}()

	res, err := p.Decoder.Decode(gatewayID, frame)
	if err != nil {
		return 0, err
	}
	err = p.Registry.Apply(res, func(u models.Update) {
		updates++
		p.publish(u)
	})
	if err != nil {
		return updates, err
	}
	metrics.FramesDecoded.WithLabelValues(string(res.Kind)).Inc()
	return updates, nil
}

// relay forks the untouched upload to the gateway's upstream when its
// ProxyState asks for it.
func (p *Proxy) relay(u Upload, id protocol.Identity) bool {
	if p.Relay == nil || !p.Registry.SendDataToCloud(id.GatewayID, p.Config.SendDataToCloud) {
		return false
	}
	return p.Relay.Forward(relay.Request{
		GatewayID: id.GatewayID,
		Identify:  u.Identify,
		Header:    u.Header,
		Payload:   u.Payload,
		Upstream:  p.upstream(id.GatewayID),
	})
}

// upstream is the gateway's original proxy when it had one, else the cloud.
func (p *Proxy) upstream(gatewayID string) string {
	if gw, ok := p.Registry.Gateway(gatewayID); ok && gw.Upstream != "" {
		return "http://" + gw.Upstream + UploadPath
	}
	return p.Config.CloudURL
}

func (p *Proxy) saveGateway(gatewayID string) {
	if p.Store == nil {
		return
	}
	gw, ok := p.Registry.Gateway(gatewayID)
	if !ok {
		return
	}
	if err := p.Store.SaveGateway(gw); err != nil {
		common.GetLoggerWith(common.LoggerNameProxyCore,
			zap.String(common.LoggerFieldGatewayID, gatewayID)).
			Error("Failed to persist gateway", zap.Error(err))
	}
}
