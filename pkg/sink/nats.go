package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/metrics"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

// NatsSink publishes every update on
// mobilealerts.<gateway id>.<sensor id>.<key or availability>.
type NatsSink struct {
	conn *nats.Conn
}

func NewNatsSink(url string) (*NatsSink, error) {
	logger := common.GetLoggerWith(common.LoggerNameSink)

	conn, err := nats.Connect(url,
		nats.Name("mobilealerts-proxy"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS", zap.String("url", conn.ConnectedUrl()))
	return &NatsSink{conn: conn}, nil
}

func NatsSubject(u models.Update) string {
	gatewayID := u.GatewayID
	if gatewayID == "" {
		gatewayID = "unknown"
	}
	// subject tokens cannot hold dots or spaces
	token := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(field(u))
	return strings.Join([]string{prefix, gatewayID, u.SensorID, token}, ".")
}

func (s *NatsSink) Deliver(ctx context.Context, u models.Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(NatsSubject(u), data); err != nil {
		metrics.SinkErrors.WithLabelValues(SinkNats).Inc()
		return fmt.Errorf("nats sink: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (s *NatsSink) Close() error {
	return s.conn.Drain()
}
