package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/metrics"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

// RedisSink publishes every update on a per sensor channel and keeps the
// last value of each key in a per sensor hash.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(ctx context.Context, addr string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  2 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	common.GetLoggerWith(common.LoggerNameSink).Info("Connected to Redis", zap.String("addr", addr))
	return &RedisSink{client: client}, nil
}

func RedisChannel(sensorID string) string {
	return prefix + ":updates:" + sensorID
}

func RedisSensorKey(sensorID string) string {
	return prefix + ":sensor:" + sensorID
}

func (s *RedisSink) Deliver(ctx context.Context, u models.Update) error {
	message, err := json.Marshal(u)
	if err != nil {
		return err
	}
	value, err := state(u)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, RedisSensorKey(u.SensorID),
			field(u), value,
			"gateway_id", u.GatewayID,
			"kind", string(u.Kind),
			"seq", u.Seq)
		pipe.Publish(ctx, RedisChannel(u.SensorID), message)
		return nil
	})
	if err != nil {
		metrics.SinkErrors.WithLabelValues(SinkRedis).Inc()
		return fmt.Errorf("redis sink: %w", err)
	}
	return nil
}

// LastValues reads the stored hash of a sensor.
func (s *RedisSink) LastValues(ctx context.Context, sensorID string) (map[string]string, error) {
	return s.client.HGetAll(ctx, RedisSensorKey(sensorID)).Result()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
