package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	z "github.com/Oudwins/zog"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/dispatch"
	pb "liyu1981.xyz/mobilealerts-proxy/pkg/grpc/mobilealerts/v1"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

const defaultWatchBuffer = 64

var errWatchBufferFull = errors.New("watch buffer full")

func validateSensorID(sensorID *string) z.ZogIssueList {
	var sensorIDValidator = z.String().Min(1).Required()
	return sensorIDValidator.Validate(sensorID)
}

// toStruct goes through the JSON form so grpc clients see the same field
// names as the REST and websocket surfaces.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func (s *SensorServer) ListSensors(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	sensors := s.Proxy.Registry.Sensors()
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(sensors))}
	for _, sensor := range sensors {
		st, err := toStruct(sensor)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode sensor %s: %v", sensor.ID, err)
		}
		list.Values = append(list.Values, structpb.NewStructValue(st))
	}
	return list, nil
}

func (s *SensorServer) GetSensor(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	sensorID := req.GetValue()
	if err := validateSensorID(&sensorID); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "validation error: %v", err)
	}
	sensor, ok := s.Proxy.Registry.Sensor(sensorID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "sensor %s not found", common.NormalizeID(sensorID))
	}
	st, err := toStruct(sensor)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode sensor %s: %v", sensor.ID, err)
	}
	return st, nil
}

// WatchUpdates streams updates for one sensor, or for all sensors when the
// request value is empty.
func (s *SensorServer) WatchUpdates(req *wrapperspb.StringValue, stream pb.SensorService_WatchUpdatesServer) error {
	if s.Updates == nil {
		return status.Error(codes.Unavailable, "update stream not configured")
	}

	filter := dispatch.Filter{}
	if sensorID := common.NormalizeID(req.GetValue()); sensorID != "" {
		filter.SensorIDs = []string{sensorID}
	}

	size := s.WatchBuffer
	if size <= 0 {
		size = defaultWatchBuffer
	}
	updates := make(chan models.Update, size)
	overflow := make(chan struct{})
	ctx := stream.Context()

	var once sync.Once
	id := s.Updates.Subscribe("grpc-watch", dispatch.SubscriberFunc(func(_ context.Context, u models.Update) error {
		select {
		case <-overflow:
			return nil
		default:
		}
		select {
		case updates <- u:
			return nil
		case <-ctx.Done():
			return nil
		default:
			once.Do(func() { close(overflow) })
			return errWatchBufferFull
		}
	}), filter)
	defer s.Updates.Unsubscribe(id)

	logger := common.GetLoggerWith(common.LoggerNameGrpcServer, zap.String("subscription", id))
	logger.Info("Watch stream opened", zap.Strings("sensor_ids", filter.SensorIDs))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch stream closed")
			return nil
		case <-overflow:
			logger.Warn("Watch stream too slow, closing")
			return status.Error(codes.ResourceExhausted, "client too slow")
		case u := <-updates:
			st, err := toStruct(u)
			if err != nil {
				return status.Errorf(codes.Internal, "encode update: %v", err)
			}
			if err := stream.Send(st); err != nil {
				return err
			}
		}
	}
}
