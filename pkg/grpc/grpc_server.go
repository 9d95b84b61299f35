package grpc

import (
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"liyu1981.xyz/mobilealerts-proxy/pkg/dispatch"
	pb "liyu1981.xyz/mobilealerts-proxy/pkg/grpc/mobilealerts/v1"
	"liyu1981.xyz/mobilealerts-proxy/pkg/proxy"
)

// SensorServiceName is the full name the health service reports for SensorService.
var SensorServiceName = pb.SensorService_ServiceDesc.ServiceName

// IUpdateSource is the part of the dispatcher a watch stream needs.
type IUpdateSource interface {
	Subscribe(name string, s dispatch.Subscriber, filter dispatch.Filter) string
	Unsubscribe(id string) bool
}

type SensorServer struct {
	Proxy            *proxy.Proxy
	Updates          IUpdateSource
	RateLimiterStore *proxy.RateLimiterStore
	// per stream buffer, a watcher that falls this far behind is dropped
	WatchBuffer int
	pb.UnimplementedSensorServiceServer
}

func (s *SensorServer) GetLimiter(key string) *rate.Limiter {
	if s.RateLimiterStore == nil {
		return nil
	} else {
		return s.RateLimiterStore.GetLimiter(key)
	}
}

func (s *SensorServer) CheckLimiter(key string) bool {
	limiter := s.GetLimiter(key)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

// NewServer builds a grpc server carrying SensorService and the standard
// health service.
func NewServer(s *SensorServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts,
		grpc.UnaryInterceptor(s.CreateRateLimitInterceptor([]proto.Message{
			&wrapperspb.StringValue{},
		})),
		grpc.StreamInterceptor(s.CreateStreamRateLimitInterceptor()),
	)
	server := grpc.NewServer(opts...)
	pb.RegisterSensorServiceServer(server, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(SensorServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	return server, hs
}
