package grpc

import (
	"context"
	"net"
	"reflect"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
)

var errRateLimited = status.Errorf(codes.ResourceExhausted, "rate limit exceeded")

// CreateRateLimitInterceptor limits unary requests of the given types, keyed
// by the sensor or gateway ID they carry.
func (s *SensorServer) CreateRateLimitInterceptor(targetReqTypes []proto.Message) grpc.UnaryServerInterceptor {
	targetTypeMap := common.Reducer(targetReqTypes,
		func(m map[reflect.Type]bool, t proto.Message) map[reflect.Type]bool {
			m[reflect.TypeOf(t)] = true
			return m
		},
		map[reflect.Type]bool{},
	)

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !targetTypeMap[reflect.TypeOf(req)] {
			return handler(ctx, req)
		}
		if r, ok := req.(interface{ GetValue() string }); ok {
			if !s.CheckLimiter(common.NormalizeID(r.GetValue())) {
				return nil, errRateLimited
			}
		}
		return handler(ctx, req)
	}
}

// CreateStreamRateLimitInterceptor limits how often one client host may open
// a stream.
func (s *SensorServer) CreateStreamRateLimitInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if !s.CheckLimiter("stream:" + clientHost(ss.Context())) {
			return errRateLimited
		}
		return handler(srv, ss)
	}
}

func clientHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
		return host
	}
	return p.Addr.String()
}
