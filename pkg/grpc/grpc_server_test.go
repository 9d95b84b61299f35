package grpc

import (
	"context"
	"net"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/dispatch"
	pb "liyu1981.xyz/mobilealerts-proxy/pkg/grpc/mobilealerts/v1"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	"liyu1981.xyz/mobilealerts-proxy/pkg/proxy"
	_ "liyu1981.xyz/mobilealerts-proxy/pkg/testing"
)

const bufSize = 1024 * 1024

const (
	testGatewayID = "001D8C0E1A2B"
	testSensorID  = "02AABBCCDDEE"
)

var listener *bufconn.Listener

func dialer() func(context.Context, string) (net.Conn, error) {
	return func(ctx context.Context, s string) (net.Conn, error) {
		return listener.Dial()
	}
}

// fakeUpdates hands the watch subscriber to the test so deliveries are
// deterministic.
type fakeUpdates struct {
	mu           sync.Mutex
	filters      []dispatch.Filter
	subscribed   chan dispatch.Subscriber
	unsubscribed chan string
}

func newFakeUpdates() *fakeUpdates {
	return &fakeUpdates{
		subscribed:   make(chan dispatch.Subscriber, 4),
		unsubscribed: make(chan string, 4),
	}
}

func (f *fakeUpdates) Subscribe(name string, s dispatch.Subscriber, filter dispatch.Filter) string {
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	f.mu.Unlock()
	f.subscribed <- s
	return "watch-1"
}

func (f *fakeUpdates) Unsubscribe(id string) bool {
	f.unsubscribed <- id
	return true
}

func startTestServer(t *testing.T, sensorServer *SensorServer) *grpc.ClientConn {
	listener = bufconn.Listen(bufSize)

	server, _ := NewServer(sensorServer)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer()),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestListAndGetSensors(t *testing.T) {
	common.SetTestLoggerNop()

	p := proxy.New(nil, nil, nil)
	_, err := p.Registry.Register(testGatewayID, testSensorID, models.KindThermo, "garden")
	require.NoError(t, err)

	client := pb.NewSensorServiceClient(startTestServer(t, &SensorServer{Proxy: p}))
	ctx := context.Background()

	list, err := client.ListSensors(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	require.Len(t, list.Values, 1)
	fields := list.Values[0].GetStructValue().GetFields()
	assert.Equal(t, testSensorID, fields["id"].GetStringValue())
	assert.Equal(t, "garden", fields["name"].GetStringValue())
	assert.Equal(t, string(models.KindThermo), fields["kind"].GetStringValue())

	// lower case ids resolve to the same sensor
	sensor, err := client.GetSensor(ctx, wrapperspb.String("02aabbccddee"))
	require.NoError(t, err)
	assert.Equal(t, testGatewayID, sensor.GetFields()["gateway_id"].GetStringValue())

	_, err = client.GetSensor(ctx, wrapperspb.String("0BFFFFFFFFFF"))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetSensor(ctx, wrapperspb.String(""))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRateLimitInterceptor_GetSensor(t *testing.T) {
	common.SetTestLoggerNop()

	limiterStore := proxy.NewRateLimiterStore(1, 1) // one request per sensor id
	client := pb.NewSensorServiceClient(startTestServer(t, &SensorServer{
		Proxy:            proxy.New(nil, nil, nil),
		RateLimiterStore: limiterStore,
	}))
	ctx := context.Background()

	_, err := client.GetSensor(ctx, wrapperspb.String(testSensorID))
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetSensor(ctx, wrapperspb.String(testSensorID))
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.ResourceExhausted, st.Code(), "expected ResourceExhausted code")

	// other keys have their own limiter, list is not limited
	_, err = client.GetSensor(ctx, wrapperspb.String("0BFFFFFFFFFF"))
	assert.Equal(t, codes.NotFound, status.Code(err))
	for range 3 {
		_, err = client.ListSensors(ctx, &emptypb.Empty{})
		assert.NoError(t, err)
	}
}

func TestStreamRateLimitInterceptor(t *testing.T) {
	common.SetTestLoggerNop()

	client := pb.NewSensorServiceClient(startTestServer(t, &SensorServer{
		Proxy:            proxy.New(nil, nil, nil),
		RateLimiterStore: proxy.NewRateLimiterStore(1, 1), // one stream per client host
	}))
	ctx := context.Background()

	first, err := client.WatchUpdates(ctx, wrapperspb.String(""))
	require.NoError(t, err)
	_, err = first.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err), "first stream passes the limiter")

	second, err := client.WatchUpdates(ctx, wrapperspb.String(""))
	require.NoError(t, err)
	_, err = second.Recv()
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestWatchUpdates(t *testing.T) {
	common.SetTestLoggerNop()

	updates := newFakeUpdates()
	client := pb.NewSensorServiceClient(startTestServer(t, &SensorServer{
		Proxy:   proxy.New(nil, nil, nil),
		Updates: updates,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.WatchUpdates(ctx, wrapperspb.String("02aabbccddee"))
	require.NoError(t, err)

	var sub dispatch.Subscriber
	select {
	case sub = <-updates.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not subscribe")
	}
	updates.mu.Lock()
	assert.Equal(t, []string{testSensorID}, updates.filters[0].SensorIDs)
	updates.mu.Unlock()

	for seq := uint64(1); seq <= 2; seq++ {
		require.NoError(t, sub.Deliver(ctx, models.Update{
			Type:      models.UpdateAvailability,
			GatewayID: testGatewayID,
			SensorID:  testSensorID,
			Kind:      models.KindThermo,
			State:     models.StateAvailable,
			Available: true,
			Timestamp: time.Now(),
			Seq:       seq,
		}))
	}

	for seq := 1; seq <= 2; seq++ {
		msg, err := stream.Recv()
		require.NoError(t, err)
		fields := msg.GetFields()
		assert.Equal(t, testSensorID, fields["sensor_id"].GetStringValue())
		assert.Equal(t, string(models.UpdateAvailability), fields["type"].GetStringValue())
		assert.True(t, fields["available"].GetBoolValue())
		assert.Equal(t, float64(seq), fields["seq"].GetNumberValue())
	}

	cancel()
	select {
	case id := <-updates.unsubscribed:
		assert.Equal(t, "watch-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not unsubscribe")
	}
}

func TestWatchUpdates_NotConfigured(t *testing.T) {
	common.SetTestLoggerNop()

	client := pb.NewSensorServiceClient(startTestServer(t, &SensorServer{Proxy: proxy.New(nil, nil, nil)}))

	stream, err := client.WatchUpdates(context.Background(), wrapperspb.String(""))
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestHealth(t *testing.T) {
	common.SetTestLoggerNop()

	conn := startTestServer(t, &SensorServer{Proxy: proxy.New(nil, nil, nil)})
	health := healthpb.NewHealthClient(conn)

	for _, service := range []string{"", SensorServiceName} {
		resp, err := health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}
}

func TestSensorServiceMatchesProto(t *testing.T) {
	src, err := os.ReadFile("mobilealerts/v1/sensor_service.proto")
	require.NoError(t, err)

	desc := pb.SensorService_ServiceDesc
	assert.Regexp(t, `package mobilealerts\.v1;`, string(src))
	assert.Equal(t, "mobilealerts.v1.SensorService", desc.ServiceName)

	rpc := regexp.MustCompile(`rpc (\w+)\((\S+)\) returns \((stream )?(\S+)\)`)
	unary := map[string]bool{}
	streams := map[string]bool{}
	for _, m := range rpc.FindAllStringSubmatch(string(src), -1) {
		if m[3] != "" {
			streams[m[1]] = true
		} else {
			unary[m[1]] = true
		}
	}

	require.Len(t, desc.Methods, len(unary))
	for _, m := range desc.Methods {
		assert.True(t, unary[m.MethodName], "%s is not a unary rpc in the proto", m.MethodName)
	}
	require.Len(t, desc.Streams, len(streams))
	for _, s := range desc.Streams {
		assert.True(t, streams[s.StreamName], "%s is not a streaming rpc in the proto", s.StreamName)
		assert.True(t, s.ServerStreams)
		assert.False(t, s.ClientStreams)
	}
}
