package proxy

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	"liyu1981.xyz/mobilealerts-proxy/pkg/protocol"
	"liyu1981.xyz/mobilealerts-proxy/pkg/proxy/mocks"
	"liyu1981.xyz/mobilealerts-proxy/pkg/registry"
)

const testGatewayID = "001D8C0E1A2B"

// collector is a publisher keeping every update.
type collector struct {
	mu      sync.Mutex
	updates []models.Update
}

func (c *collector) Publish(u models.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
}

func (c *collector) take() []models.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	updates := c.updates
	c.updates = nil
	return updates
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func GetMockProxy(t *testing.T) (
	*gomock.Controller,
	*Proxy,
	*collector,
	*testClock,
	*mocks.MockIRelay,
	*mocks.MockIConfigurator,
	*mocks.MockIStore,
) {
	ctrl := gomock.NewController(t)

	mockIRelay := mocks.NewMockIRelay(ctrl)
	mockIConfigurator := mocks.NewMockIConfigurator(ctrl)
	mockIStore := mocks.NewMockIStore(ctrl)

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cfg := common.DefaultConfig()
	reg := registry.New(registry.Options{Now: clock.Now})
	pub := &collector{}

	p := New(&cfg, nil, reg).WithServices(ServiceOpts{
		Relay:        mockIRelay,
		Publisher:    pub,
		Configurator: mockIConfigurator,
		Store:        mockIStore,
	})
	p.now = clock.Now

	return ctrl, p, pub, clock, mockIRelay, mockIConfigurator, mockIStore
}

func thermoFrame(t *testing.T, sensorID string, tenths int) []byte {
	t.Helper()
	data := append(protocol.TxWord(1, false, false), byte(tenths>>8), byte(tenths), 0x00, 0x00)
	frame, err := protocol.NewFrame(time.Unix(1714564800, 0), sensorID, data)
	require.NoError(t, err)
	return frame
}

func dataUpload(frames ...[]byte) Upload {
	var body []byte
	for _, f := range frames {
		body = append(body, f...)
	}
	return Upload{
		Identify:   "000AB1:" + testGatewayID + ":00",
		RemoteAddr: "192.168.1.20",
		Payload:    models.NewPayload(body),
	}
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}
