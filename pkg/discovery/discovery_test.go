package discovery

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
)

// fakeGateway answers the UDP protocol on a loopback port.
type fakeGateway struct {
	conn     net.PacketConn
	cfg      *GatewayConfig
	mu       sync.Mutex
	commands []uint16
	lastSet  []byte
}

func startFakeGateway(t *testing.T, cfg *GatewayConfig) *fakeGateway {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	g := &fakeGateway{conn: conn, cfg: cfg}
	go g.serve()
	return g
}

func (g *fakeGateway) serve() {
	buf := make([]byte, 512)
	for {
		n, from, err := g.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		req := append([]byte(nil), buf[:n]...)
		cmd := binary.BigEndian.Uint16(req)

		g.mu.Lock()
		g.commands = append(g.commands, cmd)
		if cmd == CmdSetConfig {
			g.lastSet = req
		}
		g.mu.Unlock()

		switch cmd {
		case CmdFindGateways, CmdFindGateway, CmdGetConfig:
			reply, _ := g.cfg.Encode()
			_, _ = g.conn.WriteTo(reply, from)
		}
	}
}

func (g *fakeGateway) seen() ([]uint16, []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]uint16(nil), g.commands...), g.lastSet
}

func testConfig() *GatewayConfig {
	return &GatewayConfig{
		ID:           "001D8C0E1A2B",
		DHCPIP:       net.ParseIP("192.168.1.20"),
		UseDHCP:      true,
		FixedIP:      net.ParseIP("192.168.1.222"),
		FixedNetmask: net.ParseIP("255.255.255.0"),
		FixedGateway: net.ParseIP("192.168.1.1"),
		Name:         "MOBILEALERTS-Gateway",
		Server:       "www.data199.com",
		UseProxy:     true,
		ProxyHost:    "192.168.1.5",
		ProxyPort:    8080,
		DNS:          net.ParseIP("192.168.1.1"),
	}
}

func testClient(g *fakeGateway) *Client {
	c := NewClient(g.conn.LocalAddr().String())
	c.Timeout = 200 * time.Millisecond
	return c
}

func TestConfigEncodeParse(t *testing.T) {
	cfg := testConfig()
	b, err := cfg.Encode()
	require.NoError(t, err)
	require.Len(t, b, ConfigSize)

	parsed, err := ParseConfig(b)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, parsed.ID)
	assert.Equal(t, "192.168.1.20", parsed.Address())
	assert.Equal(t, "MOBILEALERTS-Gateway", parsed.Name)
	assert.Equal(t, "www.data199.com", parsed.Server)
	assert.Equal(t, "192.168.1.5:8080", parsed.Proxy())
	assert.True(t, parsed.FixedNetmask.Equal(net.ParseIP("255.255.255.0")))

	parsed.UseDHCP = false
	assert.Equal(t, "192.168.1.222", parsed.Address())
	parsed.UseProxy = false
	assert.Equal(t, "", parsed.Proxy())

	_, err = ParseConfig(b[:100])
	assert.Error(t, err)
}

func TestSetConfigRequest(t *testing.T) {
	cfg := testConfig()
	req, err := cfg.SetConfigRequest()
	require.NoError(t, err)

	require.Len(t, req, SetConfigSize)
	assert.Equal(t, CmdSetConfig, binary.BigEndian.Uint16(req[0:]))
	assert.Equal(t, []byte{0x00, 0x1D, 0x8C, 0x0E, 0x1A, 0x2B}, req[2:8])
	assert.Equal(t, uint16(SetConfigSize), binary.BigEndian.Uint16(req[8:]))

	full, _ := cfg.Encode()
	assert.Equal(t, full[15:], req[10:])
}

func TestDiscover(t *testing.T) {
	common.SetTestLoggerNop()
	g := startFakeGateway(t, testConfig())

	found, err := testClient(g).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "001D8C0E1A2B", found[0].ID)
	assert.Equal(t, g.conn.LocalAddr().String(), found[0].Source)
}

func TestDiscover_NoGateways(t *testing.T) {
	common.SetTestLoggerNop()

	// a bound socket that never answers
	silent, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer silent.Close()

	c := NewClient(silent.LocalAddr().String())
	c.Timeout = 50 * time.Millisecond
	_, err = c.Discover(context.Background())
	assert.ErrorIs(t, err, common.ErrNoGateways)
}

func TestDiscover_CallerDeadlineShorterThanTimeout(t *testing.T) {
	common.SetTestLoggerNop()
	g := startFakeGateway(t, testConfig())

	c := testClient(g)
	c.Timeout = 5 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	found, err := c.Discover(ctx)
	require.NoError(t, err, "replies collected before the deadline are kept")
	require.Len(t, found, 1)
	assert.Equal(t, "001D8C0E1A2B", found[0].ID)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDiscover_Cancelled(t *testing.T) {
	common.SetTestLoggerNop()

	silent, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer silent.Close()

	c := NewClient(silent.LocalAddr().String())
	c.Timeout = 5 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = c.Discover(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetConfig(t *testing.T) {
	common.SetTestLoggerNop()
	g := startFakeGateway(t, testConfig())
	c := testClient(g)

	cfg, err := c.GetConfig(context.Background(), "001d8c0e1a2b", g.conn.LocalAddr().String())
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.5:8080", cfg.Proxy())

	_, err = c.GetConfig(context.Background(), "001D8C000000", g.conn.LocalAddr().String())
	assert.ErrorIs(t, err, common.ErrNoGateways)

	_, err = c.GetConfig(context.Background(), "zz", "")
	assert.Error(t, err)
}

func TestAttach(t *testing.T) {
	common.SetTestLoggerNop()
	g := startFakeGateway(t, testConfig())
	c := testClient(g)

	cfg, err := c.GetConfig(context.Background(), "001D8C0E1A2B", "")
	require.NoError(t, err)

	require.NoError(t, c.Attach(context.Background(), cfg, "192.168.1.10", 8080))
	assert.Equal(t, "192.168.1.5", cfg.ProxyHost, "original config is kept")

	require.Eventually(t, func() bool {
		commands, _ := g.seen()
		return len(commands) >= 3
	}, time.Second, 5*time.Millisecond)

	commands, set := g.seen()
	assert.Equal(t, []uint16{CmdFindGateway, CmdSetConfig, CmdReboot}, commands)

	full := make([]byte, ConfigSize)
	copy(full[15:], set[10:])
	binary.BigEndian.PutUint16(full, CmdGetConfig)
	copy(full[2:], set[2:8])
	written, err := ParseConfig(full)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10:8080", written.Proxy())
	assert.Equal(t, "MOBILEALERTS-Gateway", written.Name)

	// already attached, nothing is sent
	attached := *cfg
	attached.ProxyHost = "192.168.1.10"
	require.NoError(t, c.Attach(context.Background(), &attached, "192.168.1.10", 8080))
	time.Sleep(20 * time.Millisecond)
	commands, _ = g.seen()
	assert.Len(t, commands, 3)
}
