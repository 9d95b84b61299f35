package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
)

// Client talks the gateways' UDP configuration protocol.
type Client struct {
	// Target receives requests without an explicit address, usually the
	// broadcast address on port 8003.
	Target  string
	Timeout time.Duration
}

func NewClient(target string) *Client {
	if target == "" {
		target = fmt.Sprintf("255.255.255.255:%d", Port)
	}
	return &Client{Target: target, Timeout: 2 * time.Second}
}

func (c *Client) addr(address string) string {
	if address == "" {
		return c.Target
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return net.JoinHostPort(address, fmt.Sprint(Port))
	}
	return address
}

// roundTrip sends req and feeds replies to handle until it returns true or the
// read deadline passes. The deadline is the earlier of Timeout and ctx's own
// deadline, and reaching it is not an error: callers judge from the replies
// they collected. Only an explicit cancel of ctx is reported.
func (c *Client) roundTrip(ctx context.Context, address string, req []byte, handle func([]byte, *net.UDPAddr) bool) error {
	raddr, err := net.ResolveUDPAddr("udp4", c.addr(address))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", address, err)
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("open udp socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.WriteToUDP(req, raddr); err != nil {
		return fmt.Errorf("send to %s: %w", raddr, err)
	}

	buf := make([]byte, 512)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if errors.Is(ctx.Err(), context.Canceled) {
					return ctx.Err()
				}
				return nil
			}
			return err
		}
		if handle(buf[:n], from) {
			return nil
		}
	}
}

// Discover asks all gateways in reach for their config. No answer is
// ErrNoGateways.
func (c *Client) Discover(ctx context.Context) ([]*GatewayConfig, error) {
	logger := common.GetLoggerWith(common.LoggerNameDiscovery)

	req, _ := request(CmdFindGateways, "")
	seen := map[string]bool{}
	var found []*GatewayConfig

	err := c.roundTrip(ctx, "", req, func(reply []byte, from *net.UDPAddr) bool {
		cfg, err := ParseConfig(reply)
		if err != nil {
			logger.Debug("Ignoring discovery reply", zap.Error(err))
			return false
		}
		cfg.Source = from.String()
		if !seen[cfg.ID] {
			seen[cfg.ID] = true
			found = append(found, cfg)
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, common.ErrNoGateways
	}
	logger.Info("Discovered gateways", zap.Int("count", len(found)))
	return found, nil
}

// GetConfig reads the config of one gateway, address may be empty to use Target.
func (c *Client) GetConfig(ctx context.Context, gatewayID, address string) (*GatewayConfig, error) {
	gatewayID = common.NormalizeID(gatewayID)
	cmd := CmdGetConfig
	if address == "" {
		cmd = CmdFindGateway
	}
	req, err := request(cmd, gatewayID)
	if err != nil {
		return nil, err
	}

	var cfg *GatewayConfig
	err = c.roundTrip(ctx, address, req, func(reply []byte, from *net.UDPAddr) bool {
		parsed, err := ParseConfig(reply)
		if err != nil || parsed.ID != gatewayID {
			return false
		}
		parsed.Source = from.String()
		cfg = parsed
		return true
	})
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("gateway %s did not answer: %w", gatewayID, common.ErrNoGateways)
	}
	return cfg, nil
}

func (c *Client) send(ctx context.Context, address string, req []byte) error {
	raddr, err := net.ResolveUDPAddr("udp4", c.addr(address))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", address, err)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if d, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(d)
	}
	_, err = conn.Write(req)
	return err
}

func (c *Client) SetConfig(ctx context.Context, cfg *GatewayConfig, address string) error {
	req, err := cfg.SetConfigRequest()
	if err != nil {
		return err
	}
	return c.send(ctx, address, req)
}

func (c *Client) Reboot(ctx context.Context, gatewayID, address string) error {
	req, err := request(CmdReboot, gatewayID)
	if err != nil {
		return err
	}
	return c.send(ctx, address, req)
}

// Attach points the gateway at host:port as its proxy and reboots it. cfg is
// left untouched so callers keep the original proxy setting.
func (c *Client) Attach(ctx context.Context, cfg *GatewayConfig, host string, port int) error {
	if cfg.IsAttachedTo(host, port) {
		return nil
	}
	updated := *cfg
	updated.UseProxy = true
	updated.ProxyHost = host
	updated.ProxyPort = port

	address := cfg.Source
	if address == "" {
		address = cfg.Address()
	}
	if err := c.SetConfig(ctx, &updated, address); err != nil {
		return fmt.Errorf("set config of %s: %w", cfg.ID, err)
	}
	if err := c.Reboot(ctx, cfg.ID, address); err != nil {
		return fmt.Errorf("reboot %s: %w", cfg.ID, err)
	}
	common.GetLoggerWith(common.LoggerNameDiscovery,
		zap.String(common.LoggerFieldGatewayID, cfg.ID)).
		Info("Gateway attached to proxy", zap.String("proxy", updated.Proxy()))
	return nil
}
