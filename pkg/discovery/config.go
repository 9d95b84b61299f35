package discovery

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	Port = 8003

	CmdFindGateways uint16 = 1
	CmdFindGateway  uint16 = 2
	CmdGetConfig    uint16 = 3
	CmdSetConfig    uint16 = 4
	CmdReboot       uint16 = 5

	RequestSize   = 10
	ConfigSize    = 186
	SetConfigSize = 181

	idSize = 6
)

// Config reply layout, offsets into the 186 byte packet.
const (
	offCommand      = 0
	offID           = 2
	offSize         = 8
	offDHCPIP       = 11
	offUseDHCP      = 15
	offFixedIP      = 16
	offFixedNetmask = 20
	offFixedGateway = 24
	offName         = 28
	offServer       = 49
	offUseProxy     = 114
	offProxyHost    = 115
	offProxyPort    = 180
	offDNS          = 182

	nameSize   = offServer - offName
	serverSize = offUseProxy - offServer
	proxySize  = offProxyPort - offProxyHost
)

// GatewayConfig is the network setup a gateway reports over UDP. Unknown
// bytes of the reply are kept so writing the config back preserves them.
type GatewayConfig struct {
	ID           string
	DHCPIP       net.IP
	UseDHCP      bool
	FixedIP      net.IP
	FixedNetmask net.IP
	FixedGateway net.IP
	Name         string
	Server       string
	UseProxy     bool
	ProxyHost    string
	ProxyPort    int
	DNS          net.IP

	// Source is the UDP address the config was read from.
	Source string

	raw []byte
}

func ParseConfig(b []byte) (*GatewayConfig, error) {
	if len(b) < ConfigSize {
		return nil, fmt.Errorf("gateway config reply of %d bytes, want %d", len(b), ConfigSize)
	}
	if cmd := binary.BigEndian.Uint16(b[offCommand:]); cmd != CmdFindGateway && cmd != CmdFindGateways && cmd != CmdGetConfig {
		return nil, fmt.Errorf("unexpected gateway reply command %d", cmd)
	}

	raw := bytes.Clone(b[:ConfigSize])
	return &GatewayConfig{
		ID:           strings.ToUpper(hex.EncodeToString(raw[offID : offID+idSize])),
		DHCPIP:       ipAt(raw, offDHCPIP),
		UseDHCP:      raw[offUseDHCP] != 0,
		FixedIP:      ipAt(raw, offFixedIP),
		FixedNetmask: ipAt(raw, offFixedNetmask),
		FixedGateway: ipAt(raw, offFixedGateway),
		Name:         cString(raw[offName : offName+nameSize]),
		Server:       cString(raw[offServer : offServer+serverSize]),
		UseProxy:     raw[offUseProxy] != 0,
		ProxyHost:    cString(raw[offProxyHost : offProxyHost+proxySize]),
		ProxyPort:    int(binary.BigEndian.Uint16(raw[offProxyPort:])),
		DNS:          ipAt(raw, offDNS),
		raw:          raw,
	}, nil
}

// Encode renders the config as a reply packet, the layout SetConfig reuses.
func (c *GatewayConfig) Encode() ([]byte, error) {
	id, err := hex.DecodeString(c.ID)
	if err != nil || len(id) != idSize {
		return nil, fmt.Errorf("invalid gateway id %q", c.ID)
	}
	if len(c.Name) >= nameSize || len(c.Server) >= serverSize || len(c.ProxyHost) >= proxySize {
		return nil, fmt.Errorf("gateway config string too long")
	}

	b := make([]byte, ConfigSize)
	if c.raw != nil {
		copy(b, c.raw)
	}
	binary.BigEndian.PutUint16(b[offCommand:], CmdGetConfig)
	copy(b[offID:], id)
	binary.BigEndian.PutUint16(b[offSize:], ConfigSize)
	putIP(b, offDHCPIP, c.DHCPIP)
	b[offUseDHCP] = boolByte(c.UseDHCP)
	putIP(b, offFixedIP, c.FixedIP)
	putIP(b, offFixedNetmask, c.FixedNetmask)
	putIP(b, offFixedGateway, c.FixedGateway)
	putString(b[offName:offName+nameSize], c.Name)
	putString(b[offServer:offServer+serverSize], c.Server)
	b[offUseProxy] = boolByte(c.UseProxy)
	putString(b[offProxyHost:offProxyHost+proxySize], c.ProxyHost)
	binary.BigEndian.PutUint16(b[offProxyPort:], uint16(c.ProxyPort))
	putIP(b, offDNS, c.DNS)
	return b, nil
}

// SetConfigRequest is command 4, the id, size 181 and bytes 15.. of the config.
func (c *GatewayConfig) SetConfigRequest() ([]byte, error) {
	b, err := c.Encode()
	if err != nil {
		return nil, err
	}
	req := make([]byte, 0, SetConfigSize)
	req = binary.BigEndian.AppendUint16(req, CmdSetConfig)
	req = append(req, b[offID:offID+idSize]...)
	req = binary.BigEndian.AppendUint16(req, SetConfigSize)
	req = append(req, b[offUseDHCP:]...)
	return req, nil
}

// Address is the IP the gateway currently uses.
func (c *GatewayConfig) Address() string {
	if c.UseDHCP {
		return c.DHCPIP.String()
	}
	return c.FixedIP.String()
}

// Proxy returns host:port of the configured proxy, empty when none is used.
func (c *GatewayConfig) Proxy() string {
	if !c.UseProxy || c.ProxyHost == "" {
		return ""
	}
	return net.JoinHostPort(c.ProxyHost, strconv.Itoa(c.ProxyPort))
}

// IsAttachedTo reports whether the gateway already uses host:port as proxy.
func (c *GatewayConfig) IsAttachedTo(host string, port int) bool {
	return c.UseProxy && c.ProxyHost == host && c.ProxyPort == port
}

func request(cmd uint16, gatewayID string) ([]byte, error) {
	id := make([]byte, idSize)
	if gatewayID != "" {
		decoded, err := hex.DecodeString(gatewayID)
		if err != nil || len(decoded) != idSize {
			return nil, fmt.Errorf("invalid gateway id %q", gatewayID)
		}
		id = decoded
	}
	req := make([]byte, 0, RequestSize)
	req = binary.BigEndian.AppendUint16(req, cmd)
	req = append(req, id...)
	return binary.BigEndian.AppendUint16(req, RequestSize), nil
}

func ipAt(b []byte, off int) net.IP {
	return net.IPv4(b[off], b[off+1], b[off+2], b[off+3]).To4()
}

func putIP(b []byte, off int, ip net.IP) {
	if ip4 := ip.To4(); ip4 != nil {
		copy(b[off:off+4], ip4)
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putString(dst []byte, s string) {
	clear(dst)
	copy(dst, s)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
