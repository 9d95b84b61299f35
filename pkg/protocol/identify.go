package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
)

const (
	// gateways send it as "HTTP_IDENTIFY", some proxies rewrite it
	IdentifyHeader = "HTTP_IDENTIFY"
	IdentifyHello  = "C0"
	IdentifyData   = "00"

	GatewayIDLength = 12
	ResponseSize    = 24
)

// Identity is the parsed HTTP_IDENTIFY header, "<serial>:<gateway id>:<code>".
type Identity struct {
	Serial    string
	GatewayID string
	Code      string
}

func ParseIdentify(v string) (Identity, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 3 {
		return Identity{}, fmt.Errorf("identify %q: %w", v, common.ErrMalformedPayload)
	}
	id := Identity{
		Serial:    parts[0],
		GatewayID: common.NormalizeID(parts[1]),
		Code:      strings.ToUpper(parts[2]),
	}
	if !common.IsHexID(id.GatewayID, GatewayIDLength) {
		return Identity{}, fmt.Errorf("identify gateway id %q: %w", parts[1], common.ErrMalformedPayload)
	}
	return id, nil
}

func (i Identity) String() string {
	return i.Serial + ":" + i.GatewayID + ":" + i.Code
}

// IsData reports whether the upload carries sensor frames. Hello uploads are
// relayed but not decoded.
func (i Identity) IsData() bool {
	return i.Code == IdentifyData
}

// BuildResponse is the reply the cloud gives to an upload, so gateways can be
// answered locally without waiting for the relay.
func BuildResponse(now time.Time) []byte {
	resp := make([]byte, 0, ResponseSize)
	for _, v := range []uint32{420, uint32(now.Unix()), 0x1761D480, 15, 0, 1} {
		resp = binary.BigEndian.AppendUint32(resp, v)
	}
	return resp
}
