package common

import "errors"

var (
	// payload processing, never fatal, the offending frame is dropped and counted
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnsupportedKind  = errors.New("unsupported sensor kind")
	ErrKindConflict     = errors.New("sensor kind conflict")

	// relay, retried with backoff then dropped
	ErrRelayTimeout     = errors.New("relay timeout")
	ErrRelayUnreachable = errors.New("relay upstream unreachable")
	ErrRelayRejected    = errors.New("relay upstream rejected request")

	// setup, surfaced to the caller as an abort reason
	ErrNoGateways       = errors.New("no gateways found")
	ErrMultipleGateways = errors.New("multiple gateways found, gateway id required")

	ErrUnknownSensor  = errors.New("unknown sensor")
	ErrUnknownGateway = errors.New("unknown gateway")
)

// ErrorLabel maps an error to the stable label used for counters and logs.
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrUnsupportedKind):
		return "unsupported_kind"
	case errors.Is(err, ErrKindConflict):
		return "kind_conflict"
	case errors.Is(err, ErrRelayTimeout):
		return "relay_timeout"
	case errors.Is(err, ErrRelayUnreachable):
		return "relay_unreachable"
	case errors.Is(err, ErrRelayRejected):
		return "relay_rejected"
	case errors.Is(err, ErrNoGateways):
		return "no_gateways"
	case errors.Is(err, ErrMultipleGateways):
		return "multiple_gateways"
	case errors.Is(err, ErrUnknownSensor):
		return "unknown_sensor"
	case errors.Is(err, ErrUnknownGateway):
		return "unknown_gateway"
	default:
		return "internal"
	}
}
