package remote

import (
	"fmt"

	"github.com/vk/tickflowgo/internal/gateway"
)

// Decoding helpers for the loosely-typed JSON payloads the bridge sends.

func num(m map[string]any, key string) float64 {
	v, _ := m[key].(float64)
	return v
}

func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func boolean(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

// targetFromWire decodes a find_target payload into a resolved reference.
func targetFromWire(m map[string]any) gateway.TargetRef {
	return gateway.TargetRef{
		Serial:  gateway.Serial(num(m, "serial")),
		Graphic: uint16(num(m, "graphic")),
	}
}

// outcomeFromWire maps the bridge's outcome strings onto the gateway enum.
// Anything unrecognized counts as a failure.
func outcomeFromWire(s string) gateway.Outcome {
	switch s {
	case "success":
		return gateway.OutcomeSuccess
	case "timeout":
		return gateway.OutcomeTimedOut
	default:
		return gateway.OutcomeFailed
	}
}

// bridgeError maps well-known bridge error strings onto the gateway's
// sentinel errors so flows can tell expected failures from fatal ones.
func bridgeError(msg string) error {
	switch msg {
	case "disconnected":
		return gateway.ErrDisconnected
	case "rejected":
		return gateway.ErrActionRejected
	case "":
		return fmt.Errorf("bridge call failed")
	default:
		return fmt.Errorf("bridge call failed: %s", msg)
	}
}
