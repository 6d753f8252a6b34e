// Package relay implements the queue-triggered message relay: each inbound
// envelope produces at most one outbound message, Base64-encoded for the
// downstream consumer. The transform is stateless; delivery semantics are
// whatever the underlying queue provides (at-least-once, no dedup here).
package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// InboundEnvelope is the JSON shape expected on the inbound queue.
type InboundEnvelope struct {
	CustomerID    string `json:"customer_id"`
	CorrelationID string `json:"correlation_id"`
}

// OutboundEnvelope is the wire shape published to the outbound queue before
// Base64 encoding. The field casing is fixed by the downstream consumer.
type OutboundEnvelope struct {
	CorrelationID string `json:"CorrelationId"`
	Value         string `json:"Value"`
}

// StatusPayload is the JSON document carried in OutboundEnvelope.Value.
type StatusPayload struct {
	CorrelationID string `json:"correlation_id"`
	CustomerID    string `json:"customer_id"`
	Status        string `json:"status"`
}

// StatusFailed is the only status the relay currently emits. The upstream
// system has never defined a success path for this hop; the transform below
// is the extension point if it ever does.
const StatusFailed = "failed"

// Transform parses one inbound payload and builds the outbound message.
// Returns an error only when the inbound payload is not valid JSON for the
// expected envelope; the caller drops such messages without publishing.
func Transform(raw []byte) (string, error) {
	var in InboundEnvelope
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", fmt.Errorf("relay: parse inbound envelope: %w", err)
	}

	value, err := json.Marshal(StatusPayload{
		CorrelationID: in.CorrelationID,
		CustomerID:    in.CustomerID,
		Status:        StatusFailed,
	})
	if err != nil {
		return "", fmt.Errorf("relay: encode status payload: %w", err)
	}

	out, err := json.Marshal(OutboundEnvelope{
		CorrelationID: in.CorrelationID,
		Value:         string(value),
	})
	if err != nil {
		return "", fmt.Errorf("relay: encode outbound envelope: %w", err)
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decode reverses Transform for consumers and tests: Base64 → envelope →
// status payload.
func Decode(encoded string) (OutboundEnvelope, StatusPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return OutboundEnvelope{}, StatusPayload{}, fmt.Errorf("relay: decode base64: %w", err)
	}
	var env OutboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return OutboundEnvelope{}, StatusPayload{}, fmt.Errorf("relay: decode envelope: %w", err)
	}
	var payload StatusPayload
	if err := json.Unmarshal([]byte(env.Value), &payload); err != nil {
		return env, StatusPayload{}, fmt.Errorf("relay: decode status payload: %w", err)
	}
	return env, payload, nil
}
