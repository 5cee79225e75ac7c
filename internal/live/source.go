// Package live consumes the push-notification stream that delivers
// asynchronous transaction status updates outside the request/response
// cycle. The transport (redis pub/sub or kafka) is an implementation detail
// behind the Source interface; the checkout session only sees StatusEvents.
package live

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventName is the push event carrying transaction status changes.
const EventName = "transactionStatus"

// StatusEvent is one asynchronous status update. TransactionID may be empty;
// the original notification shape carries only the status.
type StatusEvent struct {
	TransactionID string `json:"transactionId,omitempty"`
	Status        string `json:"status"`
}

// Source is a long-lived subscription to the push stream. A source is
// session-scoped: opened when the session starts and closed on teardown.
type Source interface {
	// Subscribe starts delivery. The returned channel is closed when the
	// context is cancelled or the source is closed.
	Subscribe(ctx context.Context) (<-chan StatusEvent, error)
	Close() error
}

// DecodeEvent parses a raw push payload. Status case is left as delivered;
// the session normalizes it on application.
func DecodeEvent(payload []byte) (StatusEvent, error) {
	var ev StatusEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return StatusEvent{}, fmt.Errorf("decode status event: %w", err)
	}
	if ev.Status == "" {
		return StatusEvent{}, fmt.Errorf("decode status event: missing status field")
	}
	return ev, nil
}
