package clipcast

import (
	"time"
)

// Event is the wire format published on the signal channel whenever a
// relation edge flips. Consumers are the realtime socket and any worker
// subscribed to the same redis channel.
type Event struct {
	Type      string    `json:"type"` // "created" or "removed"
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Object    string    `json:"object"`
	EdgeID    string    `json:"edgeID"`
	Timestamp time.Time `json:"timestamp"`
}

// SignalChannel names the redis pub/sub channel carrying edge events for an
// object. Realtime clients subscribe by object identifier.
func SignalChannel(objectID string) string {
	return "signal:" + objectID
}
