// Package audit moves activity records from request handlers into the
// append-only activity log through a durable queue, so a burst of
// admin actions never adds write latency to the request path.
package audit

import "time"

// queueName is the durable queue the recorder publishes to and the
// consumer drains.
const queueName = "activity.log"

// Event is the wire form of one audit record. It contains everything
// the consumer needs to write the row without querying back into the
// primary database.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserEmail string    `json:"user_email"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
