// Package domain defines the core data types shared across the posbridge
// server, access gate, and audit store.
package domain

import "time"

// Connection state constants describe the lifecycle of one websocket peer.
// Transitions only move forward; Closed is terminal.
const (
	ConnStateConnecting = "connecting"
	ConnStateOpen       = "open"
	ConnStateClosed     = "closed"
)

// AccessEvent is the diagnostic record of a single allowlist decision.
type AccessEvent struct {
	ID        int64
	RemoteIP  string
	Allowed   bool
	CreatedAt time.Time
}
