// Package posproto defines the JSON frames the service exchanges with a POS
// client device over the websocket channel.
package posproto

import "encoding/json"

// Identity is pushed once, as the first frame of every opened connection.
type Identity struct {
	UUID   string `json:"uuid"`
	Key    string `json:"key"`
	Commit string `json:"commit"`
}

// Ack answers every inbound frame, whatever its content.
type Ack struct {
	UUID string `json:"uuid"`
}

// NewIdentity builds the greeting frame for an instance.
func NewIdentity(instanceID, sharedKey, buildVersion string) Identity {
	return Identity{UUID: instanceID, Key: sharedKey, Commit: buildVersion}
}

// NewAck builds the acknowledgement frame for an instance.
func NewAck(instanceID string) Ack {
	return Ack{UUID: instanceID}
}

// Encode renders a frame the way it travels on the wire.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
