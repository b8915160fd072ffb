// Package runtime implements the shared runtime: the process-wide
// coordinator that owns the object registry, ships descriptors to
// newly attached peers, and propagates object-creation events and
// writer deaths (spec.md §4.4).
package runtime

import "encoding/json"

// descriptorWire is the JSON wire shape of spec §6's descriptor:
// { id, byte_length, slot_count, data_region: ref, control_region: ref }.
// data_region/control_region's transport encoding is delegated to the
// channel (spec §6); this module resolves them by name against
// shm's named-segment table (see shm/registry.go), so the wire form
// only needs to carry the id plus sizing metadata for bookkeeping.
type descriptorWire struct {
	ID         string `json:"id"`
	ByteLength int    `json:"byte_length"`
	SlotCount  int    `json:"slot_count"`
}

const (
	msgTypeInit                = "init"
	msgTypeReady               = "ready"
	msgTypeSharedObjectCreated = "shared-object-created"
)

// envelope is the outer frame every bootstrap message is wrapped in,
// tagged by type per spec §6's bootstrap message table.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// initPayload is init's payload: { shared_objects: [descriptor...], setup_data: opaque }.
type initPayload struct {
	SharedObjects []descriptorWire `json:"shared_objects"`
	SetupData     json.RawMessage  `json:"setup_data,omitempty"`
}

// readyPayload is ready's payload: {}.
type readyPayload struct{}

// sharedObjectCreatedPayload is shared-object-created's payload:
// { shared_object: descriptor }.
type sharedObjectCreatedPayload struct {
	SharedObject descriptorWire `json:"shared_object"`
}

func encodeEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: msgType, Payload: raw})
}

func decodeEnvelope(msg []byte) (envelope, error) {
	var env envelope
	err := json.Unmarshal(msg, &env)
	return env, err
}
