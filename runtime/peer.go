package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/KargJonas/sabus/shm"
)

// Worker constructs a runtime in peer mode: it synchronously suspends
// until the host's init message arrives over adapter, hydrates its
// local object table from the descriptors it names, replies ready, and
// returns (spec §4.4 worker(endpoint?)).
//
// The spec leaves a handshake timeout implementation-defined and notes
// an unbounded wait is a reasonable default since the host typically
// ships init before the peer's code runs; this implementation blocks
// without a timeout, matching that default.
func Worker(adapter peerAdapter) (*Runtime, error) {
	return WorkerWithTunables(adapter, shm.DefaultTunables())
}

// WorkerWithTunables is Worker with explicit Tunables applied to every
// object this runtime attaches.
func WorkerWithTunables(adapter peerAdapter, tunables shm.Tunables) (*Runtime, error) {
	r := &Runtime{
		isHost:   false,
		objects:  make(map[string]*shm.Object),
		tunables: tunables,
	}

	initCh := make(chan initPayload, 1)
	unsubscribe := adapter.OnMessage(func(msg []byte) {
		env, err := decodeEnvelope(msg)
		if err != nil {
			return
		}
		switch env.Type {
		case msgTypeInit:
			var payload initPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				return
			}
			select {
			case initCh <- payload:
			default:
			}
		case msgTypeSharedObjectCreated:
			var payload sharedObjectCreatedPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				return
			}
			r.hydrate(payload.SharedObject)
		}
	})

	init := <-initCh

	r.mu.Lock()
	r.setupData = init.SetupData
	r.mu.Unlock()

	for _, d := range init.SharedObjects {
		r.hydrate(d)
	}

	readyMsg, err := encodeEnvelope(msgTypeReady, readyPayload{})
	if err != nil {
		unsubscribe()
		return nil, fmt.Errorf("runtime: encoding ready: %w", err)
	}
	if err := adapter.Post(readyMsg); err != nil {
		unsubscribe()
		return nil, fmt.Errorf("runtime: sending ready: %w", err)
	}

	return r, nil
}

// hydrate resolves d against the named-segment table and registers a
// local handle for it, skipping ids already attached.
func (r *Runtime) hydrate(d descriptorWire) {
	r.mu.Lock()
	if _, exists := r.objects[d.ID]; exists {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	desc, ok := shm.Lookup(d.ID)
	if !ok {
		return
	}
	obj := shm.FromDescriptorWithTunables(desc, r.tunables)

	r.mu.Lock()
	r.objects[d.ID] = obj
	r.order = append(r.order, d.ID)
	r.mu.Unlock()
}

// WorkerSetupData returns the opaque setup payload delivered in init
// (spec §4.4 worker_setup_data). Returns an error if this runtime isn't
// in the peer role.
func (r *Runtime) WorkerSetupData() ([]byte, error) {
	if r.isHost {
		return nil, ErrNotPeerRole
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setupData, nil
}
