package runtime

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/KargJonas/sabus/layout"
	"github.com/KargJonas/sabus/shm"
	"github.com/KargJonas/sabus/typed"
)

// peerHandle is what the host keeps per attached peer: its session id,
// the adapter used to reach it, and an unsubscribe for its listener.
type peerHandle struct {
	sessionID   string
	adapter     peerAdapter
	unsubscribe func()
}

// peerAdapter is the subset of peer.Adapter the runtime needs; declared
// locally so this package only imports peer.Adapter's concrete type via
// the caller-supplied value, not the whole peer package API surface.
type peerAdapter interface {
	Post(msg []byte) error
	OnMessage(listener func([]byte)) (unsubscribe func())
}

// Runtime is the process-wide coordinator (spec §4.4): on the host side
// it owns the object registry and the attached-peer list; on the peer
// side it hydrates its object table from the host's init message.
type Runtime struct {
	mu       sync.Mutex
	isHost   bool
	objects  map[string]*shm.Object
	order    []string // creation/attach order, for init's shared_objects list
	tunables shm.Tunables

	// host-only
	peers map[string]*peerHandle

	// peer-only
	setupData json.RawMessage

	openGroup singleflight.Group
}

// Host creates an empty runtime in host mode (spec §4.4 host()).
func Host() *Runtime {
	return HostWithTunables(shm.DefaultTunables())
}

// HostWithTunables is Host with explicit Tunables applied to every
// object this runtime creates.
func HostWithTunables(tunables shm.Tunables) *Runtime {
	return &Runtime{
		isHost:   true,
		objects:  make(map[string]*shm.Object),
		peers:    make(map[string]*peerHandle),
		tunables: tunables,
	}
}

// AttachWorker dispatches init over adapter, awaits ready, and
// registers the peer under name (spec §4.4 attach_worker). Fails if
// name is already attached.
func (r *Runtime) AttachWorker(name string, adapter peerAdapter, setupData any) error {
	r.mu.Lock()
	if _, exists := r.peers[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: peer %q already attached", ErrDuplicateID, name)
	}
	descriptors := make([]descriptorWire, 0, len(r.order))
	for _, id := range r.order {
		obj := r.objects[id]
		descriptors = append(descriptors, descriptorWire{
			ID:         obj.ID(),
			ByteLength: obj.ByteLength(),
			SlotCount:  shm.SlotCount,
		})
	}
	r.mu.Unlock()

	setupRaw, err := json.Marshal(setupData)
	if err != nil {
		return fmt.Errorf("runtime: encoding setup data for %q: %w", name, err)
	}

	readyCh := make(chan struct{})
	unsubscribe := adapter.OnMessage(func(msg []byte) {
		env, err := decodeEnvelope(msg)
		if err != nil || env.Type != msgTypeReady {
			return
		}
		select {
		case <-readyCh:
		default:
			close(readyCh)
		}
	})

	sessionID := uuid.NewString()
	initMsg, err := encodeEnvelope(msgTypeInit, initPayload{
		SharedObjects: descriptors,
		SetupData:     setupRaw,
	})
	if err != nil {
		unsubscribe()
		return fmt.Errorf("runtime: encoding init for %q: %w", name, err)
	}
	if err := adapter.Post(initMsg); err != nil {
		unsubscribe()
		return fmt.Errorf("runtime: sending init to %q: %w", name, err)
	}

	<-readyCh

	r.mu.Lock()
	r.peers[name] = &peerHandle{sessionID: sessionID, adapter: adapter, unsubscribe: unsubscribe}
	r.mu.Unlock()
	return nil
}

// AttachWorkers attaches several peers concurrently, each awaiting its
// own ready independently (spec doesn't mandate ordering across
// distinct peers). It returns the first error once every attach has
// finished; a failing attach does not cancel the others.
func (r *Runtime) AttachWorkers(specs map[string]struct {
	Adapter   peerAdapter
	SetupData any
}) error {
	var g errgroup.Group
	for name, spec := range specs {
		name, spec := name, spec
		g.Go(func() error {
			return r.AttachWorker(name, spec.Adapter, spec.SetupData)
		})
	}
	return g.Wait()
}

// CreateSharedObject creates a raw object, publishes its descriptor to
// the named-segment table, and broadcasts shared-object-created to
// every attached peer (spec §4.4). Fails on a duplicate id.
func (r *Runtime) CreateSharedObject(id string, byteLength int) (*shm.Object, error) {
	r.mu.Lock()
	if _, exists := r.objects[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: shared object %q", ErrDuplicateID, id)
	}
	r.mu.Unlock()

	obj, err := shm.CreateWithTunables(id, byteLength, r.tunables)
	if err != nil {
		return nil, err
	}
	shm.Publish(obj.Descriptor())

	r.mu.Lock()
	r.objects[id] = obj
	r.order = append(r.order, id)
	peers := make(map[string]*peerHandle, len(r.peers))
	for name, p := range r.peers {
		peers[name] = p
	}
	r.mu.Unlock()

	msg, err := encodeEnvelope(msgTypeSharedObjectCreated, sharedObjectCreatedPayload{
		SharedObject: descriptorWire{ID: id, ByteLength: byteLength, SlotCount: shm.SlotCount},
	})
	if err != nil {
		return nil, fmt.Errorf("runtime: encoding shared-object-created for %q: %w", id, err)
	}
	for name, p := range peers {
		if err := p.adapter.Post(msg); err != nil {
			log.Printf("runtime: broadcasting shared-object-created for %q to %q: %v", id, name, err)
		}
	}

	return obj, nil
}

// CreateTypedSharedObject is CreateSharedObject composed with a schema
// (spec §4.4's create_shared_object(id, config_or_schema)).
func (r *Runtime) CreateTypedSharedObject(id string, schema layout.Schema) (*typed.Object, error) {
	l, err := layout.Compile(schema)
	if err != nil {
		return nil, err
	}
	raw, err := r.CreateSharedObject(id, l.ByteLength)
	if err != nil {
		return nil, err
	}
	return typed.Open(raw, schema)
}

// OpenSharedObject returns an existing object by id (spec §4.4
// open_shared_object), usable on either role. Concurrent opens of the
// same id are collapsed via singleflight so a flurry of lookups for a
// just-attached id don't race the registry.
func (r *Runtime) OpenSharedObject(id string) (*shm.Object, error) {
	v, err, _ := r.openGroup.Do(id, func() (any, error) {
		r.mu.Lock()
		obj, ok := r.objects[id]
		r.mu.Unlock()
		if ok {
			return obj, nil
		}

		desc, ok := shm.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: shared object %q", ErrUnknownID, id)
		}
		obj = shm.FromDescriptorWithTunables(desc, r.tunables)

		r.mu.Lock()
		r.objects[id] = obj
		r.order = append(r.order, id)
		r.mu.Unlock()
		return obj, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*shm.Object), nil
}

// OpenTypedSharedObject is OpenSharedObject composed with a schema.
func (r *Runtime) OpenTypedSharedObject(id string, schema layout.Schema) (*typed.Object, error) {
	raw, err := r.OpenSharedObject(id)
	if err != nil {
		return nil, err
	}
	return typed.Open(raw, schema)
}

// MarkWriterThreadDied propagates a dead thread id to every object it
// held the write lock on (spec §4.4's host-role death propagation).
func (r *Runtime) MarkWriterThreadDied(threadID int32) {
	r.mu.Lock()
	objs := make([]*shm.Object, 0, len(r.objects))
	for _, o := range r.objects {
		objs = append(objs, o)
	}
	r.mu.Unlock()

	for _, o := range objs {
		o.MarkWriterThreadDied(threadID)
	}
}
