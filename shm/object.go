// Package shm implements the shared-object core: a triple-buffered slot
// ring with sequence-locked reads, a ticket-locked writer, owner
// tracking, writer-death poisoning and change-notification fan-out.
// See spec.md §3.1, §4.2, §5, §9.
package shm

import (
	"context"
	"fmt"
	"time"
)

// SlotCount is fixed at 3 and is not user-tunable (spec §6, §9's
// "Triple buffering, not double" design note).
const SlotCount = 3

// Tunables are the implementation-defined knobs spec.md §9's Open
// Questions explicitly invite instead of a hard-coded magic number.
type Tunables struct {
	// ReadRetryLimit bounds the sequence-lock read retry loop (spec
	// §4.2 step 5). Default 4, matching spec.md's own read protocol.
	ReadRetryLimit int
	// NotifyPollInterval is the fallback wake interval a blocked writer
	// uses in addition to being notified on ticket/poison change (spec
	// §5's "short fallback timeout... e.g. 10ms").
	NotifyPollInterval time.Duration
}

// DefaultTunables returns the documented defaults.
func DefaultTunables() Tunables {
	return Tunables{
		ReadRetryLimit:     4,
		NotifyPollInterval: 10 * time.Millisecond,
	}
}

// Descriptor is the transportable metadata that lets a peer attach a
// handle to a shared object's pre-existing regions (spec §3.3, §6).
// data_region/control_region are opaque handles whose transport encoding
// is delegated to the channel; here, in-process, they are literally the
// shared slice and control-region pointer.
type Descriptor struct {
	ID         string
	ByteLength int
	SlotCount  int

	data []byte
	ctrl *control
}

// Object is a shared object: two shared-memory regions (data, control)
// visible to every attached goroutine, plus the in-process notification
// hub and the tunables governing its wait/retry loops.
type Object struct {
	id         string
	byteLength int
	data       []byte
	ctrl       *control
	notify     *notifyHub
	wake       *wakeGate
	tunables   Tunables
}

func (o *Object) wakeSignal() <-chan struct{} { return o.wake.signal() }

func (o *Object) broadcastWake() { o.wake.broadcast() }

// Create allocates a new shared object with slot_count=3 and the given
// per-slot byte_length. Fails with ErrConfig on a non-positive size.
func Create(id string, byteLength int) (*Object, error) {
	return CreateWithTunables(id, byteLength, DefaultTunables())
}

// CreateWithTunables is Create with explicit Tunables instead of the
// documented defaults.
func CreateWithTunables(id string, byteLength int, tunables Tunables) (*Object, error) {
	if byteLength <= 0 {
		return nil, fmt.Errorf("%w: byte_length must be positive, got %d", ErrConfig, byteLength)
	}
	return &Object{
		id:         id,
		byteLength: byteLength,
		data:       make([]byte, SlotCount*byteLength),
		ctrl:       newControl(),
		notify:     newNotifyHub(),
		wake:       newWakeGate(),
		tunables:   tunables,
	}, nil
}

// FromDescriptor attaches a new handle to the regions named by desc,
// using the documented default Tunables.
func FromDescriptor(desc Descriptor) *Object {
	return FromDescriptorWithTunables(desc, DefaultTunables())
}

// FromDescriptorWithTunables is FromDescriptor with explicit Tunables.
//
// A handle built this way gets its own notifyHub and wakeGate rather than
// sharing the creator's: this package only models same-process peers, so
// a second handle's waiters fall back to the poll interval (rather than
// the instant broadcast) to observe a release made through a different
// handle on the same control region. Correctness is unaffected, only
// wake latency.
func FromDescriptorWithTunables(desc Descriptor, tunables Tunables) *Object {
	return &Object{
		id:         desc.ID,
		byteLength: desc.ByteLength,
		data:       desc.data,
		ctrl:       desc.ctrl,
		notify:     newNotifyHub(),
		wake:       newWakeGate(),
		tunables:   tunables,
	}
}

// Descriptor returns a transportable descriptor for attaching further
// handles to this object's regions.
func (o *Object) Descriptor() Descriptor {
	return Descriptor{
		ID:         o.id,
		ByteLength: o.byteLength,
		SlotCount:  SlotCount,
		data:       o.data,
		ctrl:       o.ctrl,
	}
}

// ID returns the object's id.
func (o *Object) ID() string { return o.id }

// ByteLength returns the per-slot payload size.
func (o *Object) ByteLength() int { return o.byteLength }

func (o *Object) poisoned() bool {
	return o.ctrl.loadI32(wordFatalWriterDied) != 0
}

func (o *Object) slotBytes(slot int) []byte {
	start := slot * o.byteLength
	return o.data[start : start+o.byteLength]
}

// WriteView is the mutable view handed to a RequestWrite callback: the
// raw bytes of the slot about to be published, and the sequence number
// that publish will carry.
type WriteView struct {
	Bytes []byte
	Seq   uint32
}

// RequestWrite serializes on the object's ticket lock (spec §4.2's write
// protocol, steps 1-8) and, once admitted, invokes cb with a view over
// the next-free slot. The lock is held for cb's full duration, including
// if cb suspends (spec §5). If cb returns an error, the slot is not
// published and the lock is released as usual. ctx governs only the
// *wait* for the writer's turn and the poison-check poll; once cb is
// invoked the write proceeds to completion or error, per spec §5's "no
// cancellation of an in-flight write."
func (o *Object) RequestWrite(ctx context.Context, cb func(*WriteView) error) error {
	if o.poisoned() {
		return ErrPoisoned
	}
	self := ThreadID()
	if o.ctrl.loadI32(wordWriteOwnerThreadID) == self && o.ctrl.loadI32(wordWriteReentranceDepth) > 0 {
		return ErrReentrantWrite
	}

	ticket := o.ctrl.addU32(wordNextTicket, 1) - 1

	if err := o.waitForTurn(ctx, ticket); err != nil {
		return err
	}

	// Acquire.
	o.ctrl.storeI32(wordWriteOwnerThreadID, self)
	o.ctrl.storeI32(wordWriteReentranceDepth, 1)

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		o.ctrl.storeI32(wordWriteReentranceDepth, 0)
		o.ctrl.storeI32(wordWriteOwnerThreadID, -1)
		o.ctrl.addU32(wordServingTicket, 1)
		o.broadcastWake()
	}

	seq := o.ctrl.loadU32(wordSeq)
	nextSeq := seq + 1
	slot := int(nextSeq % uint32(SlotCount))

	view := &WriteView{Bytes: o.slotBytes(slot), Seq: nextSeq}
	cbErr := cb(view)
	if cbErr != nil {
		release()
		return cbErr
	}

	if o.poisoned() {
		// Poisoned after acquisition but before publish: abort the
		// publish. The half-written slot bytes are not exposed, since
		// published_slot/seq are never advanced.
		release()
		return ErrPoisoned
	}

	// Publish: published_slot first, then seq — the order matters (spec
	// §4.2 step 7, §9). This release-store pairs with the read
	// protocol's seq-then-slot-then-seq acquire-load sequence in
	// ReadLatest.
	o.ctrl.storeU32(wordPublishedSlot, uint32(slot))
	o.ctrl.storeU32(wordSeq, nextSeq)

	release()
	o.notify.Publish()
	return nil
}

// Write is a convenience for callers that just want to hand over raw
// bytes rather than mutate the view in place.
func (o *Object) Write(ctx context.Context, payload []byte) error {
	return o.RequestWrite(ctx, func(v *WriteView) error {
		if len(payload) != len(v.Bytes) {
			return fmt.Errorf("%w: payload is %d bytes, slot is %d", ErrConfig, len(payload), len(v.Bytes))
		}
		copy(v.Bytes, payload)
		return nil
	})
}

// waitForTurn blocks until ticket is being served, the object is
// poisoned, or ctx is done. It wakes on an explicit broadcast (a write
// completing, or a poisoning) or on the configured fallback poll
// interval, per spec §5.
func (o *Object) waitForTurn(ctx context.Context, ticket uint32) error {
	for {
		if o.poisoned() {
			return ErrPoisoned
		}
		if o.ctrl.loadU32(wordServingTicket) == ticket {
			return nil
		}

		wake := o.wakeSignal()
		select {
		case <-wake:
		case <-time.After(o.tunables.NotifyPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ReadView is a sequence-locked snapshot of the latest published slot.
type ReadView struct {
	Seq   uint32
	Bytes []byte
}

// ReadLatest performs the sequence-locked read protocol (spec §4.2): it
// never blocks, and returns (nil, false) if nothing has been published
// yet or after the configured number of torn-read retries under extreme
// contention.
//
// published_slot is read as its own word rather than derived as
// seq_before % SlotCount. Spec §4.2 lists them as separate loads, but
// that leaves a narrow window where seq_before is sampled, a publish
// advances both words, and published_slot is then sampled post-publish:
// seq_after still won't match seq_before so the retry loop catches it,
// but a reader could in principle pair an older seq with a newer slot
// for the duration of a single (discarded) attempt. Deriving the slot
// from seq_before instead would close that window outright; kept as
// spec'd for now since the retry loop already makes it unobservable.
func (o *Object) ReadLatest() (*ReadView, bool) {
	attempts := o.tunables.ReadRetryLimit + 1
	for i := 0; i < attempts; i++ {
		seqBefore := o.ctrl.loadU32(wordSeq)
		slot := o.ctrl.loadI32(wordPublishedSlot)
		if slot < 0 {
			return nil, false
		}
		bytes := o.slotBytes(int(slot))
		seqAfter := o.ctrl.loadU32(wordSeq)
		if seqBefore == seqAfter {
			return &ReadView{Seq: seqBefore, Bytes: bytes}, true
		}
	}
	return nil, false
}

// Subscribe registers cb to run once per successful publish made through
// this handle (spec §4.2); publishes made through another handle on the
// same regions do not call it. Returns an unsubscribe function.
func (o *Object) Subscribe(cb func()) (unsubscribe func()) {
	return o.notify.Subscribe(cb)
}

// NotifyChannelName returns this object's process-visible broadcast
// channel name (spec §6): "shared-object:<id>".
func (o *Object) NotifyChannelName() string {
	return NotifyChannelName(o.id)
}

// MarkWriterThreadDied poisons the object if threadID currently holds
// the write lock (spec §4.2's writer-death detection). Idempotent: safe
// to call for a thread that never held this object's lock, or more than
// once for the same thread.
func (o *Object) MarkWriterThreadDied(threadID int32) {
	if o.ctrl.loadI32(wordWriteOwnerThreadID) != threadID {
		return
	}
	o.ctrl.storeI32(wordFatalWriterDied, 1)
	o.ctrl.storeI32(wordWriteOwnerThreadID, -1)
	o.ctrl.storeI32(wordWriteReentranceDepth, 0)
	o.broadcastWake()
}

// Poisoned reports whether the object has observed a writer die while
// holding the lock. Terminal once true.
func (o *Object) Poisoned() bool {
	return o.poisoned()
}
