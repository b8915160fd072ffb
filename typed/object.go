// Package typed composes the schema layout compiler over a shared
// object to expose typed reads, typed partial writes, and a structured
// view in the write callback. See spec.md §4.3.
package typed

import (
	"context"
	"fmt"

	"github.com/KargJonas/sabus/layout"
	"github.com/KargJonas/sabus/shm"
)

// Object is a thin composition of a shared object and a compiled
// layout: the same wrap-raw-bytes-in-a-typed-view shape a fixed BBO
// matrix struct uses, generalized from one hardcoded struct to an
// arbitrary compiled layout.
type Object struct {
	raw    *shm.Object
	layout *layout.Layout
}

// New compiles schema and creates a backing shared object sized to the
// resulting layout's byte length.
func New(id string, schema layout.Schema) (*Object, error) {
	l, err := layout.Compile(schema)
	if err != nil {
		return nil, err
	}
	raw, err := shm.Create(id, l.ByteLength)
	if err != nil {
		return nil, err
	}
	return &Object{raw: raw, layout: l}, nil
}

// Open wraps an existing shared object with schema. The object's
// byte_length must already equal the compiled layout's byte length;
// a mismatch fails here with layout.ErrConfig, since the shared object
// itself doesn't know about schemas.
func Open(raw *shm.Object, schema layout.Schema) (*Object, error) {
	l, err := layout.Compile(schema)
	if err != nil {
		return nil, err
	}
	if raw.ByteLength() != l.ByteLength {
		return nil, fmt.Errorf("%w: object %q is %d bytes, schema layout is %d", layout.ErrConfig, raw.ID(), raw.ByteLength(), l.ByteLength)
	}
	return &Object{raw: raw, layout: l}, nil
}

// Layout returns the compiled layout backing this object.
func (o *Object) Layout() *layout.Layout { return o.layout }

// Raw returns the underlying shared object, e.g. to hand its
// Descriptor() to a peer.
func (o *Object) Raw() *shm.Object { return o.raw }

// Record is a read's full field snapshot plus the seq it was read at.
type Record struct {
	Seq    uint32
	Values layout.Values
}

// Read performs read_latest then read_snapshot, per spec §4.3.
func (o *Object) Read() (*Record, bool) {
	view, ok := o.raw.ReadLatest()
	if !ok {
		return nil, false
	}
	values, err := layout.ReadSnapshot(o.layout, view.Bytes, 0)
	if err != nil {
		// A successfully published slot always decodes under its own
		// layout; a decode error here would mean byte_length and the
		// layout have drifted apart, a caller configuration bug.
		return nil, false
	}
	return &Record{Seq: view.Seq, Values: values}, true
}

// Write acquires the write lock, applies partial as field writes over
// the next slot, and publishes. Fields not named in partial carry
// forward the previously published record's bytes (spec §8 S5), so a
// write(partial) only ever changes the fields it names. Convenience
// wrapper, spec §4.3.
func (o *Object) Write(ctx context.Context, partial layout.Values) error {
	return o.raw.RequestWrite(ctx, func(v *shm.WriteView) error {
		o.carryForward(v.Bytes)
		return layout.WriteFields(o.layout, v.Bytes, 0, partial)
	})
}

// carryForward copies the most recent publish's bytes into dst, the
// baseline a partial write (spec §8 S5) builds on top of. A fresh
// object with no prior publish leaves dst at its zero value.
func (o *Object) carryForward(dst []byte) {
	if prev, ok := o.raw.ReadLatest(); ok {
		copy(dst, prev.Bytes)
	}
}

// WriteView is handed to a RequestWrite callback: the raw slot bytes,
// the seq that will be committed, a snapshot of the fields as they
// stood before the callback ran, and a set() sugar for write_fields.
type WriteView struct {
	Bytes []byte
	Seq   uint32
	View  layout.Values

	obj *Object
}

// Set applies partial as field writes over this view's slot, the same
// validate-then-write discipline as layout.WriteFields.
func (v *WriteView) Set(partial layout.Values) error {
	return layout.WriteFields(v.obj.layout, v.Bytes, 0, partial)
}

// RequestWrite acquires the write lock and hands cb a WriteView whose
// View field is a snapshot of the fields as they stood immediately
// before the callback ran (spec §4.3), so a partial update can read the
// previous value of a field it isn't overwriting. The snapshot is taken
// after carryForward, once this write's turn has actually come up, so
// it reflects the exact baseline carried into v.Bytes — not whatever was
// published when RequestWrite was first called, which a queued writer
// ahead of this one (spec §5's FIFO ordering) may have since moved past.
func (o *Object) RequestWrite(ctx context.Context, cb func(*WriteView) error) error {
	return o.raw.RequestWrite(ctx, func(v *shm.WriteView) error {
		o.carryForward(v.Bytes)

		values, err := layout.ReadSnapshot(o.layout, v.Bytes, 0)
		if err != nil {
			return err
		}

		return cb(&WriteView{
			Bytes: v.Bytes,
			Seq:   v.Seq,
			View:  values,
			obj:   o,
		})
	})
}

// Subscribe delegates to the underlying shared object.
func (o *Object) Subscribe(cb func()) (unsubscribe func()) {
	return o.raw.Subscribe(cb)
}
