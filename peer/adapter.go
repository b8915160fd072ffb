// Package peer abstracts the host<->peer bootstrap message channel
// behind a single post/on_message shape, hiding the concrete transport
// (spec.md §4.5). Bootstrap message transport is explicitly out of
// scope as a protocol (spec.md §1); this package supplies two concrete
// adapters the runtime package can use: an in-process channel pair for
// peers that are goroutines in the same process, and a Unix-domain-
// socket adapter for peers that are separate OS processes.
package peer

import "errors"

// ErrClosed is returned by Post on an adapter that has been closed.
var ErrClosed = errors.New("peer: adapter closed")

// Adapter is the uniform duplex interface spec.md §4.5 describes:
// post(message) + on_message(listener) -> unsubscribe. Messages cross
// the wire as opaque byte frames; runtime.messages defines the
// init/ready/shared-object-created envelope carried inside them.
type Adapter interface {
	// Post sends msg to the remote side of this adapter.
	Post(msg []byte) error
	// OnMessage registers listener to be invoked once per message
	// arriving from the remote side. Returns an unsubscribe function.
	OnMessage(listener func([]byte)) (unsubscribe func())
	// Close releases any underlying transport resources.
	Close() error
}
