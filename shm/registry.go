package shm

import "sync"

// segments is a named-shared-memory-segment table, the same role a
// real OS plays for POSIX shm_open(name) or Windows
// CreateFileMapping(name): a process-wide namespace that resolves a
// name to the actual backing region. A Descriptor's data_region/
// control_region fields are opaque handles whose transport encoding is
// delegated to the channel (spec §6); here, since this module doesn't
// open real OS shared-memory segments, the "encoding" a byte-oriented
// channel carries is simply the object's id, and the receiving process
// resolves it against this table to get the live regions.
var (
	segmentsMu sync.Mutex
	segments   = map[string]Descriptor{}
)

// Publish makes desc resolvable by its id via Lookup, for any peer
// attaching in the same OS process.
func Publish(desc Descriptor) {
	segmentsMu.Lock()
	segments[desc.ID] = desc
	segmentsMu.Unlock()
}

// Lookup resolves id to the descriptor last published under it.
func Lookup(id string) (Descriptor, bool) {
	segmentsMu.Lock()
	defer segmentsMu.Unlock()
	desc, ok := segments[id]
	return desc, ok
}

// Unpublish removes id from the table. Destruction is implicit per
// spec §3.3, so this isn't part of that lifecycle, but it's useful for
// test isolation.
func Unpublish(id string) {
	segmentsMu.Lock()
	delete(segments, id)
	segmentsMu.Unlock()
}
