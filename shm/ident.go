package shm

import "github.com/timandy/routine"

// ThreadID identifies the calling goroutine for the purposes of the write
// lock's owner/reentrance tracking (spec §3.1 word 4, §4.2 steps 2/5).
// Go exposes no public OS-thread-id primitive, so the owning-thread
// model (spec §3.1 word 4) maps directly onto a goroutine: one producer
// per object, running on its own goroutine, is exactly the single-writer
// assumption spec.md §1 describes. routine.Goid() is the same
// per-goroutine identity primitive the hyperpb debug logger uses for
// tagging (see DESIGN.md).
//
// The control word is a 32-bit signed integer per spec §3.1/§6; goroutine
// ids are int64 and monotonically increasing for the life of the Go
// runtime, so this truncates. That is an accepted limitation of mapping
// a worker-thread-id model onto Go's goroutine ids within a fixed 32-bit
// wire word.
func ThreadID() int32 {
	return int32(routine.Goid())
}
