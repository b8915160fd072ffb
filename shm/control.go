package shm

import "sync/atomic"

// Control-region word indices, fixed per spec.md §3.1 / §6. Implementations
// targeting this spec MUST use this exact 7-word layout so peers attached
// to the same regions interoperate regardless of toolchain.
const (
	wordPublishedSlot = iota
	wordSeq
	wordNextTicket
	wordServingTicket
	wordWriteOwnerThreadID
	wordWriteReentranceDepth
	wordFatalWriterDied

	controlWordCount
)

// control is the 7-word atomic control region shared by every thread
// attached to an Object. Every mutation is an atomic store or fetch-add;
// readers only ever issue atomic loads.
type control struct {
	words [controlWordCount]atomic.Int32
}

func newControl() *control {
	c := &control{}
	c.words[wordPublishedSlot].Store(-1)
	c.words[wordWriteOwnerThreadID].Store(-1)
	return c
}

func (c *control) loadI32(i int) int32 { return c.words[i].Load() }

func (c *control) storeI32(i int, v int32) { c.words[i].Store(v) }

// loadU32/storeU32/addU32 reinterpret a word's bit pattern as an unsigned
// 32-bit counter, matching spec.md's "unsigned semantics; wraps modulo
// 2^32" for seq and the ticket counters, while the wire word itself stays
// a plain signed int32 (spec.md §3.1, §6).
func (c *control) loadU32(i int) uint32 { return uint32(c.words[i].Load()) }

func (c *control) storeU32(i int, v uint32) { c.words[i].Store(int32(v)) }

// addU32 performs an atomic fetch-and-add and returns the value *after*
// the add (the Go stdlib's Add semantics), still reinterpreted as uint32.
func (c *control) addU32(i int, delta uint32) uint32 {
	return uint32(c.words[i].Add(int32(delta)))
}
