package shm

import "errors"

// ErrConfig is returned by Create on a non-positive byte length (spec §7
// ConfigError). Callers' bug — not recoverable locally.
var ErrConfig = errors.New("shm: invalid object configuration")

// ErrReentrantWrite is returned by RequestWrite when the calling
// goroutine already holds the write lock on this object (spec §7
// ReentrantWrite). The outer write is unaffected and still publishes.
var ErrReentrantWrite = errors.New("shm: reentrant write rejected")

// ErrPoisoned is returned by RequestWrite once the object has observed
// its writer die mid-hold (spec §7 Poisoned). Terminal: an object never
// recovers from this state. Reads still return the last valid publish.
var ErrPoisoned = errors.New("shm: object poisoned: writer died while holding the lock")
