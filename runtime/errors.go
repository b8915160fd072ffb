package runtime

import "errors"

// ErrDuplicateID is returned by CreateSharedObject/AttachWorker for a
// name already registered (spec §7 DuplicateId).
var ErrDuplicateID = errors.New("runtime: duplicate id")

// ErrUnknownID is returned by OpenSharedObject for an id never created
// or attached (spec §7 UnknownId).
var ErrUnknownID = errors.New("runtime: unknown id")

// ErrNotPeerRole is returned by peer-only operations called on a host
// runtime. Host-role operations do not check the role and never return it.
var ErrNotPeerRole = errors.New("runtime: operation requires the peer role")
