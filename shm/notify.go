package shm

import "sync"

// notifyChannelPrefix names the process-visible broadcast channel for an
// object's publishes, per spec §6: "shared-object:<id>". The shm package
// itself is an in-process, direct-dispatch implementation of that
// channel, and each Object handle has its own hub: a subscriber is called
// only for publishes made through the handle it subscribed on. Nothing
// in the runtime or peer packages carries these notifications to other
// handles or processes.
const notifyChannelPrefix = "shared-object:"

// NotifyChannelName returns the process-visible broadcast channel name
// for id, per spec §6.
func NotifyChannelName(id string) string {
	return notifyChannelPrefix + id
}

// notifyHub is a many-to-many, at-least-once fan-out for a single
// object's publish events. Delivery order across subscribers is
// unspecified; delivery may coalesce under load (spec §4.2 subscribe).
type notifyHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func()
}

func newNotifyHub() *notifyHub {
	return &notifyHub{subs: make(map[uint64]func())}
}

// Subscribe registers cb to be invoked once per successful publish.
// Returns an unsubscribe function.
func (h *notifyHub) Subscribe(cb func()) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = cb
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Publish fans the notification out to every current subscriber,
// each on its own goroutine so a slow or blocking subscriber cannot
// delay the writer that just released the lock.
func (h *notifyHub) Publish() {
	h.mu.Lock()
	cbs := make([]func(), 0, len(h.subs))
	for _, cb := range h.subs {
		cbs = append(cbs, cb)
	}
	h.mu.Unlock()

	for _, cb := range cbs {
		go cb()
	}
}
