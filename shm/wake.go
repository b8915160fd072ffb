package shm

import "sync"

// wakeGate is the broadcast-wake half of the writer wait loop (spec §5):
// a channel that is closed (never sent on) to wake every waiter at once,
// then replaced so the next wait starts from a fresh, open channel. This
// stands in for the native async-atomic-wait primitive spec.md assumes;
// Go has none, so every blocked writer additionally polls on a short
// fallback timeout (see Tunables.NotifyPollInterval).
type wakeGate struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWakeGate() *wakeGate {
	return &wakeGate{ch: make(chan struct{})}
}

func (g *wakeGate) signal() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch
}

func (g *wakeGate) broadcast() {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.ch)
	g.ch = make(chan struct{})
}
