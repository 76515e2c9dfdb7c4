package remote

import (
	"sync"

	"finledger/internal/core"
)

// Hub fans owner-scoped snapshots out to watchers. Each watcher drains its
// own ordered queue on a dedicated goroutine, so deliveries for one watcher
// never block another and always arrive in publish order.
type Hub struct {
	mu       sync.Mutex
	watchers map[int]*hubWatcher
	next     int
	closed   bool
}

type hubWatcher struct {
	owner   string
	deliver SnapshotFunc

	mu      sync.Mutex
	cond    *sync.Cond
	pending []delivery
	stopped bool
}

type delivery struct {
	txns []core.Transaction
	err  error
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[int]*hubWatcher)}
}

// Watch registers a snapshot consumer for owner. The returned cancel is
// idempotent; once it returns, queued deliveries are dropped.
func (h *Hub) Watch(owner string, deliver SnapshotFunc) CancelFunc {
	w := &hubWatcher{owner: owner, deliver: deliver}
	w.cond = sync.NewCond(&w.mu)

	h.mu.Lock()
	id := h.next
	h.next++
	h.watchers[id] = w
	h.mu.Unlock()

	go w.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, id)
			h.mu.Unlock()
			w.stop()
		})
	}
}

// Publish queues a full snapshot for every watcher of owner.
func (h *Hub) Publish(owner string, txns []core.Transaction) {
	h.mu.Lock()
	for _, w := range h.watchers {
		if w.owner == owner {
			w.enqueue(delivery{txns: txns})
		}
	}
	h.mu.Unlock()
}

// Fail posts a terminal error to every watcher of owner and removes them.
// A failed watch delivers nothing further; recovery requires a new Watch.
func (h *Hub) Fail(owner string, err error) {
	h.mu.Lock()
	var failed []*hubWatcher
	for id, w := range h.watchers {
		if w.owner == owner {
			failed = append(failed, w)
			delete(h.watchers, id)
		}
	}
	h.mu.Unlock()

	for _, w := range failed {
		w.enqueue(delivery{err: err})
		w.stopAfterDrain()
	}
}

// Close stops every watcher.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	watchers := make([]*hubWatcher, 0, len(h.watchers))
	for _, w := range h.watchers {
		watchers = append(watchers, w)
	}
	h.watchers = make(map[int]*hubWatcher)
	h.mu.Unlock()

	for _, w := range watchers {
		w.stop()
	}
}

func (w *hubWatcher) enqueue(d delivery) {
	w.mu.Lock()
	if !w.stopped {
		w.pending = append(w.pending, d)
		w.cond.Signal()
	}
	w.mu.Unlock()
}

// stop drops queued deliveries and ends the run loop.
func (w *hubWatcher) stop() {
	w.mu.Lock()
	w.stopped = true
	w.pending = nil
	w.cond.Signal()
	w.mu.Unlock()
}

// stopAfterDrain lets already-queued deliveries (the terminal error) land
// before the run loop exits.
func (w *hubWatcher) stopAfterDrain() {
	w.mu.Lock()
	w.stopped = true
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *hubWatcher) run() {
	for {
		w.mu.Lock()
		for len(w.pending) == 0 && !w.stopped {
			w.cond.Wait()
		}
		if len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		next := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()

		w.deliver(next.txns, next.err)
	}
}
