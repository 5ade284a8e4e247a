package goskip

import (
	"sync"
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// pause is a short-lived proof that the holder may still be dereferencing
// nodes that were retired at or after the epoch it was taken in. It is
// the Go rendering of the Rust source's epoch guard: acquiring one is a
// single atomic increment, releasing one a single atomic decrement,
// neither ever blocks.
//
// Go's garbage collector already guarantees a *Node[K, V] is never freed
// out from under a goroutine still holding a pointer to it, so pause does
// not need to (and cannot) protect raw memory the way the Rust source's
// incinerator does. What it still has to protect is n.levels: once a node
// is retired, finalize clears its levels slice so the node's tower can be
// collected, and a search still walking that exact node's tower must not
// observe that clearing mid-stride. pause defers that clearing until
// every pause that could have started before the retirement has ended.
type pause[K constraints.Ordered, V any] struct {
	d     *domain[K, V]
	epoch uint64
}

// release lets go of the epoch this pause was pinning. Call it once per
// pin: every call decrements the epoch's live count again. The zero value
// releases nothing.
func (p pause[K, V]) release() {
	if p.d == nil {
		return
	}
	p.d.unpin(p.epoch)
}

// domain is the reclamation domain shared by every operation on a List:
// it hands out pauses, accepts retired nodes, and drains them once no
// pause old enough to have seen them is still outstanding.
//
// Unlike a fixed-size ring of epoch slots, live-pause counts are kept in
// a map keyed by the exact epoch a pause was taken in. A classic ring
// assumes every pause is released again within a handful of epoch
// advances; that assumption holds for the engine's own internal
// searches, but not for an Entry returned to a caller, which this
// package allows to be held indefinitely (spec-equivalent: reclamation
// "may be deferred arbitrarily under sustained concurrent access"). A
// ring would either wrap around a still-outstanding long-lived pause (use
// after finalize) or silently corrupt an unrelated counter. The map never
// reuses a slot, so a long-lived Entry simply stalls reclamation of
// whatever was retired at or after it, rather than corrupting bookkeeping
// for anything else.
type domain[K constraints.Ordered, V any] struct {
	epoch atomic.Uint64
	// onRetire, if set, is invoked once per retired node, exactly once,
	// from whichever goroutine happens to drain it.
	onRetire func(key K, val V)
	logger   Logger

	// counts is keyed by epoch number and never reuses a key, so pin and
	// unpin need no lock: sync.Map is built for exactly this many-readers,
	// rare-new-key pattern.
	counts sync.Map // uint64 -> *atomic.Int64

	mu   sync.Mutex
	bags map[uint64][]*Node[K, V]
}

func newDomain[K constraints.Ordered, V any](logger Logger, onRetire func(K, V)) *domain[K, V] {
	if logger == nil {
		logger = noopLogger{}
	}
	return &domain[K, V]{
		logger:   logger,
		onRetire: onRetire,
		bags:     make(map[uint64][]*Node[K, V]),
	}
}

// pin pins the caller to the domain's current epoch and returns a pause
// that must eventually be released.
func (d *domain[K, V]) pin() pause[K, V] {
	e := d.epoch.Load()
	d.counterFor(e).Add(1)
	return pause[K, V]{d: d, epoch: e}
}

func (d *domain[K, V]) counterFor(e uint64) *atomic.Int64 {
	c := new(atomic.Int64)
	actual, _ := d.counts.LoadOrStore(e, c)
	return actual.(*atomic.Int64)
}

func (d *domain[K, V]) unpin(e uint64) {
	if c, ok := d.counts.Load(e); ok {
		c.(*atomic.Int64).Add(-1)
	}
}

// retire hands n over to the domain once its refcount has reached zero.
// n must not be dereferenced by the caller after this returns.
func (d *domain[K, V]) retire(n *Node[K, V]) {
	e := d.epoch.Load()
	d.mu.Lock()
	d.bags[e] = append(d.bags[e], n)
	d.mu.Unlock()
}

// tryClear makes a best-effort attempt to drain every generation of
// retired nodes that is no longer protected by any outstanding pause, and
// starts a fresh generation so future retirements get their own window.
// It never blocks waiting for a pause to be released; generations retired
// at or after the oldest epoch that still has one outstanding are left
// for a later call.
func (d *domain[K, V]) tryClear() {
	d.mu.Lock()
	cur := d.epoch.Load()
	oldest := cur
	d.counts.Range(func(k, c any) bool {
		if e := k.(uint64); e < oldest && c.(*atomic.Int64).Load() > 0 {
			oldest = e
		}
		return true
	})
	if oldest < cur {
		d.logger.Debugf("goskip: reclamation deferred, epoch %d still pinned", oldest)
	}
	var drained [][]*Node[K, V]
	for e := range d.bags {
		if e >= oldest {
			continue
		}
		if bag := d.bags[e]; len(bag) > 0 {
			drained = append(drained, bag)
		}
		delete(d.bags, e)
		d.counts.Delete(e)
	}
	d.epoch.Add(1)
	d.mu.Unlock()

	for _, bag := range drained {
		for _, n := range bag {
			d.finalize(n)
		}
	}
}

// clear forcibly drains every retired node regardless of outstanding
// pauses. Only safe when the caller has exclusive access to the list,
// e.g. from Close or IntoIter, where no other goroutine can still be
// mid-traversal.
func (d *domain[K, V]) clear() {
	d.mu.Lock()
	bags := d.bags
	d.bags = make(map[uint64][]*Node[K, V])
	d.mu.Unlock()
	d.counts.Range(func(key, _ any) bool {
		d.counts.Delete(key)
		return true
	})

	for _, bag := range bags {
		for _, n := range bag {
			d.finalize(n)
		}
	}
}

func (d *domain[K, V]) finalize(n *Node[K, V]) {
	if d.onRetire != nil {
		d.onRetire(n.key, n.val)
	}
	// Drop the tower so the GC can reclaim it promptly; n.key/n.val stay
	// valid forever, only the levels a concurrent helper might still be
	// walking are ever cleared.
	n.levels = nil
}
