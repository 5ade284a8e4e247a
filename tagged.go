package goskip

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// tagPtr is a tagged atomic pointer: an edge in the skip list tower that
// can be observed, swapped, and marked (tagged) as "being unlinked" by
// any goroutine without taking a lock.
//
// Rust implementations of this same structure steal the low, always-zero
// bits of an aligned pointer to store the tag in the pointer word itself,
// so a single CAS moves both fields atomically. Go's garbage collector
// does not allow a live pointer's bits to be reinterpreted as scalar data
// and handed back to it later, so we keep the pointer and the tag in two
// separate atomics and give the pair compound compare-and-swap semantics
// ourselves: compareExchange only succeeds against an untagged edge, and
// compareExchangeTag only ever touches the tag word, never the pointer.
// A node only ever tags its own outgoing edges (see node.tagLevels); a
// predecessor's edge to that node is swapped, never tagged, so the two
// operations never race over the same field.
type tagPtr[K constraints.Ordered, V any] struct {
	ptr atomic.Pointer[Node[K, V]]
	tag atomic.Uint32
}

func (t *tagPtr[K, V]) loadPtr() *Node[K, V] {
	return t.ptr.Load()
}

func (t *tagPtr[K, V]) loadTag() uint32 {
	return t.tag.Load()
}

// loadDecomposed returns a pointer/tag pair that were at least momentarily
// consistent with each other.
func (t *tagPtr[K, V]) loadDecomposed() (*Node[K, V], uint32) {
	for {
		p := t.ptr.Load()
		tg := t.tag.Load()
		if p == t.ptr.Load() {
			return p, tg
		}
	}
}

// storeComposed sets both fields with no atomicity guarantee between
// them. Only safe before the edge is published to other goroutines.
func (t *tagPtr[K, V]) storeComposed(p *Node[K, V], tag uint32) {
	t.tag.Store(tag)
	t.ptr.Store(p)
}

// compareExchange swaps the pointer from old to new, but only while the
// edge is untagged. It fails (without retrying) if the edge has been
// tagged in the meantime, since a tagged edge means the node on the other
// end is mid-removal and the caller needs to help unlink it instead.
func (t *tagPtr[K, V]) compareExchange(old, new *Node[K, V]) bool {
	for {
		p, tag := t.loadDecomposed()
		if p != old || tag != 0 {
			return false
		}
		if t.ptr.CompareAndSwap(old, new) {
			return true
		}
	}
}

// compareExchangeTag swaps the tag from oldTag to newTag, leaving the
// pointer untouched. It returns the tag observed and whether the swap
// happened; a mismatch means another goroutine already tagged (or
// retagged) this edge first.
func (t *tagPtr[K, V]) compareExchangeTag(oldTag, newTag uint32) (uint32, bool) {
	for {
		tg := t.tag.Load()
		if tg != oldTag {
			return tg, false
		}
		if t.tag.CompareAndSwap(oldTag, newTag) {
			return tg, true
		}
	}
}
