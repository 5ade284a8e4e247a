package goskip

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

const (
	// MaxHeight bounds how tall a tower can grow. 32 matches the range the
	// packed header's height field was sized for.
	MaxHeight = 32

	// heightBits is the width of the height field packed into a Node's
	// header word. 7 bits comfortably covers [1, MaxHeight] and leaves the
	// remaining 56 bits of the word for the reference count, with the top
	// bit reserved for the removed flag.
	heightBits = 7
	heightMask = uint64(1)<<heightBits - 1
	refShift   = heightBits
	removedBit = uint64(1) << 63
	refMask    = ^removedBit &^ heightMask

	// maxRefValue is the refcount field's all-ones value: the field this
	// package wraps around to if a subRef ever decrements past zero.
	maxRefValue = int(refMask >> refShift)
)

// Node is a single tower in the list: an immutable key/value pair plus a
// packed header word (height, refcount, removed flag) and a slice of
// tagged outgoing edges, one per level of its tower. Head is the same
// layout with K and V left at their zero values and a full-height tower;
// it is never itself returned to a caller.
//
// Packing height, refcount and the removed flag into one atomic word
// keeps "mark removed" and "adjust refcount" each a single CAS, which is
// what lets find() and unlink() cooperate without a lock: a goroutine
// that observes the removed bit set can always trust the refcount it read
// in the same load.
type Node[K constraints.Ordered, V any] struct {
	key K
	val V

	hdr atomic.Uint64

	levels []tagPtr[K, V]
}

func newNode[K constraints.Ordered, V any](key K, val V, height int) *Node[K, V] {
	if height < 1 || height > MaxHeight {
		panic("goskip: node height out of range")
	}
	n := &Node[K, V]{
		key:    key,
		val:    val,
		levels: make([]tagPtr[K, V], height),
	}
	n.hdr.Store(uint64(height))
	return n
}

func newHead[K constraints.Ordered, V any]() *Node[K, V] {
	return newNode[K, V](*new(K), *new(V), MaxHeight)
}

func (n *Node[K, V]) height() int {
	return int(n.hdr.Load() & heightMask)
}

func (n *Node[K, V]) refs() int {
	return int((n.hdr.Load() & refMask) >> refShift)
}

// addRef unconditionally increments the refcount; it is used when a new
// predecessor edge is about to start pointing at n.
func (n *Node[K, V]) addRef() int {
	old := n.hdr.Add(1 << refShift)
	return int((old & refMask) >> refShift)
}

// tryAddRef increments the refcount unless it is already zero, in which
// case n is already fully unlinked and must not be resurrected.
func (n *Node[K, V]) tryAddRef() bool {
	for {
		old := n.hdr.Load()
		if (old&refMask)>>refShift == 0 {
			return false
		}
		if n.hdr.CompareAndSwap(old, old+(1<<refShift)) {
			return true
		}
	}
}

// subRef decrements the refcount and returns the value after the
// decrement. A result of zero means no predecessor edge references n at
// any level any longer and it is safe to hand to the reclamation domain.
func (n *Node[K, V]) subRef() int {
	old := n.hdr.Add(^uint64(1<<refShift - 1))
	refs := int((old & refMask) >> refShift)
	if refs == maxRefValue {
		panic("goskip: refcount underflow")
	}
	return refs
}

func (n *Node[K, V]) removed() bool {
	return n.hdr.Load()&removedBit != 0
}

// setRemoved sets the removed flag if it is not already set. It reports
// whether this call is the one that set it, so exactly one caller ever
// proceeds to unlink a given node.
func (n *Node[K, V]) setRemoved() bool {
	for {
		old := n.hdr.Load()
		if old&removedBit != 0 {
			return false
		}
		if n.hdr.CompareAndSwap(old, old|removedBit) {
			return true
		}
	}
}

// tagLevels tags every outgoing edge of n, from the top of its tower
// down, marking each one as "n is being unlinked here". It stops and
// returns false at the first level whose tag was already set, which
// should never happen for a node whose removal this goroutine itself just
// won via setRemoved, hence the caller treats a false return as an
// invariant violation.
func (n *Node[K, V]) tagLevels(tag uint32) (ok bool) {
	for level := n.height() - 1; level >= 0; level-- {
		if _, swapped := n.levels[level].compareExchangeTag(0, tag); !swapped {
			return false
		}
	}
	return true
}

// tryRemoveAndTag is the single entry point for removing a node: it wins
// the removed flag, then tags every level. Only the goroutine that wins
// setRemoved ever calls tagLevels. It returns false if n was already
// removed by someone else, and panics if tagLevels then fails, since that
// means an invariant was violated elsewhere.
func (n *Node[K, V]) tryRemoveAndTag() bool {
	if !n.setRemoved() {
		return false
	}
	if !n.tagLevels(1) {
		panic("goskip: tag_levels raced on a node that just won removal")
	}
	return true
}
