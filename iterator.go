package goskip

import (
	"iter"

	"golang.org/x/exp/constraints"
)

// Iterator walks a List from the smallest key to the largest. It is
// weakly consistent: a concurrent insert or removal elsewhere in the
// list may or may not be observed depending on timing, but the iterator
// itself never returns a node that has been finalized and never revisits
// a key it has already returned.
type Iterator[K constraints.Ordered, V any] struct {
	list *List[K, V]
	cur  *Entry[K, V]
	done bool
}

// Iter starts a new Iterator positioned before the first entry.
func (l *List[K, V]) Iter() *Iterator[K, V] {
	return &Iterator[K, V]{list: l}
}

// Next advances the iterator and returns the next entry, or nil once the
// list is exhausted. The Entry returned by the previous call is released
// automatically; callers that need to keep an earlier entry alive should
// have copied out what they needed from it already.
func (it *Iterator[K, V]) Next() *Entry[K, V] {
	if it.done {
		return nil
	}

	p := it.list.domain.pin()
	var from *Node[K, V]
	if it.cur == nil {
		from = it.list.head
	} else {
		from = it.cur.node
	}
	next := it.list.nextNode(from)

	if it.cur != nil {
		it.cur.Release()
	}
	if next == nil {
		it.done = true
		it.cur = nil
		p.release()
		return nil
	}
	it.cur = newEntry(it.list, next, p)
	return it.cur
}

// Close releases the pause backing the iterator's current position, if
// any. Safe to call on an exhausted or never-advanced iterator.
func (it *Iterator[K, V]) Close() {
	if it.cur != nil {
		it.cur.Release()
		it.cur = nil
	}
	it.done = true
}

// OwningIterator consumes a List, handing out every key/value pair
// exactly once in ascending order and detaching them from the list as it
// goes. Obtaining one via IntoIter leaves the list empty; nothing else
// may operate on the list concurrently with the returned iterator.
type OwningIterator[K constraints.Ordered, V any] struct {
	list *List[K, V]
	cur  *Node[K, V]
}

// IntoIter detaches every node from l and returns an iterator over them,
// leaving l empty. Requires exclusive access to l: no other goroutine may
// be calling any List method concurrently.
func (l *List[K, V]) IntoIter() *OwningIterator[K, V] {
	first := l.head.levels[0].loadPtr()
	for i := range l.head.levels {
		l.head.levels[i].storeComposed(nil, 0)
	}
	l.state.len.Store(0)
	return &OwningIterator[K, V]{list: l, cur: first}
}

// Next returns the next key/value pair in ascending order, or ok=false
// once every pair has been consumed.
func (it *OwningIterator[K, V]) Next() (key K, val V, ok bool) {
	if it.cur == nil {
		it.list.domain.clear()
		return key, val, false
	}
	n := it.cur
	it.cur = n.levels[0].loadPtr()
	n.levels = nil
	return n.key, n.val, true
}

// Seq adapts the owning iterator to Go's iter.Seq2, so it can be ranged
// over directly: for k, v := range list.IntoIter().Seq() { ... }
func (it *OwningIterator[K, V]) Seq() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for {
			k, v, ok := it.Next()
			if !ok || !yield(k, v) {
				return
			}
		}
	}
}

// FromSeq builds a new List by inserting every pair produced by seq, in
// the order seq produces them. This is the Go-idiomatic analogue of
// building a list from an arbitrary iterator: a later duplicate key
// replaces an earlier one, matching Insert's own replace semantics.
func FromSeq[K constraints.Ordered, V any](seq iter.Seq2[K, V]) *List[K, V] {
	l := New[K, V]()
	for k, v := range seq {
		l.Insert(k, v)
	}
	return l
}
