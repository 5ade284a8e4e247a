package goskip

import "golang.org/x/exp/constraints"

// Entry is a protected handle onto a single key/value pair observed in a
// List. It stays valid to read for as long as the caller holds it: other
// goroutines may remove the node it wraps from the list meanwhile, but the
// node is never finalized until the entry is released.
type Entry[K constraints.Ordered, V any] struct {
	list *List[K, V]
	node *Node[K, V]
	p    pause[K, V]
}

func newEntry[K constraints.Ordered, V any](list *List[K, V], n *Node[K, V], p pause[K, V]) *Entry[K, V] {
	return &Entry[K, V]{list: list, node: n, p: p}
}

// Key returns the key this entry was found at.
func (e *Entry[K, V]) Key() K {
	return e.node.key
}

// Val returns the value this entry was found with. If the entry has
// since been replaced by a later Insert, this is still the value that
// was present at the moment this entry was obtained.
func (e *Entry[K, V]) Val() V {
	return e.node.val
}

// Remove removes this entry's key from the list if it is still present
// and has not already been removed by someone else. It returns itself on
// success and nil if it lost the race to another remover.
func (e *Entry[K, V]) Remove() *Entry[K, V] {
	if !e.node.tryRemoveAndTag() {
		return nil
	}
	prev, _ := e.list.find(e.node.key)
	e.list.unlink(e.node, &prev)
	return e
}

// Release lets go of the pause backing this entry. A List operation that
// returns an entry hands it the pause that operation acquired, and that
// pause stays pinned until Release is called; until then the reclamation
// domain finalizes nothing retired at or after its epoch. Call Release
// once per entry.
func (e *Entry[K, V]) Release() {
	e.p.release()
}
