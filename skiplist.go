package goskip

import (
	"math/bits"
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

const (
	// defaultSeed seeds the xorshift generator used for random tower
	// heights when the caller does not supply one with WithSeed. Xorshift
	// requires a non-zero seed or it gets stuck at zero forever.
	defaultSeed = 0x9E3779B97F4A7C15

	listStateUsed = 8 + 8 + 8 // len + maxHeight + seed, one machine word each
	listStatePad  = cacheLineSize - listStateUsed%cacheLineSize
)

// listState groups the list's small set of frequently-touched counters on
// their own cache line, padded so they never share one with anything a
// concurrent reader is hammering on elsewhere in the struct.
type listState struct {
	len       atomic.Int64
	maxHeight atomic.Int64
	seed      atomic.Uint64
	_         [listStatePad]byte
}

// Option configures a List built with New.
type Option[K constraints.Ordered, V any] func(*listConfig[K, V])

type listConfig[K constraints.Ordered, V any] struct {
	seed          uint64
	heightCeiling int
	logger        Logger
	onRetire      func(K, V)
}

func defaultConfig[K constraints.Ordered, V any]() listConfig[K, V] {
	return listConfig[K, V]{
		seed:          defaultSeed,
		heightCeiling: MaxHeight,
		logger:        noopLogger{},
	}
}

// WithSeed fixes the PRNG seed used to pick random tower heights, making
// the sequence of heights (and so the exact tower shape) deterministic.
// Useful for tests; the PRNG's own quality is out of scope here, but
// seeding it deterministically is not.
func WithSeed[K constraints.Ordered, V any](seed uint64) Option[K, V] {
	return func(c *listConfig[K, V]) {
		if seed != 0 {
			c.seed = seed
		}
	}
}

// WithHeightCeiling caps how tall a tower may grow. It must be between 1
// and MaxHeight; values outside that range are clamped.
func WithHeightCeiling[K constraints.Ordered, V any](ceiling int) Option[K, V] {
	return func(c *listConfig[K, V]) {
		switch {
		case ceiling < 1:
			c.heightCeiling = 1
		case ceiling > MaxHeight:
			c.heightCeiling = MaxHeight
		default:
			c.heightCeiling = ceiling
		}
	}
}

// WithLogger sets the diagnostic sink used for rare, non-hot-path
// reclamation events.
func WithLogger[K constraints.Ordered, V any](logger Logger) Option[K, V] {
	return func(c *listConfig[K, V]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnRetire registers a callback invoked exactly once for every
// key/value pair that is fully unlinked and reclaimed. Go has no
// destructor to hang this off of, so this is the hook callers needing
// deterministic cleanup (closing a resource held in V, counting removals
// in tests) should use instead.
func WithOnRetire[K constraints.Ordered, V any](f func(key K, val V)) Option[K, V] {
	return func(c *listConfig[K, V]) {
		c.onRetire = f
	}
}

// List is a concurrent, lock-free, ordered map keyed by K. All exported
// methods are safe to call from any number of goroutines concurrently,
// with replace-on-insert semantics for duplicate keys.
type List[K constraints.Ordered, V any] struct {
	head   *Node[K, V]
	state  listState
	domain *domain[K, V]
	ceil   int
}

// New constructs an empty List.
func New[K constraints.Ordered, V any](opts ...Option[K, V]) *List[K, V] {
	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &List[K, V]{
		head:   newHead[K, V](),
		domain: newDomain[K, V](cfg.logger, cfg.onRetire),
		ceil:   cfg.heightCeiling,
	}
	l.state.seed.Store(cfg.seed)
	l.state.maxHeight.Store(1)
	return l
}

// Len returns the number of key/value pairs currently in the list.
func (l *List[K, V]) Len() int {
	return int(l.state.len.Load())
}

// IsEmpty reports whether the list currently holds no keys.
func (l *List[K, V]) IsEmpty() bool {
	return l.Len() == 0
}

// Close releases every key/value pair still held by the list, invoking
// WithOnRetire for each one regardless of any outstanding pause. Only
// call Close once nothing else can still be operating on the list.
func (l *List[K, V]) Close() {
	for n := l.head.levels[0].loadPtr(); n != nil; n = n.levels[0].loadPtr() {
		l.domain.retire(n)
	}
	l.domain.clear()
}

// genHeight picks a random tower height using an xorshift generator
// seeded at construction, clamped to the list's height ceiling and to one
// level taller than the tallest tower currently in the list - there is no
// benefit linking higher than that, since nothing could reach the new
// levels from the head in a single hop yet anyway.
func (l *List[K, V]) genHeight() int {
	seed := l.state.seed.Load()
	seed ^= seed << 13
	seed ^= seed >> 17
	seed ^= seed << 5
	l.state.seed.Store(seed)

	height := bits.TrailingZeros64(seed) + 1
	if height > l.ceil {
		height = l.ceil
	}
	for height > 1 && l.head.levels[height-2].loadPtr() == nil {
		height--
	}

	for {
		cur := l.state.maxHeight.Load()
		if int64(height) <= cur {
			break
		}
		if l.state.maxHeight.CompareAndSwap(cur, int64(height)) {
			break
		}
	}
	return height
}

// unlinkLevel removes node from prev's level-th edge, replacing it with
// newNext, and reports whether this call made the swap. Called both while
// actively removing a node and while a search helps finish a removal
// someone else started. The CAS fails either because another goroutine
// already swung prev's edge, or because prev is itself being removed and
// its tagged edge can no longer be swapped at all; a caller that still has
// to get past node therefore moves to a fresh position before retrying.
func (l *List[K, V]) unlinkLevel(prev, node, newNext *Node[K, V], level int) bool {
	if !prev.levels[level].compareExchange(node, newNext) {
		return false
	}
	if node.subRef() == 0 {
		l.domain.retire(node)
	}
	return true
}

// find locates key, returning the predecessor at every level (used as
// insertion/removal hints) and the node itself if present. Any tagged
// edge crossed along the way is helped along before the search continues
// past it, so a long-dormant removal never blocks a live search forever;
// if helping fails, the search restarts from the head.
func (l *List[K, V]) find(key K) (prev [MaxHeight]*Node[K, V], target *Node[K, V]) {
	for i := range prev {
		prev[i] = l.head
	}

	curr := l.head
	level := int(l.state.maxHeight.Load())
	for level > 1 && l.head.levels[level-1].loadPtr() == nil {
		level--
	}

	for ; level > 0; level-- {
		idx := level - 1
		for {
			next := curr.levels[idx].loadPtr()
			if next == nil {
				break
			}
			if _, tag := next.levels[idx].loadDecomposed(); tag != 0 {
				newNext := next.levels[idx].loadPtr()
				if !l.unlinkLevel(curr, next, newNext, idx) {
					return l.find(key)
				}
				continue
			}
			if compare(next.key, key) < 0 {
				curr = next
				continue
			}
			break
		}
		prev[idx] = curr
	}

	if next := curr.levels[0].loadPtr(); next != nil && compare(next.key, key) == 0 {
		target = next
	}
	return prev, target
}

// nextNode returns the first live node reachable from cur's level-0 edge,
// helping unlink any tagged nodes it has to step over. When cur is itself
// being removed, tagged nodes after it are stepped over along its edge
// without helping. Passing the head node walks from the very beginning of
// the list.
func (l *List[K, V]) nextNode(cur *Node[K, V]) *Node[K, V] {
	for {
		next := cur.levels[0].loadPtr()
		if next == nil {
			return nil
		}
		if _, tag := next.levels[0].loadDecomposed(); tag == 0 {
			return next
		}
		newNext := next.levels[0].loadPtr()
		if !l.unlinkLevel(cur, next, newNext, 0) && cur.levels[0].loadTag() != 0 {
			cur = next
		}
	}
}

// lastNode returns the right-most live node in the list, or nil if the
// list is empty.
func (l *List[K, V]) lastNode() *Node[K, V] {
	curr := l.head
	level := int(l.state.maxHeight.Load())
	for level > 1 && l.head.levels[level-1].loadPtr() == nil {
		level--
	}
	for ; level > 0; level-- {
		idx := level - 1
		for {
			next := curr.levels[idx].loadPtr()
			if next == nil {
				break
			}
			if _, tag := next.levels[idx].loadDecomposed(); tag != 0 {
				newNext := next.levels[idx].loadPtr()
				if !l.unlinkLevel(curr, next, newNext, idx) {
					return l.lastNode()
				}
				continue
			}
			curr = next
		}
	}
	if curr == l.head {
		return nil
	}
	return curr
}

// linkNodes links newNode into the tower at every level from startLevel
// up to its own height, using prev as positional hints. It stops and
// returns the level at which a hint went stale (the key bucket it was
// pointed at no longer immediately precedes newNode) so the caller can
// re-search from there, or -1 once every level is linked or newNode has
// been unlinked by a racing remover before publication finished.
func (l *List[K, V]) linkNodes(newNode *Node[K, V], prev *[MaxHeight]*Node[K, V], startLevel int) int {
	height := newNode.height()
	for lvl := startLevel; lvl < height; lvl++ {
		if newNode.removed() {
			return -1
		}
		p := prev[lvl]
		next := p.levels[lvl].loadPtr()
		if next != nil && compare(next.key, newNode.key) <= 0 {
			return lvl
		}
		newNode.levels[lvl].storeComposed(next, 0)
		if lvl == 0 {
			newNode.addRef()
		} else if !newNode.tryAddRef() {
			return -1
		}
		if !p.levels[lvl].compareExchange(next, newNode) {
			newNode.subRef()
			return lvl
		}
	}
	return -1
}

// unlink removes node from every level of the list, using prev as
// positional hints, decrements the list length, and makes a best-effort
// attempt to drain anything the reclamation domain can now safely free.
// A level this goroutine fails to unlink, because another goroutine
// already unlinked it or because the hint in prev was stale, is not
// retried here: node's edges are tagged, so find, nextNode and lastNode
// unlink it when they next cross it.
func (l *List[K, V]) unlink(node *Node[K, V], prev *[MaxHeight]*Node[K, V]) {
	if node == l.head {
		panic("goskip: attempted to unlink the head node")
	}
	for lvl := node.height() - 1; lvl >= 0; lvl-- {
		next := node.levels[lvl].loadPtr()
		l.unlinkLevel(prev[lvl], node, next, lvl)
	}
	l.state.len.Add(-1)
	l.domain.tryClear()
}

// Insert adds key/val to the list, replacing and returning any entry that
// previously held key.
func (l *List[K, V]) Insert(key K, val V) *Entry[K, V] {
	p := l.domain.pin()

	prev, target := l.find(key)
	var old *Node[K, V]
	for target != nil {
		if target.tryRemoveAndTag() {
			if old == nil {
				old = target
			}
			l.unlink(target, &prev)
		}
		prev, target = l.find(key)
	}

	node := newNode[K, V](key, val, l.genHeight())
	l.state.len.Add(1)

	startLevel := 0
	for {
		failedAt := l.linkNodes(node, &prev, startLevel)
		if failedAt < 0 {
			break
		}
		var dupTarget *Node[K, V]
		prev, dupTarget = l.find(key)
		for dupTarget != nil && dupTarget != node {
			if dupTarget.tryRemoveAndTag() {
				if old == nil {
					old = dupTarget
				}
				l.unlink(dupTarget, &prev)
			}
			prev, dupTarget = l.find(key)
		}
		startLevel = failedAt
	}

	if node.removed() {
		// A racing remover saw us via a lower level and tagged us before
		// we finished publishing every level; help finish that removal
		// so no level is left dangling.
		l.find(key)
	}

	if old == nil {
		p.release()
		return nil
	}
	return newEntry(l, old, p)
}

// Remove deletes key from the list if present, returning the removed
// entry or nil if key was not found.
func (l *List[K, V]) Remove(key K) *Entry[K, V] {
	p := l.domain.pin()
	prev, target := l.find(key)
	if target == nil {
		p.release()
		return nil
	}
	if !target.tryRemoveAndTag() {
		p.release()
		return nil
	}
	l.unlink(target, &prev)
	return newEntry(l, target, p)
}

// Get returns the entry for key, or nil if key is not present.
func (l *List[K, V]) Get(key K) *Entry[K, V] {
	p := l.domain.pin()
	_, target := l.find(key)
	if target == nil {
		p.release()
		return nil
	}
	return newEntry(l, target, p)
}

// GetFirst returns the entry with the smallest key, or nil if the list is
// empty.
func (l *List[K, V]) GetFirst() *Entry[K, V] {
	p := l.domain.pin()
	n := l.nextNode(l.head)
	if n == nil {
		p.release()
		return nil
	}
	return newEntry(l, n, p)
}

// GetLast returns the entry with the largest key, or nil if the list is
// empty.
func (l *List[K, V]) GetLast() *Entry[K, V] {
	p := l.domain.pin()
	n := l.lastNode()
	if n == nil {
		p.release()
		return nil
	}
	return newEntry(l, n, p)
}

// PopFirst removes and returns the entry with the smallest key, or nil if
// the list is empty.
func (l *List[K, V]) PopFirst() *Entry[K, V] {
	for {
		p := l.domain.pin()
		n := l.nextNode(l.head)
		if n == nil {
			p.release()
			return nil
		}
		if !n.tryRemoveAndTag() {
			p.release()
			continue
		}
		var prev [MaxHeight]*Node[K, V]
		for i := range prev {
			prev[i] = l.head
		}
		l.unlink(n, &prev)
		return newEntry(l, n, p)
	}
}

// PopLast removes and returns the entry with the largest key, or nil if
// the list is empty.
func (l *List[K, V]) PopLast() *Entry[K, V] {
	for {
		p := l.domain.pin()
		n := l.lastNode()
		if n == nil {
			p.release()
			return nil
		}
		if !n.tryRemoveAndTag() {
			p.release()
			continue
		}
		prev, _ := l.find(n.key)
		l.unlink(n, &prev)
		return newEntry(l, n, p)
	}
}
