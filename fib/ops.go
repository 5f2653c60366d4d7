package fib

import "github.com/semihalev/zlog/v2"

// Find performs a pure lookup (spec.md §4.5). It has no side effects other
// than possibly publishing a bucket sentinel lazily.
func (t *Table[K, V]) Find(k K) (Handle[K, V], bool) {
	t.checkFamily(k)
	row := t.hz.reserveSlot()
	defer t.hz.releaseSlot(row)

	hash := k.Hash()

restart:
	bucket := hash & t.dir.Load().mask()
	sentinel := t.ensureSentinel(row, bucket)

	key := reverseBits(hash)
	curr := sentinel
	t.hz.setCurr(row, curr)

	for {
		succ := curr.nextPtr()
		t.hz.setSucc(row, succ)
		if succ == nil || succ.key > key {
			return Handle[K, V]{}, false
		}
		if succ.isMarked() {
			// Ghost: a concurrent unlink is in flight. Restart from the
			// bucket sentinel per spec.md §4.5.
			goto restart
		}
		if succ.key == key && !succ.isSentinel() && succ.k.Equal(k) {
			return Handle[K, V]{node: succ}, true
		}
		curr = succ
		t.hz.setCurr(row, curr)
	}
}

// Get returns the handle for k, inserting a new zero-valued entry first if
// none exists (spec.md §4.6). The returned bool reports whether this call
// inserted the entry (false means an existing entry was found).
func (t *Table[K, V]) Get(k K) (h Handle[K, V], inserted bool) {
	t.checkFamily(k)
	t.maybeRehash()

	row := t.hz.reserveSlot()
	defer t.hz.releaseSlot(row)

	hash := k.Hash()

	for {
		bucket := hash & t.dir.Load().mask()
		sentinel := t.ensureSentinel(row, bucket)

		curr, succ, dup := t.findInsertPoint(row, sentinel, hash, k)
		if dup != nil {
			if dup.isMarked() {
				continue // concurrent delete raced us; retry whole op
			}
			return Handle[K, V]{node: dup}, false
		}

		newNode := newDataNode[K, V](k, hash)
		newNode.next.Store(succ)
		if !curr.next.CompareAndSwap(succ, newNode) {
			continue
		}

		t.entries.Add(1)
		newNode.addLink()
		if t.onInsert != nil {
			t.onInsert(Handle[K, V]{node: newNode})
		}
		return Handle[K, V]{node: newNode}, true
	}
}

// Route performs longest-prefix match (spec.md §4.7): it repeatedly
// shortens a local copy of k's prefix length and clears the newly
// uncovered bit, trying Find at each length, until a hit or length 0.
// The caller's k is never mutated (SPEC_FULL.md §D).
func (t *Table[K, V]) Route(k K) (Handle[K, V], bool) {
	t.checkFamily(k)

	lpm, ok := any(k).(LPMKey[K])
	if !ok {
		// k's type doesn't support length-based shortening (e.g. an
		// exact-match VPN/Flow/ROA key); Find is the only defined
		// behavior for it.
		return t.Find(k)
	}

	cur := k // Route never mutates the caller's k; cur is a local copy
	// that gets reassigned to each successively-shortened value.
	length := lpm.PrefixLen()
	for {
		if h, found := t.Find(cur); found {
			return h, true
		}
		if length == 0 {
			return Handle[K, V]{}, false
		}
		length--
		cur = any(cur).(LPMKey[K]).Shorten(length)
	}
}

// LPMKey is implemented by key types that support Route's longest-prefix
// decrement loop (spec.md §4.7): IPv4-family and IPv6-family prefixes.
// Keys that don't implement it (e.g. exact-match VPN/Flow/ROA types) fall
// back to plain Find from Route.
type LPMKey[K any] interface {
	// PrefixLen returns the current prefix length in bits.
	PrefixLen() int
	// Shorten returns a copy of the key truncated to n bits, with the
	// newly uncovered bit cleared, per spec.md §4.7.
	Shorten(n int) K
}

// Delete removes the entry referenced by h (spec.md §4.8). Returns true
// iff this call performed the removal; a nil/zero handle always returns
// false.
func (t *Table[K, V]) Delete(h Handle[K, V]) bool {
	if !h.valid() {
		return false
	}
	node := h.node
	if !node.markDeleted() {
		return false
	}

	row := t.hz.reserveSlot()
	defer t.hz.releaseSlot(row)

	bucket := node.hashOf & t.dir.Load().mask()
	sentinel := t.ensureSentinel(row, bucket)

	for {
		curr := sentinel
		t.hz.setCurr(row, curr)
		found := false
		for {
			succ := curr.nextPtr()
			t.hz.setSucc(row, succ)
			if succ == nil {
				break
			}
			if succ == node {
				found = true
				break
			}
			curr = succ
			t.hz.setCurr(row, curr)
		}

		if !found {
			zlog.Error("fib delete: handle not reachable from its bucket")
			panic("fib: delete invariant violation — foreign or already-unlinked handle")
		}

		unmarked := node.nextPtr()
		if curr.next.CompareAndSwap(node, unmarked) {
			node.removeLink()
			if unmarked != nil {
				unmarked.addLink()
			}
			t.entries.Add(-1)
			t.rq.push(node)
			return true
		}
		// Predecessor changed underneath us; re-walk from the sentinel.
	}
}
