package fib

import "iter"

// Walk exposes every live data node exactly once to the caller, safe to
// run concurrently with mutation (spec.md §4.11 "Walker"). It reserves one
// hazard slot for its entire lifetime; the node currently yielded is
// itself the hazard pointer, so it cannot be freed while the caller's body
// is examining it. Do not mutate the table from inside the yielded body;
// spec.md calls that undefined.
func (t *Table[K, V]) Walk() iter.Seq[Handle[K, V]] {
	return func(yield func(Handle[K, V]) bool) {
		row := t.hz.reserveSlot()
		defer t.hz.releaseSlot(row)

		curr := t.dir.Load().load(0)
		t.hz.setCurr(row, curr)
		for curr != nil {
			next := curr.nextPtr()
			t.hz.setSucc(row, next)

			if !curr.isSentinel() && !curr.isMarked() {
				if !yield(Handle[K, V]{node: curr}) {
					return
				}
			}

			curr = next
			t.hz.setCurr(row, curr)
			t.hz.setSucc(row, nil)
		}
	}
}

// Iterator is the resumable counterpart to Walk (spec.md §4.11): the
// caller may suspend between Next calls, across which the iterator keeps
// its hazard slot reserved and its cursor pinned, so the node it is
// positioned on cannot be reclaimed. Exactly one goroutine may drive a
// given Iterator at a time.
type Iterator[K Key[K], V any] struct {
	t    *Table[K, V]
	row  int
	curr *fibNode[K, V]
	done bool
}

// NewIterator starts an iterator positioned before the first data node and
// reserves its hazard slot. Call Unlink when finished, even if Next was
// never called, to release the slot.
func (t *Table[K, V]) NewIterator() *Iterator[K, V] {
	row := t.hz.reserveSlot()
	it := &Iterator[K, V]{t: t, row: row, curr: t.dir.Load().load(0)}
	t.hz.setCurr(row, it.curr)
	return it
}

// Next advances to the next live, non-sentinel data node, skipping any
// node that has since been deletion-marked (spec.md §4.11 RESUME).
// Returns false once the list is exhausted; the iterator is still valid to
// Unlink afterward but Next will keep returning false.
func (it *Iterator[K, V]) Next() (Handle[K, V], bool) {
	if it.done {
		return Handle[K, V]{}, false
	}
	for it.curr != nil {
		next := it.curr.nextPtr()
		it.t.hz.setSucc(it.row, next)

		candidate := it.curr
		it.curr = next
		it.t.hz.setCurr(it.row, it.curr)
		it.t.hz.setSucc(it.row, nil)

		if !candidate.isSentinel() && !candidate.isMarked() {
			return Handle[K, V]{node: candidate}, true
		}
	}
	it.done = true
	return Handle[K, V]{}, false
}

// PutNext advances the cursor to h's successor without yielding it,
// for callers that want to delete the node they just visited and continue
// from where it was (spec.md §4.11 PUT-NEXT).
func (it *Iterator[K, V]) PutNext(h Handle[K, V]) {
	it.curr = h.node.nextPtr()
	it.t.hz.setCurr(it.row, it.curr)
}

// Unlink cancels the iterator and releases its hazard slot. After Unlink,
// the iterator must not be used again.
func (it *Iterator[K, V]) Unlink() {
	if it.row >= 0 {
		it.t.hz.releaseSlot(it.row)
		it.row = -1
	}
}

// Copy duplicates it's cursor into a freshly-reserved Iterator without
// disturbing it (spec.md §4.11 COPY).
func (it *Iterator[K, V]) Copy() *Iterator[K, V] {
	row := it.t.hz.reserveSlot()
	dup := &Iterator[K, V]{t: it.t, row: row, curr: it.curr, done: it.done}
	it.t.hz.setCurr(row, dup.curr)
	return dup
}
