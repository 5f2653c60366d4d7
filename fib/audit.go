package fib

import "fmt"

// Audit walks the whole split-ordered list from hash_table[0] and verifies
// the structural invariants spec.md lists in §3: keys are non-decreasing
// (I1), every directory slot's sentinel precedes all of its bucket's data
// nodes (I2), and the live data-node count matches entries (I6). It is not
// part of the public hot path — BIRD's equivalent structural-consistency
// walk is a debug-only feature (SPEC_FULL.md §C) — and is intended for
// tests, not production call sites, since it is not safe to run
// concurrently with mutation (it takes no hazard pointer).
func (t *Table[K, V]) Audit() error {
	dir := t.dir.Load()
	var lastKey uint32
	first := true
	live := 0
	seenBucket := make(map[uint32]bool, dir.size())

	for curr := dir.load(0); curr != nil; curr = curr.nextPtr() {
		if !first && curr.key < lastKey {
			return fmt.Errorf("list key out of order: %d after %d", curr.key, lastKey)
		}
		lastKey = curr.key
		first = false

		if curr.isSentinel() {
			seenBucket[curr.bucket] = true
			if dir.load(curr.bucket) != curr {
				return fmt.Errorf("directory slot %d does not point at its own sentinel", curr.bucket)
			}
			continue
		}
		if curr.isMarked() {
			continue
		}
		live++
	}

	for b := uint32(0); b < dir.size(); b++ {
		s := dir.load(b)
		if s != nil && !seenBucket[b] {
			return fmt.Errorf("directory slot %d's sentinel is unreachable from the list", b)
		}
	}

	if live != t.Len() {
		return fmt.Errorf("entries counter %d does not match live node count %d", t.Len(), live)
	}
	return nil
}
