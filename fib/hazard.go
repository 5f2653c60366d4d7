package fib

import "sync/atomic"

// MaxThreads bounds the number of simultaneously active hazard slots
// (spec.md §5, "up to MAX_THREADS (32) may be active in FIB operations
// simultaneously").
const MaxThreads = 32

// hazardSlot grants its holder two soft-link hazard pointers, curr and
// succ, used while traversing the split-ordered list (spec.md §3
// "Hazard registry"). Any node whose address currently appears in curr or
// succ of any reserved slot must not be freed (spec.md §4.3).
type hazardSlot[K any, V any] struct {
	reserved atomic.Bool
	curr     atomic.Pointer[fibNode[K, V]]
	succ     atomic.Pointer[fibNode[K, V]]
}

type hazardRegistry[K any, V any] struct {
	slots [MaxThreads]hazardSlot[K, V]
}

// reserveSlot spins across the fixed slot array attempting to win one by
// CAS, returning its index (spec.md §4.3). A real deployment never holds
// more than MaxThreads operations concurrently; exceeding it spins until
// one frees up, which is the documented contention behavior, not a bug.
func (r *hazardRegistry[K, V]) reserveSlot() int {
	for {
		for i := range r.slots {
			if r.slots[i].reserved.CompareAndSwap(false, true) {
				r.slots[i].curr.Store(nil)
				r.slots[i].succ.Store(nil)
				return i
			}
		}
	}
}

func (r *hazardRegistry[K, V]) releaseSlot(row int) {
	r.slots[row].curr.Store(nil)
	r.slots[row].succ.Store(nil)
	r.slots[row].reserved.Store(false)
}

func (r *hazardRegistry[K, V]) setCurr(row int, n *fibNode[K, V]) {
	r.slots[row].curr.Store(n)
}

func (r *hazardRegistry[K, V]) setSucc(row int, n *fibNode[K, V]) {
	r.slots[row].succ.Store(n)
}

// protects reports whether n is currently pinned by any reserved slot's
// hazard pointers, guarding it against reclamation (spec.md §4.3 and I5).
func (r *hazardRegistry[K, V]) protects(n *fibNode[K, V]) bool {
	for i := range r.slots {
		if !r.slots[i].reserved.Load() {
			continue
		}
		if r.slots[i].curr.Load() == n || r.slots[i].succ.Load() == n {
			return true
		}
	}
	return false
}

// occupied returns the number of currently-reserved slots, for metrics.
func (r *hazardRegistry[K, V]) occupied() int {
	n := 0
	for i := range r.slots {
		if r.slots[i].reserved.Load() {
			n++
		}
	}
	return n
}
