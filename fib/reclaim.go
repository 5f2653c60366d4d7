package fib

import (
	"sync/atomic"
	"time"

	"github.com/semihalev/zlog/v2"
	"golang.org/x/time/rate"
)

// reclaimDefaultIntervalSeconds is the background reclaimer's default
// sweep period (spec.md §4.10, "sleeps between passes (tens of
// seconds)").
const reclaimDefaultIntervalSeconds = 30

// retired is one entry in the retired list (spec.md §3 "Retired list"). It
// wraps the unlinked data node so the reclaimer can walk/unwind the queue
// independently of the live split-ordered list. The list is linked through
// next only: prev is never set, and sweep tracks each entry's predecessor
// itself while walking.
type retired[K any, V any] struct {
	node *fibNode[K, V]
	next atomic.Pointer[retired[K, V]]
	prev *retired[K, V] // reclaimer-thread-only; never touched concurrently
}

// reclaimQueue is a lock-free stack (CAS on head) of retired nodes awaiting
// safe reclamation. Only the background reclaimer goroutine ever walks
// past the head or frees entries (spec.md §5 "Only the reclaimer frees
// nodes").
type reclaimQueue[K any, V any] struct {
	head  atomic.Pointer[retired[K, V]]
	count atomic.Int64
}

func (q *reclaimQueue[K, V]) push(n *fibNode[K, V]) {
	r := &retired[K, V]{node: n}
	for {
		head := q.head.Load()
		r.next.Store(head)
		if q.head.CompareAndSwap(head, r) {
			q.count.Add(1)
			return
		}
	}
}

func (q *reclaimQueue[K, V]) depth() int {
	return int(q.count.Load())
}

// runReclaimer is the single background worker described in spec.md
// §4.10: it periodically scans the retired list and frees any node whose
// refcount is zero and which no hazard pointer protects. It stops when
// stopReclaim is closed, then performs final teardown before closing
// reclaimDone (Free blocks on that signal).
func (t *Table[K, V]) runReclaimer(intervalSeconds int64) {
	defer close(t.reclaimDone)

	interval := time.Duration(intervalSeconds) * time.Second
	if interval <= 0 {
		interval = reclaimDefaultIntervalSeconds * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logLimiter := &rate.Sometimes{Interval: time.Minute}

	for {
		select {
		case <-t.stopReclaim:
			t.sweep(logLimiter)
			t.teardown()
			return
		case <-ticker.C:
			t.sweep(logLimiter)
		}
	}
}

// sweep performs one pass of the retired list, freeing every node that is
// safe to free per safeToFree: refcount 0 and not referenced directly by
// any hazard pointer (spec.md §4.10). It does not walk deletion-marked
// successors from the hazard pointers.
func (t *Table[K, V]) sweep(logLimiter *rate.Sometimes) {
	scanned, freed := 0, 0

	var prev *retired[K, V]
	curr := t.rq.head.Load()
	for curr != nil {
		scanned++
		next := curr.next.Load()

		if t.safeToFree(curr.node) {
			if t.unlinkRetired(prev, curr) {
				freed++
				curr.node = nil // release reference, let GC take it
				curr = next
				continue
			}
		}

		prev = curr
		curr = next
	}

	t.rq.count.Store(int64(t.countRetired()))

	if scanned > 0 {
		logLimiter.Do(func() {
			zlog.Debug("fib reclaimer pass",
				zlog.Int("scanned", scanned),
				zlog.Int("freed", freed))
		})
	}
}

func (t *Table[K, V]) countRetired() int {
	n := 0
	for curr := t.rq.head.Load(); curr != nil; curr = curr.next.Load() {
		n++
	}
	return n
}

// safeToFree implements spec.md §4.10's two-part check plus I5's "no live
// predecessor observable to any enumerator": a node is free-able once its
// refcount is 0 and no hazard slot's curr/succ pins it directly. A
// deletion-marked node can still be the curr of a suspended iterator (its
// own hazard pointer), which the refcount+hazard check already covers
// since markDeleted does not itself add a hazard reference — an iterator
// holding the node as curr always has it in its slot's curr pointer.
func (t *Table[K, V]) safeToFree(n *fibNode[K, V]) bool {
	if n.refcount() != 0 {
		return false
	}
	return !t.hz.protects(n)
}

// unlinkRetired removes curr from the retired list. prev nil means curr is
// (or was) the head.
func (t *Table[K, V]) unlinkRetired(prev, curr *retired[K, V]) bool {
	next := curr.next.Load()
	if prev == nil {
		return t.rq.head.CompareAndSwap(curr, next)
	}
	prev.next.Store(next)
	return true
}

// teardown runs once, after stopReclaim fires: it frees whatever remains
// in the retired list and drops the directory's sentinel chain,
// completing fib_free's "final tear-down of buckets and retired list"
// (spec.md §4.10).
func (t *Table[K, V]) teardown() {
	curr := t.rq.head.Load()
	for curr != nil {
		curr.node = nil
		curr = curr.next.Load()
	}
	t.rq.head.Store(nil)
	t.rq.count.Store(0)
	t.dir.Store(newDirectory[K, V](0))
}
