package fib

import (
	"sync/atomic"

	"github.com/semihalev/zlog/v2"
)

// directory is the power-of-two bucket array described in spec.md §3
// ("Bucket directory"). It is swapped wholesale on expansion, so readers
// always dereference a consistent snapshot via Table.dir.Load().
type directory[K any, V any] struct {
	slots []atomic.Pointer[fibNode[K, V]]
	order uint32 // hash_order: log2(len(slots))
	shift uint32 // 32 - order, kept per original_source/lib/fib.h layout
}

func newDirectory[K any, V any](order uint32) *directory[K, V] {
	size := uint32(1) << order
	d := &directory[K, V]{
		slots: make([]atomic.Pointer[fibNode[K, V]], size),
		order: order,
		shift: 32 - order,
	}
	return d
}

func (d *directory[K, V]) size() uint32 { return uint32(len(d.slots)) }
func (d *directory[K, V]) mask() uint32 { return d.size() - 1 }

func (d *directory[K, V]) load(bucket uint32) *fibNode[K, V] {
	return d.slots[bucket].Load()
}

func (d *directory[K, V]) casStore(bucket uint32, old, new *fibNode[K, V]) bool {
	return d.slots[bucket].CompareAndSwap(old, new)
}

// ensureSentinel returns the sentinel for bucket, creating (and linking
// into the split-ordered list) it and every ancestor it lazily needs, per
// spec.md §4.4 insert_sentinel. row is the caller's already-reserved hazard
// slot, which insertSentinelLocked uses for its list walk.
func (t *Table[K, V]) ensureSentinel(row int, bucket uint32) *fibNode[K, V] {
	if s := t.dir.Load().load(bucket); s != nil {
		return s
	}
	if bucket != 0 {
		parent := parentBucket(bucket, t.dir.Load().size())
		t.ensureSentinel(row, parent)
	}
	return t.insertSentinelLocked(row, bucket)
}

// insertSentinelLocked implements spec.md §4.4 insert_sentinel steps 2-4.
func (t *Table[K, V]) insertSentinelLocked(row int, bucket uint32) *fibNode[K, V] {
	key := reverseBits(bucket)
	var candidate *fibNode[K, V]

	for {
		dir := t.dir.Load()
		if s := dir.load(bucket); s != nil {
			return s
		}

		parent := parentBucket(bucket, dir.size())
		curr := dir.load(parent)
		if curr == nil {
			// Ancestor vanished under a concurrent rehash race window;
			// recurse to rebuild it, then retry this bucket.
			curr = t.ensureSentinel(row, parent)
		}

		for {
			t.hz.setCurr(row, curr)
			succ := curr.nextPtr()
			t.hz.setSucc(row, succ)
			if succ != nil && succ.key < key {
				curr = succ
				continue
			}
			if succ != nil && succ.isSentinel() && succ.key == key {
				// Another thread already published this sentinel.
				return succ
			}

			if candidate == nil {
				candidate = newSentinel[K, V](bucket)
			}
			candidate.next.Store(succ)
			if curr.next.CompareAndSwap(succ, candidate) {
				candidate.addLink()
				if dir.casStore(bucket, nil, candidate) {
					return candidate
				}
				// Lost the directory publish race; whoever won already
				// has it installed (or a rehash swapped the directory
				// out from under us). Re-read and return the winner.
				if s := t.dir.Load().load(bucket); s != nil {
					return s
				}
			}
			break // CAS on curr.next failed or directory publish raced; retry from top
		}
	}
}

// maybeRehash triggers expansion once entries reaches entries_max
// (spec.md §4.9). Only one thread wins the resizing exchange; the rest
// continue their own operation and simply see the larger table on their
// next directory load.
func (t *Table[K, V]) maybeRehash() {
	dir := t.dir.Load()
	if t.entries.Load() < t.entriesMax.Load() {
		return
	}
	if !t.resizing.CompareAndSwap(false, true) {
		return
	}
	defer t.resizing.Store(false)

	// Re-check: another goroutine may have already grown the table while
	// we were winning the exchange.
	if t.dir.Load() != dir {
		return
	}

	oldSize := dir.size()
	newOrder := dir.order + 1
	next := newDirectory[K, V](newOrder)
	for i := uint32(0); i < oldSize; i++ {
		next.slots[i].Store(dir.slots[i].Load())
	}

	zlog.Info("fib rehash",
		zlog.Int("old_size", int(oldSize)),
		zlog.Int("new_size", int(next.size())))

	t.dir.Store(next)
	t.entriesMax.Store(int64(next.size()) * 2)
	t.rehashes.Add(1)

	zlog.Info("fib rehash complete",
		zlog.Int("hash_order", int(next.order)))
}
