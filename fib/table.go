package fib

import (
	"sync/atomic"

	"github.com/semihalev/zlog/v2"
)

// DefaultHashOrder is used when Table is constructed with hashOrder 0,
// giving an initial directory of 1024 buckets (spec.md §6).
const DefaultHashOrder = 10

// Table is a concurrent forwarding information base for one address
// family. All operations are safe for concurrent use, including
// concurrently with Walk and Iterator.
type Table[K Key[K], V any] struct {
	family Family

	dir atomic.Pointer[directory[K, V]]

	entries    atomic.Int64
	entriesMax atomic.Int64
	resizing   atomic.Bool

	hz hazardRegistry[K, V]
	rq reclaimQueue[K, V]

	rehashes atomic.Int64

	onInsert func(Handle[K, V])

	stopReclaim chan struct{}
	reclaimDone chan struct{}
}

// Options configures a Table beyond its address family.
type Options[K Key[K], V any] struct {
	// HashOrder sets the initial directory size to 2^HashOrder buckets.
	// Zero means DefaultHashOrder (spec.md §6 hash_order).
	HashOrder uint32

	// ReclaimInterval controls how often the background reclaimer sweeps
	// the retired list (spec.md §4.10, "tens of seconds" default).
	ReclaimInterval func() int64 // seconds; nil means reclaimDefaultIntervalSeconds

	// OnInsert, if non-nil, runs after a new node is published by Get's
	// CAS and before Get returns (spec.md §4.6 "invoke the optional
	// constructor on the user side").
	OnInsert func(Handle[K, V])
}

// New constructs a Table for the given address family and starts its
// background reclaimer goroutine. Callers must call Free when done to
// stop the reclaimer and release retired nodes.
func New[K Key[K], V any](family Family, opts Options[K, V]) *Table[K, V] {
	order := opts.HashOrder
	if order == 0 {
		order = DefaultHashOrder
	}

	dir := newDirectory[K, V](order)
	root := newSentinel[K, V](0)
	root.addLink()
	dir.slots[0].Store(root)

	t := &Table[K, V]{
		family:      family,
		onInsert:    opts.OnInsert,
		stopReclaim: make(chan struct{}),
		reclaimDone: make(chan struct{}),
	}
	t.dir.Store(dir)
	t.entriesMax.Store(int64(dir.size()) * 2)

	var interval int64 = reclaimDefaultIntervalSeconds
	if opts.ReclaimInterval != nil {
		interval = opts.ReclaimInterval()
	}
	go t.runReclaimer(interval)

	return t
}

// Len returns the number of distinct keys currently in the table
// (spec.md I6).
func (t *Table[K, V]) Len() int {
	return int(t.entries.Load())
}

// Family returns the address family this table was constructed for.
func (t *Table[K, V]) Family() Family { return t.family }

// Stats is a point-in-time snapshot for diagnostics and the Prometheus
// collector (SPEC_FULL.md §C).
type Stats struct {
	Entries      int
	HashOrder    uint32
	HashSize     uint32
	Resizing     bool
	Rehashes     int64
	HazardInUse  int
	RetiredDepth int
}

func (t *Table[K, V]) Stats() Stats {
	dir := t.dir.Load()
	return Stats{
		Entries:      t.Len(),
		HashOrder:    dir.order,
		HashSize:     dir.size(),
		Resizing:     t.resizing.Load(),
		Rehashes:     t.rehashes.Load(),
		HazardInUse:  t.hz.occupied(),
		RetiredDepth: t.rq.depth(),
	}
}

func (t *Table[K, V]) checkFamily(k K) {
	if k.Family() != t.family {
		zlog.Error("fib address family mismatch",
			zlog.String("table_family", t.family.String()),
			zlog.String("key_family", k.Family().String()))
		panic("fib: address family mismatch")
	}
}

// Free signals the background reclaimer to stop and blocks until it has
// drained the retired list and torn down remaining nodes (spec.md §4.10).
// The table must not be used after Free returns.
func (t *Table[K, V]) Free() {
	close(t.stopReclaim)
	<-t.reclaimDone
}
