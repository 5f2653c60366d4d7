package fib

import "sync/atomic"

// Key is the external collaborator every node is ordered and matched by.
// Implementations (see bird/addr) own hashing, equality, byte length and
// copying; fib itself never inspects key bytes directly.
type Key[K any] interface {
	// Hash returns a 32-bit hash of the key. Used to place the key in a
	// bucket and to order it in the split-ordered list.
	Hash() uint32
	// Equal reports whether the key denotes the same route as other.
	// Called only when two keys already share a hash, per spec.md §4.4.
	Equal(other K) bool
	// Family identifies the address family this key belongs to; Table is
	// constructed for exactly one family and asserts it on every key it
	// is handed (spec.md §7, "address-type mismatch").
	Family() Family
}

// fibNode is one entry in the split-ordered list: either a bucket sentinel
// (key-less, Key is the zero value and unused) or a data node carrying one
// (Key, V) pair. One allocation per entry, matching the C intrusive
// layout's "single allocation per entry" property without an intrusive
// header (see SPEC_FULL.md §E).
type fibNode[K any, V any] struct {
	// key is the bit-reversed hash this node is ordered by. For a
	// sentinel this is reverseBits(bucket index); for a data node it is
	// reverseBits(Key.Hash()).
	key uint32

	// next is the successor in the split-ordered list.
	next atomic.Pointer[fibNode[K, V]]

	// deleted is set exactly once, by the first successful logical
	// delete (spec.md §3 Node.next "deletion mark"). Modeled as its own
	// field rather than a pointer tag bit: Go's GC requires every
	// observed atomic.Pointer bit pattern to be a valid pointer, so the
	// C trick of stealing next's low bit does not port (SPEC_FULL.md
	// §E). mark/unlink semantics (I3) are otherwise identical.
	deleted atomic.Bool

	// counter packs is-sentinel (bit 0) and a back-link refcount (bits
	// 1..), exactly as spec.md §3/§4.2 describes sentinel_counter. Kept
	// packed, matching the spec, since both fields are read together on
	// the hot traversal path.
	counter atomic.Uint32

	// bucket is this sentinel's owning bucket index, valid only when
	// isSentinel. Storing it inline avoids the O(size) directory scan
	// spec.md §9 flags as an open implementation question (SPEC_FULL.md
	// §D resolves it this way).
	bucket uint32

	hashOf uint32 // Key.Hash() result, cached to avoid recomputation on retries

	k K
	v V
}

const sentinelBit = 1

func newSentinel[K any, V any](bucket uint32) *fibNode[K, V] {
	n := &fibNode[K, V]{
		key:    reverseBits(bucket),
		bucket: bucket,
	}
	n.counter.Store(sentinelBit)
	return n
}

func newDataNode[K any, V any](k K, hash uint32) *fibNode[K, V] {
	return &fibNode[K, V]{
		key:    reverseBits(hash),
		hashOf: hash,
		k:      k,
	}
}

func (n *fibNode[K, V]) isSentinel() bool {
	return n.counter.Load()&sentinelBit != 0
}

func (n *fibNode[K, V]) isMarked() bool {
	return n.deleted.Load()
}

// markDeleted atomically transitions the node from live to logically
// deleted. Returns true only for the caller that performed the 0->1
// transition (spec.md §4.2 mark_deleted).
func (n *fibNode[K, V]) markDeleted() bool {
	return n.deleted.CompareAndSwap(false, true)
}

func (n *fibNode[K, V]) nextPtr() *fibNode[K, V] {
	return n.next.Load()
}

// addLink records one more back-link (a next pointer or directory slot)
// pointing at n, maintaining invariant I4.
func (n *fibNode[K, V]) addLink() {
	n.counter.Add(2)
}

// removeLink releases one back-link pointing at n.
func (n *fibNode[K, V]) removeLink() {
	n.counter.Add(^uint32(1)) // -2
}

func (n *fibNode[K, V]) refcount() uint32 {
	return n.counter.Load() >> 1
}

// Handle is the caller-visible reference to a data node returned by Find,
// Get, Route and iteration. It is opaque: callers pass it back only to
// Delete or to read Key/Value.
type Handle[K any, V any] struct {
	node *fibNode[K, V]
}

// Key returns the prefix this handle was inserted under.
func (h Handle[K, V]) Key() K { return h.node.k }

// Value returns the caller-owned payload stored at this handle.
func (h Handle[K, V]) Value() V { return h.node.v }

// SetValue replaces the payload in place with a plain, unsynchronized
// write: the table does not order it against concurrent Value or SetValue
// calls on the same handle.
func (h Handle[K, V]) SetValue(v V) { h.node.v = v }

// valid reports whether the handle still refers to a non-nil node.
func (h Handle[K, V]) valid() bool { return h.node != nil }
