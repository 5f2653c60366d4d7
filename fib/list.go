package fib

// findInsertPoint walks the split-ordered list starting at the bucket's
// sentinel, positioning curr at the last node with key(curr) <= key that
// is not itself a data match for k, and succ at curr.next (spec.md §4.4).
// Nodes whose deletion mark is set are skipped without being treated as
// matches. When a non-sentinel node with an equal key and equal(k) is
// found with its mark clear, dup is returned non-nil.
func (t *Table[K, V]) findInsertPoint(row int, bucketSentinel *fibNode[K, V], hash uint32, k K) (curr, succ, dup *fibNode[K, V]) {
	key := reverseBits(hash)

	curr = bucketSentinel
	t.hz.setCurr(row, curr)
	succ = curr.nextPtr()
	t.hz.setSucc(row, succ)

	for {
		if succ == nil {
			return curr, succ, nil
		}
		if succ.isMarked() {
			// Ghost node: skip without treating it as curr or as a
			// match, letting the caller's CAS unlink it opportunistically
			// is not required here — delete() handles physical unlink.
			succ = succ.nextPtr()
			t.hz.setSucc(row, succ)
			continue
		}
		if succ.key > key {
			return curr, succ, nil
		}
		if succ.key == key && !succ.isSentinel() && succ.k.Equal(k) {
			return curr, succ, succ
		}
		// Equal key but not sentinel/not equal k (hash collision), or a
		// sentinel at this key (shouldn't normally precede a data key
		// match, but is valid list structure): keep advancing past it.
		curr = succ
		t.hz.setCurr(row, curr)
		succ = curr.nextPtr()
		t.hz.setSucc(row, succ)
	}
}
