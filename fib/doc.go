/*
Package fib implements a concurrent forwarding information base: an
associative container keyed by network prefixes whose values are
caller-owned route records.

The table is backed by a split-ordered lock-free list (Shalev & Shavit)
threaded through a power-of-two bucket directory that expands in place.
Readers and writers never block each other; deleted nodes are retired to a
queue and freed by a background reclaimer once their back-link count is
zero and no hazard pointer refers to them.

Table is generic over a Key (the prefix/address type — hashing, equality,
byte length and copying are the caller's responsibility, see the Key
interface) and a value type V chosen by the caller. Keys are supplied by
packages such as bird/addr; this package knows nothing about address
families beyond what Key exposes.

The public surface is intentionally small: Find (pure lookup), Get
(insert-or-find), Route (longest-prefix match), Delete, a non-resumable
Walk for simple enumeration, and a resumable Iterator for callers that need
to suspend mid-scan. Find, Get, Route and Delete are safe to call
concurrently with each other, including concurrently with Walk/Iterator.
*/
package fib
