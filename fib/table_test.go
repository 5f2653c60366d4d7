package fib_test

import (
	"fmt"
	"net"
	"os"
	"sync"
	"testing"

	"github.com/semihalev/zlog/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/nicofore/bird/addr"
	"github.com/nicofore/bird/fib"
)

func TestMain(m *testing.M) {
	logger := zlog.NewStructured()
	logger.SetWriter(zlog.StdoutTerminal())
	logger.SetLevel(zlog.LevelError)
	zlog.SetDefault(logger)
	os.Exit(m.Run())
}

func ip4(i int, length int) addr.Prefix {
	ip := net.IPv4(byte(i>>24), byte(i>>16), byte(i>>8), byte(i))
	return addr.NewIP4(fib.IP4, ip, length)
}

// Scenario 1, spec.md §8: smoke test.
func TestSmoke(t *testing.T) {
	table := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer table.Free()

	p, err := addr.ParseCIDR("121.155.218.0/24")
	require.NoError(t, err)

	h1, inserted := table.Get(p)
	assert.True(t, inserted)

	h2, found := table.Find(p)
	assert.True(t, found)
	assert.Equal(t, h1.Key(), h2.Key())
	assert.Equal(t, 1, table.Len())

	assert.True(t, table.Delete(h1))
	_, found = table.Find(p)
	assert.False(t, found)
	assert.Equal(t, 0, table.Len())
}

// P1/P2/P3/P4.
func TestPropertiesSingleThreaded(t *testing.T) {
	table := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer table.Free()

	p := ip4(0x0A000001, 32)

	h1, inserted := table.Get(p)
	assert.True(t, inserted)
	h2, inserted2 := table.Get(p)
	assert.False(t, inserted2) // P2: idempotent get
	assert.Equal(t, h1.Key(), h2.Key())
	assert.Equal(t, 1, table.Len())

	found, ok := table.Find(p)
	require.True(t, ok)
	assert.Equal(t, h1.Key(), found.Key())

	assert.True(t, table.Delete(h1))   // P3: first delete succeeds
	assert.False(t, table.Delete(h1))  // P3: second delete on same handle fails
	assert.Equal(t, 0, table.Len())    // P4
}

// Scenario 2, spec.md §8: 10 000 inserts then deletes.
func TestTenThousandInserts(t *testing.T) {
	table := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer table.Free()

	const n = 10000
	handles := make([]fib.Handle[addr.Prefix, string], n)
	for i := 0; i < n; i++ {
		h, inserted := table.Get(ip4(i, 32))
		require.True(t, inserted)
		handles[i] = h
	}
	assert.Equal(t, n, table.Len())
	require.NoError(t, table.Audit())

	for i := 0; i < n; i++ {
		h, found := table.Find(ip4(i, 32))
		require.True(t, found, "index %d", i)
		assert.Equal(t, ip4(i, 32), h.Key())
		assert.True(t, table.Delete(h))
	}
	assert.Equal(t, 0, table.Len())
	require.NoError(t, table.Audit())
}

// Scenario 3, spec.md §8: 6-thread disjoint inserts.
func TestSixThreadDisjointInserts(t *testing.T) {
	table := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer table.Free()

	const threads = 6
	const perThread = 10000

	var g errgroup.Group
	for tID := 0; tID < threads; tID++ {
		tID := tID
		g.Go(func() error {
			for i := 0; i < perThread; i++ {
				table.Get(ip4(threads*i+tID, 32))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, threads*perThread, table.Len())
	for i := 0; i < threads*perThread; i++ {
		_, found := table.Find(ip4(i, 32))
		assert.True(t, found, "index %d", i)
	}
	require.NoError(t, table.Audit())
}

func TestConcurrentDeleteSameHandleP3(t *testing.T) {
	table := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer table.Free()

	p := ip4(0x0B000001, 32)
	h, _ := table.Get(p)

	const racers = 16
	var wg sync.WaitGroup
	var successes int32
	var mu sync.Mutex
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			if table.Delete(h) {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes)
}

func TestAddressFamilyMismatchPanics(t *testing.T) {
	table := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer table.Free()

	ip6 := addr.NewIP6(fib.IP6, net.ParseIP("::1"), 128)
	assert.Panics(t, func() {
		table.Get(ip6)
	})
}

func TestDeleteForeignHandlePanics(t *testing.T) {
	a := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer a.Free()
	b := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer b.Free()

	h, _ := a.Get(ip4(1, 32))
	// h.node was never linked into any of b's bucket chains, so walking b
	// from h's bucket sentinel can never find it: Delete's invariant check
	// must panic rather than silently report success or failure.
	assert.Panics(t, func() {
		b.Delete(h)
	})
}

func ExampleTable_Get() {
	table := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer table.Free()

	h, _ := table.Get(ip4(0x01020300, 24))
	h.SetValue("eth0")
	fmt.Println(h.Key(), h.Value())
	// Output: 1.2.3.0/24 eth0
}
