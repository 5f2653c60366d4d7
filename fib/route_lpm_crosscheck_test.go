package fib_test

import (
	"fmt"
	"math/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yl2chen/cidranger"

	"github.com/nicofore/bird/addr"
	"github.com/nicofore/bird/fib"
)

// TestRouteMatchesCidrangerOracle cross-checks Table.Route's longest-prefix
// match against yl2chen/cidranger, an independently-implemented LPM
// structure, over a random set of overlapping IPv4 prefixes.
func TestRouteMatchesCidrangerOracle(t *testing.T) {
	table := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{})
	defer table.Free()

	ranger := cidranger.NewPCTrieRanger()

	rng := rand.New(rand.NewSource(42))
	const numPrefixes = 500
	for i := 0; i < numPrefixes; i++ {
		length := 8 + rng.Intn(25) // /8 .. /32
		ip := net.IPv4(byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)))
		_, network, err := net.ParseCIDR(fmt.Sprintf("%s/%d", ip, length))
		require.NoError(t, err)

		p, err := addr.ParseCIDR(network.String())
		require.NoError(t, err)
		h, _ := table.Get(p)
		h.SetValue(network.String())

		require.NoError(t, ranger.Insert(cidranger.NewBasicRangerEntry(*network)))
	}

	for i := 0; i < 2000; i++ {
		ip := net.IPv4(byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)))
		query := addr.NewIP4(fib.IP4, ip, 32)

		h, found := table.Route(query)

		entries, err := ranger.ContainingNetworks(ip)
		require.NoError(t, err)

		if len(entries) == 0 {
			if found {
				t.Fatalf("fib matched %s for %s but cidranger found no containing network", h.Key(), ip)
			}
			continue
		}

		longest := entries[0].Network()
		for _, e := range entries[1:] {
			n := e.Network()
			ones, _ := n.Mask.Size()
			longestOnes, _ := longest.Mask.Size()
			if ones > longestOnes {
				longest = n
			}
		}

		require.True(t, found, "cidranger matched %s for %s but fib found nothing", longest.String(), ip)
		require.Equal(t, longest.String(), h.Value(), "longest-prefix-match disagreement for %s", ip)
	}
}
