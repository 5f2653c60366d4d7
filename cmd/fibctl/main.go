// Command fibctl is a small, cobra-driven harness for exercising the fib
// package end to end: load a list of prefixes into a fresh table and
// report its entry count (insert), longest-prefix-match a query (route),
// print diagnostics (stats), enumerate entries (walk), or run a concurrent
// insert load that stops early on Ctrl-C (loadtest). It plays
// the role sdns' main.go played for the DNS daemon — a thin entrypoint
// wiring config, signal handling and the library together — generalized
// to this module's FIB domain.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nicofore/bird/addr"
	"github.com/nicofore/bird/config"
	"github.com/nicofore/bird/fib"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "fibctl",
		Short: "Exercise the bird FIB from the command line",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "fib.toml", "location of the config file, generated if not found")

	root.AddCommand(insertCmd(), routeCmd(), statsCmd(), walkCmd(), loadtestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newTable builds a Table[addr.Prefix, string] sized per configPath, the
// payload being a free-form next-hop string — enough to exercise every
// public operation without pulling in a routing-daemon-scale value type.
func newTable() (*fib.Table[addr.Prefix, string], *config.Config, error) {
	cfg, err := config.Load(configPath, "dev")
	if err != nil {
		return nil, nil, err
	}
	t := fib.New[addr.Prefix, string](fib.IP4, fib.Options[addr.Prefix, string]{
		HashOrder:       uint32(cfg.HashOrder),
		ReclaimInterval: func() int64 { return cfg.ReclaimIntervalSeconds },
	})
	return t, cfg, nil
}

// readPrefixes reads "cidr[,nexthop]" lines from the file at path.
func readPrefixes(path string) ([]prefixLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []prefixLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		p, err := addr.ParseCIDR(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", line, err)
		}
		nexthop := ""
		if len(parts) == 2 {
			nexthop = strings.TrimSpace(parts[1])
		}
		out = append(out, prefixLine{prefix: p, nexthop: nexthop})
	}
	return out, scanner.Err()
}

type prefixLine struct {
	prefix  addr.Prefix
	nexthop string
}

func insertCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert prefixes from a file into a fresh table and report entry count",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readPrefixes(file)
			if err != nil {
				return err
			}
			t, _, err := newTable()
			if err != nil {
				return err
			}
			defer t.Free()

			for _, l := range lines {
				t.Get(l.prefix)
			}
			fmt.Printf("inserted %d lines, table now has %d entries\n", len(lines), t.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a CSV file of cidr[,nexthop] lines")
	cmd.MarkFlagRequired("file")
	return cmd
}

func routeCmd() *cobra.Command {
	var file, query string
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Load a prefix file then run longest-prefix-match against --query",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readPrefixes(file)
			if err != nil {
				return err
			}
			t, _, err := newTable()
			if err != nil {
				return err
			}
			defer t.Free()

			for _, l := range lines {
				h, _ := t.Get(l.prefix)
				h.SetValue(l.nexthop)
			}

			q, err := addr.ParseCIDR(query)
			if err != nil {
				return err
			}
			h, found := t.Route(q)
			if !found {
				fmt.Println("no route")
				return nil
			}
			fmt.Printf("matched %s -> %s\n", h.Key(), h.Value())
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a CSV file of cidr[,nexthop] lines")
	cmd.Flags().StringVar(&query, "query", "", "address to longest-prefix-match, e.g. 10.0.0.1/32")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("query")
	return cmd
}

func statsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Load a prefix file and print table diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readPrefixes(file)
			if err != nil {
				return err
			}
			t, _, err := newTable()
			if err != nil {
				return err
			}
			defer t.Free()

			for _, l := range lines {
				t.Get(l.prefix)
			}
			s := t.Stats()
			fmt.Printf("entries=%d hash_order=%d hash_size=%d rehashes=%d hazard_in_use=%d retired_depth=%d\n",
				s.Entries, s.HashOrder, s.HashSize, s.Rehashes, s.HazardInUse, s.RetiredDepth)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a CSV file of cidr[,nexthop] lines")
	cmd.MarkFlagRequired("file")
	return cmd
}

func walkCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Load a prefix file and enumerate every entry via Walk",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readPrefixes(file)
			if err != nil {
				return err
			}
			t, _, err := newTable()
			if err != nil {
				return err
			}
			defer t.Free()

			for _, l := range lines {
				t.Get(l.prefix)
			}
			for h := range t.Walk() {
				fmt.Println(h.Key())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a CSV file of cidr[,nexthop] lines")
	cmd.MarkFlagRequired("file")
	return cmd
}

// loadtestCmd fans out N goroutines each inserting a disjoint slice of
// sequential /32s, mirroring spec.md §8 scenario 3's 6-thread test but as
// an operator-facing load generator. Exercises errgroup for fan-out and
// signal handling for a clean Ctrl-C stop.
func loadtestCmd() *cobra.Command {
	var workers, perWorker int
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Insert perWorker*workers disjoint /32s concurrently and report timing",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _, err := newTable()
			if err != nil {
				return err
			}
			defer t.Free()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var inserted int64
			g, gctx := errgroup.WithContext(ctx)
			for w := 0; w < workers; w++ {
				w := w
				g.Go(func() error {
					for i := 0; i < perWorker; i++ {
						select {
						case <-gctx.Done():
							return gctx.Err()
						default:
						}
						ip := ipFromUint32(uint32(workers*i + w))
						t.Get(addr.NewIP4(fib.IP4, ip, 32))
						atomic.AddInt64(&inserted, 1)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil && err != gctx.Err() {
				return err
			}
			fmt.Printf("inserted %d/%d entries, table reports %d\n", inserted, workers*perWorker, t.Len())
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 6, "number of concurrent inserting goroutines")
	cmd.Flags().IntVar(&perWorker, "per-worker", 10000, "inserts per worker")
	return cmd
}

func ipFromUint32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
