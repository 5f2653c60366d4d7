// Package config loads the FIB's tuning knobs from a TOML file and
// optionally watches it for changes, the way sdns' own config package
// loaded and (for select fields) hot-reloaded sdns.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/semihalev/zlog/v2"
)

const configver = "1.0.0"

// Config holds the tunables SPEC_FULL.md §A assigns to the ambient config
// layer: initial table size, reclaimer cadence, and the hazard-registry
// bound.
type Config struct {
	Version string

	// HashOrder sets each Table's initial directory to 2^HashOrder
	// buckets. 0 means fib.DefaultHashOrder.
	HashOrder int

	// ReclaimIntervalSeconds controls how often the background
	// reclaimer sweeps the retired list (spec.md §4.10).
	ReclaimIntervalSeconds int64

	// MaxThreads documents the hazard-registry size this build was
	// compiled with (fib.MaxThreads is a compile-time constant; this
	// field exists so operators can see the configured expectation
	// without reading source).
	MaxThreads int

	sVersion string
}

// ServerVersion returns the binary version Load was called with,
// independent of the config file's own Version field.
func (c *Config) ServerVersion() string { return c.sVersion }

// Duration wraps time.Duration for TOML fields expressed as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Load reads cfgfile, generating a default one in its place if missing
// (mirroring sdns' config.Load), and returns a ready-to-use Config.
func Load(cfgfile, version string) (*Config, error) {
	if _, err := os.Stat(cfgfile); os.IsNotExist(err) {
		if err := generateConfig(cfgfile); err != nil {
			return nil, err
		}
	}

	zlog.Info("loading fib config file", zlog.String("path", cfgfile))

	cfg := &Config{}
	if _, err := toml.DecodeFile(cfgfile, cfg); err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	if cfg.Version != configver {
		zlog.Warn("fib config file is out of version, consider regenerating it")
	}
	if cfg.ReclaimIntervalSeconds <= 0 {
		cfg.ReclaimIntervalSeconds = 30
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 32
	}

	cfg.sVersion = version
	return cfg, nil
}

func generateConfig(path string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not generate config: %w", err)
	}
	defer output.Close()

	_, err = output.WriteString(fmt.Sprintf(`Version = "%s"
HashOrder = 10
ReclaimIntervalSeconds = 30
MaxThreads = 32
`, configver))
	return err
}

// Watcher reloads ReclaimIntervalSeconds from disk whenever cfgfile
// changes, handing each new value to onReload. Only ReclaimIntervalSeconds
// is hot-reloadable — HashOrder and MaxThreads only take effect for
// Tables constructed after a restart, since they size structures that
// cannot safely be resized out from under a running reclaimer.
type Watcher struct {
	mu       sync.Mutex
	cfgfile  string
	watcher  *fsnotify.Watcher
	onReload func(int64)
	done     chan struct{}
}

// WatchReclaimInterval starts watching cfgfile and calls onReload with the
// freshly-parsed ReclaimIntervalSeconds every time the file changes.
func WatchReclaimInterval(cfgfile string, onReload func(int64)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(cfgfile)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		cfgfile:  cfgfile,
		watcher:  fsw,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.cfgfile) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.cfgfile, "")
			if err != nil {
				zlog.Error("fib config reload failed", zlog.String("error", err.Error()))
				continue
			}
			w.onReload(cfg.ReclaimIntervalSeconds)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			zlog.Error("fib config watcher error", zlog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
