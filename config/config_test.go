package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/semihalev/zlog/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger := zlog.NewStructured()
	logger.SetWriter(zlog.StdoutTerminal())
	logger.SetLevel(zlog.LevelDebug)
	zlog.SetDefault(logger)

	os.Exit(m.Run())
}

func TestLoadGeneratesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	cfgFile := filepath.Join(tmpDir, "fib.toml")

	cfg, err := Load(cfgFile, "1.2.3")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 10, cfg.HashOrder)
	assert.Equal(t, int64(30), cfg.ReclaimIntervalSeconds)
	assert.Equal(t, 32, cfg.MaxThreads)
	assert.Equal(t, "1.2.3", cfg.ServerVersion())

	if _, err := os.Stat(cfgFile); err != nil {
		t.Errorf("generated config file missing: %v", err)
	}
}

func TestLoadNonExistentDirectory(t *testing.T) {
	_, err := Load("/nonexistent/path/fib.toml", "1.0.0")
	require.Error(t, err)
}

func TestLoadInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	cfgFile := filepath.Join(tmpDir, "bad.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("not = [valid"), 0644))

	_, err := Load(cfgFile, "1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not load config")
}

func TestLoadDefaultsAppliedWhenZero(t *testing.T) {
	tmpDir := t.TempDir()
	cfgFile := filepath.Join(tmpDir, "fib.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`Version = "1.0.0"`), 0644))

	cfg, err := Load(cfgFile, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, int64(30), cfg.ReclaimIntervalSeconds)
	assert.Equal(t, 32, cfg.MaxThreads)
}

func TestDurationUnmarshalText(t *testing.T) {
	cases := []struct {
		text    string
		want    time.Duration
		wantErr bool
	}{
		{text: "5s", want: 5 * time.Second},
		{text: "1h30m", want: 90 * time.Minute},
		{text: "bogus", wantErr: true},
	}
	for _, tc := range cases {
		var d Duration
		err := d.UnmarshalText([]byte(tc.text))
		if tc.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, d.Duration)
	}
}

func TestWatchReclaimInterval(t *testing.T) {
	tmpDir := t.TempDir()
	cfgFile := filepath.Join(tmpDir, "fib.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`Version = "1.0.0"
ReclaimIntervalSeconds = 30
`), 0644))

	reloaded := make(chan int64, 1)
	w, err := WatchReclaimInterval(cfgFile, func(v int64) {
		select {
		case reloaded <- v:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(cfgFile, []byte(`Version = "1.0.0"
ReclaimIntervalSeconds = 5
`), 0644))

	select {
	case v := <-reloaded:
		assert.Equal(t, int64(5), v)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestGenerateConfigContents(t *testing.T) {
	tmpDir := t.TempDir()
	cfgFile := filepath.Join(tmpDir, "fib.toml")

	require.NoError(t, generateConfig(cfgFile))

	content, err := os.ReadFile(cfgFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "HashOrder"))
}
