package av

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "av.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
  output: stdout
resampler:
  backend: soft
format:
  reading_timeout: 250ms
  probe_packets: 8
metrics:
  namespace: media
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "stdout", cfg.Log.Output)
	assert.Equal(t, 100, cfg.Log.MaxSize, "unset keys keep defaults")
	assert.Equal(t, "soft", cfg.Resampler.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Format.ReadingTimeout)
	assert.Equal(t, 8, cfg.Format.ProbePackets)
	assert.Equal(t, "media", cfg.Metrics.Namespace)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("AV_LOG_LEVEL", "warn")
	t.Setenv("AV_RESAMPLER_BACKEND", "soft")
	t.Setenv("AV_FORMAT_READING_TIMEOUT", "2s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "soft", cfg.Resampler.Backend)
	assert.Equal(t, 2*time.Second, cfg.Format.ReadingTimeout)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("AV_RESAMPLER_BACKEND", "sox")
	_, err = LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid backend")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "invalid level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "invalid format"},
		{"no output", func(c *Config) { c.Log.Output = "" }, "output is required"},
		{"negative rotation", func(c *Config) { c.Log.MaxAge = -1 }, "must not be negative"},
		{"bad backend", func(c *Config) { c.Resampler.Backend = "" }, "invalid backend"},
		{"negative timeout", func(c *Config) { c.Format.ReadingTimeout = -time.Second }, "reading_timeout"},
		{"no probe packets", func(c *Config) { c.Format.ProbePackets = 0 }, "probe_packets"},
		{"no namespace", func(c *Config) { c.Metrics.Namespace = "" }, "namespace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigure(t *testing.T) {
	prevLogger := Logger()
	prevBackend := CurrentResamplerBackend()
	t.Cleanup(func() {
		require.NoError(t, Configure(DefaultConfig()))
		SetLogger(prevLogger)
		_ = SetResamplerBackend(prevBackend.String())
	})

	cfg := DefaultConfig()
	cfg.Log.Level = "debug"
	cfg.Resampler.Backend = "soft"
	cfg.Format.ReadingTimeout = 3 * time.Second
	cfg.Format.ProbePackets = 2
	require.NoError(t, Configure(cfg))

	assert.Equal(t, ResamplerSoft, CurrentResamplerBackend())
	assert.NotSame(t, prevLogger, Logger())
	fc := NewFormatContext()
	assert.Equal(t, 3*time.Second, fc.ReadingTimeout())

	bad := DefaultConfig()
	bad.Format.ProbePackets = -1
	assert.ErrorIs(t, Configure(bad), ErrInvalidParameters)
}
