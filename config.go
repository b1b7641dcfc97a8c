package av

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/thesyncim/av/internal/native"
)

// Config holds the process-wide settings applied by Configure.
type Config struct {
	Log       LoggingConfig   `mapstructure:"log"`
	Resampler ResamplerConfig `mapstructure:"resampler"`
	Format    FormatConfig    `mapstructure:"format"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ResamplerConfig struct {
	Backend       string `mapstructure:"backend"` // auto, soft or ffmpeg
	FFmpegLibPath string `mapstructure:"ffmpeg_lib_path"`
}

type FormatConfig struct {
	ReadingTimeout time.Duration `mapstructure:"reading_timeout"` // 0 disables
	ProbePackets   int           `mapstructure:"probe_packets"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// LoadConfig reads a YAML file at path, overridden by AV_* environment
// variables (log.level is AV_LOG_LEVEL). An empty path uses defaults and
// the environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)

	v.SetDefault("resampler.backend", native.BackendAuto)
	v.SetDefault("resampler.ffmpeg_lib_path", "")

	v.SetDefault("format.reading_timeout", "0s")
	v.SetDefault("format.probe_packets", native.DefaultProbePackets)

	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
}

// DefaultConfig returns the settings LoadConfig uses without a file or
// environment.
func DefaultConfig() *Config {
	return &Config{
		Log: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Resampler: ResamplerConfig{Backend: native.BackendAuto},
		Format:    FormatConfig{ProbePackets: native.DefaultProbePackets},
		Metrics:   MetricsConfig{Namespace: DefaultMetricsNamespace},
	}
}

func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if err := c.Resampler.Validate(); err != nil {
		return fmt.Errorf("resampler config: %w", err)
	}
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("format config: %w", err)
	}
	if c.Metrics.Namespace == "" {
		return fmt.Errorf("metrics config: namespace is required")
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("invalid level: %s", l.Level)
	}
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("invalid format: %s", l.Format)
	}
	if l.Output == "" {
		return fmt.Errorf("output is required")
	}
	if l.MaxSize < 0 || l.MaxBackups < 0 || l.MaxAge < 0 {
		return fmt.Errorf("rotation limits must not be negative")
	}
	return nil
}

func (r *ResamplerConfig) Validate() error {
	switch r.Backend {
	case native.BackendAuto, native.BackendSoft, native.BackendFFmpeg:
		return nil
	}
	return fmt.Errorf("invalid backend: %s", r.Backend)
}

func (f *FormatConfig) Validate() error {
	if f.ReadingTimeout < 0 {
		return fmt.Errorf("reading_timeout must not be negative")
	}
	if f.ProbePackets <= 0 {
		return fmt.Errorf("probe_packets must be positive")
	}
	return nil
}

// runtimeDefaults are picked up by contexts created after Configure.
type runtimeDefaults struct {
	readingTimeout time.Duration
	probePackets   int
}

var (
	defaultsMu sync.RWMutex
	defaults   = runtimeDefaults{probePackets: native.DefaultProbePackets}
)

func currentDefaults() runtimeDefaults {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	return defaults
}

// Configure applies cfg: the package logger, the resampler backend, the
// format defaults and the metrics namespace. Metrics keep their namespace
// once registered.
func Configure(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return newError(KindInvalidParameters, "configure", "%v", err)
	}
	l, err := NewLogger(cfg.Log)
	if err != nil {
		return newError(KindInvalidParameters, "configure", "%v", err)
	}
	SetLogger(l)

	if cfg.Resampler.FFmpegLibPath != "" {
		native.SetFFmpegLibPath(cfg.Resampler.FFmpegLibPath)
	}
	if err := SetResamplerBackend(cfg.Resampler.Backend); err != nil {
		return err
	}

	defaultsMu.Lock()
	defaults = runtimeDefaults{
		readingTimeout: cfg.Format.ReadingTimeout,
		probePackets:   cfg.Format.ProbePackets,
	}
	defaultsMu.Unlock()

	setMetricsNamespace(cfg.Metrics.Namespace)
	return nil
}
