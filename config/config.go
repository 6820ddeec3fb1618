// Package config loads runner settings from a file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	visionrunner "github.com/Swind/go-vision-runner"
	"github.com/Swind/go-vision-runner/core"
	"github.com/Swind/go-vision-runner/engine/reference"
	obs "github.com/Swind/go-vision-runner/observability/prometheus"
	"github.com/Swind/go-vision-runner/stylizer"
	"github.com/Swind/go-vision-runner/vision"
)

// EnvPrefix prefixes every environment override, e.g.
// VISIONRUNNER_RUNNER_RUNNING_MODE=video.
const EnvPrefix = "VISIONRUNNER"

type Config struct {
	Runner  RunnerConfig  `mapstructure:"runner"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type RunnerConfig struct {
	Name              string `mapstructure:"name"`
	RunningMode       string `mapstructure:"running_mode"`
	ModelAssetPath    string `mapstructure:"model_asset_path"`
	SharedPoolWorkers int    `mapstructure:"shared_pool_workers"`
	OutputSize        int    `mapstructure:"output_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Namespace    string        `mapstructure:"namespace"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

var defaults = map[string]interface{}{
	"runner.name":                "face_stylizer",
	"runner.running_mode":        "image",
	"runner.model_asset_path":    "",
	"runner.shared_pool_workers": 0,
	"runner.output_size":         256,
	"log.level":                  "info",
	"metrics.namespace":          "visionrunner",
	"metrics.poll_interval":      5 * time.Second,
}

// Load reads path (any format viper understands) and applies environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	var errs []error
	if _, err := vision.ParseRunningMode(c.Runner.RunningMode); err != nil {
		errs = append(errs, err)
	}
	if c.Runner.SharedPoolWorkers < 0 {
		errs = append(errs, fmt.Errorf("runner.shared_pool_workers must not be negative, got %d", c.Runner.SharedPoolWorkers))
	}
	if c.Runner.OutputSize <= 0 {
		errs = append(errs, fmt.Errorf("runner.output_size must be positive, got %d", c.Runner.OutputSize))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Metrics.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("metrics.poll_interval must be positive, got %s", c.Metrics.PollInterval))
	}
	return errors.Join(errs...)
}

// Mode returns the configured running mode.
func (c *Config) Mode() vision.RunningMode {
	mode, err := vision.ParseRunningMode(c.Runner.RunningMode)
	if err != nil {
		return vision.RunningModeImage
	}
	return mode
}

// Logger builds a console logger at the configured level.
func (c *Config) Logger() core.Logger {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return core.NewDefaultLogger(level)
}

// EngineFactory returns the reference engine sized to runner.output_size.
func (c *Config) EngineFactory() vision.EngineFactory {
	return reference.NewFactory(reference.Config{
		OutputSize: c.Runner.OutputSize,
		Logger:     c.Logger(),
	})
}

// NewThreadPool builds the shared delivery pool sized by
// runner.shared_pool_workers. It returns nil when the setting is 0, in which
// case each live-stream runner gets its own delivery goroutine. The pool is
// not started.
func (c *Config) NewThreadPool() *visionrunner.GoroutineThreadPool {
	if c.Runner.SharedPoolWorkers <= 0 {
		return nil
	}
	return visionrunner.NewGoroutineThreadPoolWithConfig(c.Runner.Name+"-pool", c.Runner.SharedPoolWorkers, &core.RunnerConfig{
		Name:   c.Runner.Name + "-pool",
		Logger: c.Logger(),
	})
}

// NewSnapshotPoller creates a poller that samples at metrics.poll_interval
// under metrics.namespace.
func (c *Config) NewSnapshotPoller(reg prom.Registerer) (*obs.SnapshotPoller, error) {
	return obs.NewSnapshotPoller(c.Metrics.Namespace, reg, c.Metrics.PollInterval)
}

// StylizerOptions fills stylizer options from the config, using the
// reference engine. pool may be nil. Callbacks and metrics are left for the
// caller.
func (c *Config) StylizerOptions(pool *visionrunner.GoroutineThreadPool) *stylizer.Options {
	opts := &stylizer.Options{
		Name:          c.Runner.Name,
		BaseOptions:   vision.BaseOptions{ModelAssetPath: c.Runner.ModelAssetPath},
		RunningMode:   c.Mode(),
		EngineFactory: c.EngineFactory(),
		Logger:        c.Logger(),
	}
	if pool != nil {
		opts.ThreadPool = pool
	}
	return opts
}
