package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/acunetix2/sysmonitor/internal/metrics"
	"github.com/acunetix2/sysmonitor/internal/sampler"
	"github.com/acunetix2/sysmonitor/pkg/models"
)

const (
	// Sampling defaults
	DefaultRingCapacity    = 60
	DefaultTopN            = 15
	DefaultMaxBackoff      = 30 * time.Second
	DefaultShutdownGrace   = 5 * time.Second
	DefaultCPUSampleWindow = 1 * time.Second
	DefaultRefresh         = 2 * time.Second

	// Build info (injected at build time via ldflags)
	Version   = "1.0.0"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Environment file path
	EnvFilePath = "/etc/sysmonitor/env"

	// DefaultConfigPath is read when --config is not given; a missing file is not an error
	DefaultConfigPath = "/etc/sysmonitor/config.yaml"
)

// Config holds every recognized option
type Config struct {
	Intervals       map[models.MetricFamily]time.Duration `yaml:"intervals"`
	Timeouts        map[models.MetricFamily]time.Duration `yaml:"timeouts"`
	RingCapacity    int                                   `yaml:"ring_capacity"`
	TopNProcesses   int                                   `yaml:"top_n_processes"`
	EnabledFamilies []models.MetricFamily                 `yaml:"enabled_families"`
	MaxBackoff      time.Duration                         `yaml:"max_backoff"`
	ShutdownGrace   time.Duration                         `yaml:"shutdown_grace"`
	CPUSampleWindow time.Duration                         `yaml:"cpu_sample_window"`
	AllPartitions   bool                                  `yaml:"all_partitions"`
	LogLevel        string                                `yaml:"log_level"`
	Refresh         time.Duration                         `yaml:"refresh"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Intervals: map[models.MetricFamily]time.Duration{
			models.FamilyCPU:       1 * time.Second,
			models.FamilyMemory:    1 * time.Second,
			models.FamilyDisk:      5 * time.Second,
			models.FamilyNetwork:   5 * time.Second,
			models.FamilyProcesses: 2 * time.Second,
		},
		Timeouts: map[models.MetricFamily]time.Duration{
			// CPU blocks for the sample window while measuring
			models.FamilyCPU:       3 * time.Second,
			models.FamilyMemory:    1 * time.Second,
			models.FamilyDisk:      1 * time.Second,
			models.FamilyNetwork:   1 * time.Second,
			models.FamilyProcesses: 1 * time.Second,
		},
		RingCapacity:    DefaultRingCapacity,
		TopNProcesses:   DefaultTopN,
		EnabledFamilies: models.AllFamilies(),
		MaxBackoff:      DefaultMaxBackoff,
		ShutdownGrace:   DefaultShutdownGrace,
		CPUSampleWindow: DefaultCPUSampleWindow,
		LogLevel:        "info",
		Refresh:         DefaultRefresh,
	}
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := cfg.merge(data); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// merge decodes YAML into cfg; map entries override per family
func (c *Config) merge(data []byte) error {
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	for f, d := range file.Intervals {
		c.Intervals[f] = d
	}
	for f, d := range file.Timeouts {
		c.Timeouts[f] = d
	}
	if file.RingCapacity != 0 {
		c.RingCapacity = file.RingCapacity
	}
	if file.TopNProcesses != 0 {
		c.TopNProcesses = file.TopNProcesses
	}
	if file.EnabledFamilies != nil {
		c.EnabledFamilies = file.EnabledFamilies
	}
	if file.MaxBackoff != 0 {
		c.MaxBackoff = file.MaxBackoff
	}
	if file.ShutdownGrace != 0 {
		c.ShutdownGrace = file.ShutdownGrace
	}
	if file.CPUSampleWindow != 0 {
		c.CPUSampleWindow = file.CPUSampleWindow
	}
	if file.AllPartitions {
		c.AllPartitions = true
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.Refresh != 0 {
		c.Refresh = file.Refresh
	}
	return nil
}

// ApplyEnv overrides values from SYSMON_* environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("SYSMON_RING_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "SYSMON_RING_CAPACITY")
		}
		c.RingCapacity = n
	}

	if v := os.Getenv("SYSMON_TOP_N"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "SYSMON_TOP_N")
		}
		c.TopNProcesses = n
	}

	if v := os.Getenv("SYSMON_FAMILIES"); v != "" {
		families, err := models.ParseFamilies(v)
		if err != nil {
			return errors.Wrap(err, "SYSMON_FAMILIES")
		}
		c.EnabledFamilies = families
	}

	if v := os.Getenv("SYSMON_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if IsDebugMode() {
		c.LogLevel = "debug"
	}

	return nil
}

// Validate checks ranges and fills per-family gaps
func (c *Config) Validate() error {
	if c.RingCapacity <= 0 {
		return errors.Errorf("ring_capacity must be positive, got %d", c.RingCapacity)
	}
	if c.TopNProcesses <= 0 {
		return errors.Errorf("top_n_processes must be positive, got %d", c.TopNProcesses)
	}
	if len(c.EnabledFamilies) == 0 {
		return errors.New("at least one metric family must be enabled")
	}

	defaults := Default()
	for _, f := range c.EnabledFamilies {
		if !f.Valid() {
			return errors.Errorf("unknown metric family %q", f)
		}
		if c.Intervals[f] <= 0 {
			c.Intervals[f] = defaults.Intervals[f]
		}
		if c.Timeouts[f] <= 0 {
			c.Timeouts[f] = defaults.Timeouts[f]
		}
	}
	for f := range c.Intervals {
		if !f.Valid() {
			return errors.Errorf("unknown metric family %q in intervals", f)
		}
	}
	for f := range c.Timeouts {
		if !f.Valid() {
			return errors.Errorf("unknown metric family %q in timeouts", f)
		}
	}

	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.CPUSampleWindow < 0 {
		return errors.New("cpu_sample_window must not be negative")
	}
	if c.Refresh <= 0 {
		c.Refresh = DefaultRefresh
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}

	return nil
}

// SamplerOptions converts the configuration into sampler scheduling options
func (c *Config) SamplerOptions() sampler.Options {
	opts := sampler.Options{
		Families:    make(map[models.MetricFamily]sampler.Schedule, len(c.EnabledFamilies)),
		MaxBackoff:  c.MaxBackoff,
		GracePeriod: c.ShutdownGrace,
	}
	for _, f := range c.EnabledFamilies {
		opts.Families[f] = sampler.Schedule{
			Interval: c.Intervals[f],
			Timeout:  c.Timeouts[f],
		}
	}
	return opts
}

// CollectorOptions converts the configuration into collector options
func (c *Config) CollectorOptions() metrics.Options {
	return metrics.Options{
		CPUSampleWindow: c.CPUSampleWindow,
		AllPartitions:   c.AllPartitions,
		TopN:            c.TopNProcesses,
	}
}

// LoadEnvFile loads environment variables from /etc/sysmonitor/env
func LoadEnvFile() error {
	return loadEnvFile(EnvFilePath)
}

func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist is not an error
		}
		return err
	}

	// Parse each line as KEY=VALUE
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		// Only set if not already set in environment
		if os.Getenv(key) == "" {
			os.Setenv(key, strings.TrimSpace(value))
		}
	}

	return nil
}

// IsDebugMode checks if debug mode is enabled
func IsDebugMode() bool {
	debug := os.Getenv("SYSMON_DEBUG")
	return debug == "true" || debug == "1"
}
