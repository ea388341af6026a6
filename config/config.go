// Package config holds the settings of an analysis run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/sarchlab/linecomp/trace"
)

// ErrInvalidConfig is returned when a setting is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix starts the name of every environment variable read by Load.
const EnvPrefix = "LINECOMP_"

// Config is the configuration of one run.
type Config struct {
	// LineSize is the width of a cache line in bytes. Zero takes the width
	// reported by each trace.
	LineSize      int    `yaml:"line_size"`
	CacheCapacity int    `yaml:"cache_capacity"`
	OutputDir     string `yaml:"output_dir"`
	Workload      string `yaml:"workload"`
	Detail        bool   `yaml:"detail"`
	RecordDB      string `yaml:"record_db"`
	Filter        string `yaml:"filter"`
	Jobs          int    `yaml:"jobs"`

	Monitor MonitorConfig   `yaml:"monitor"`
	S3      trace.S3Options `yaml:"s3"`
}

// MonitorConfig controls the HTTP monitor.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		CacheCapacity: 64,
		Filter:        "all",
		Jobs:          1,
	}
}

// Load builds a configuration from the defaults, the YAML file at path, the
// .env file at envFile, and the process environment, in that order. Empty
// paths are skipped. A missing envFile is not an error.
func Load(path, envFile string) (*Config, error) {
	c := Default()

	if path != "" {
		if err := c.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	env := map[string]string{}

	if envFile != "" {
		fileEnv, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}

		for k, v := range fileEnv {
			env[k] = v
		}
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	if err := c.LoadFromEnv(env); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv applies the LINECOMP_* entries of env.
func (c *Config) LoadFromEnv(env map[string]string) error {
	ints := map[string]*int{
		"LINE_SIZE":      &c.LineSize,
		"CACHE_CAPACITY": &c.CacheCapacity,
		"JOBS":           &c.Jobs,
		"MONITOR_PORT":   &c.Monitor.Port,
	}
	strs := map[string]*string{
		"OUTPUT_DIR":  &c.OutputDir,
		"WORKLOAD":    &c.Workload,
		"RECORD_DB":   &c.RecordDB,
		"FILTER":      &c.Filter,
		"S3_REGION":   &c.S3.Region,
		"S3_ENDPOINT": &c.S3.Endpoint,
	}
	bools := map[string]*bool{
		"DETAIL":               &c.Detail,
		"MONITOR":              &c.Monitor.Enabled,
		"MONITOR_OPEN_BROWSER": &c.Monitor.OpenBrowser,
		"S3_PATH_STYLE":        &c.S3.PathStyle,
	}

	for name, dst := range ints {
		if val, ok := env[EnvPrefix+name]; ok && val != "" {
			v, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q", ErrInvalidConfig, EnvPrefix, name, val)
			}

			*dst = v
		}
	}

	for name, dst := range strs {
		if val, ok := env[EnvPrefix+name]; ok && val != "" {
			*dst = val
		}
	}

	for name, dst := range bools {
		if val, ok := env[EnvPrefix+name]; ok && val != "" {
			v, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q", ErrInvalidConfig, EnvPrefix, name, val)
			}

			*dst = v
		}
	}

	return nil
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	if c.LineSize < 0 {
		return fmt.Errorf("%w: line_size must not be negative", ErrInvalidConfig)
	}

	if c.CacheCapacity <= 0 {
		return fmt.Errorf("%w: cache_capacity must be greater than 0",
			ErrInvalidConfig)
	}

	if c.Jobs <= 0 {
		return fmt.Errorf("%w: jobs must be greater than 0", ErrInvalidConfig)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("%w: monitor port %d", ErrInvalidConfig, c.Monitor.Port)
	}

	if _, err := trace.ParseKinds(c.Filter); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}
