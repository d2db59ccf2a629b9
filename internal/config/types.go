package config

import (
	"time"

	"github.com/mattjoyce/asubexec/internal/field"
)

// Config represents the complete asubexec configuration.
type Config struct {
	Service ServiceConfig      `yaml:"service"`
	RunLog  RunLogConfig       `yaml:"run_log"`
	API     APIConfig          `yaml:"api,omitempty"`
	Jobs    map[string]JobConf `yaml:"jobs"`
}

// ServiceConfig defines core daemon settings.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	LogLevel     string        `yaml:"log_level"`
	TickInterval time.Duration `yaml:"tick_interval"`
	PIDFile      string        `yaml:"pid_file"`
}

// RunLogConfig defines run history storage settings.
type RunLogConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the bearer token clients must present. Empty disables auth.
	APIKey string `yaml:"api_key"`
}

// JobConf defines one external program and the fields exchanged with it.
type JobConf struct {
	Exec     string                `yaml:"exec"`
	Args     []string              `yaml:"args,omitempty"`
	Dir      string                `yaml:"dir,omitempty"`
	Timeout  time.Duration         `yaml:"timeout,omitempty"`
	Schedule *ScheduleConfig       `yaml:"schedule,omitempty"`
	Inputs   map[string]field.Spec `yaml:"inputs,omitempty"`
	Outputs  map[string]field.Spec `yaml:"outputs,omitempty"`
}

// ScheduleConfig makes a job fire on its own clock instead of (or as well
// as) external triggers.
type ScheduleConfig struct {
	Every  string        `yaml:"every"` // e.g., "5m", "hourly"
	Jitter time.Duration `yaml:"jitter,omitempty"`
}

const (
	// DefaultTimeout bounds a job whose config does not say otherwise.
	DefaultTimeout = 60 * time.Second
	// MinTimeout is the floor a configured timeout is clamped to.
	MinTimeout = 100 * time.Millisecond
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:         "asubexec",
			LogLevel:     "info",
			TickInterval: 1 * time.Second,
			PIDFile:      "./data/asubexec.pid",
		},
		RunLog: RunLogConfig{
			Path: "./data/runs.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Jobs: make(map[string]JobConf),
	}
}
