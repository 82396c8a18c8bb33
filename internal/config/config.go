package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds driver settings loaded from ~/.ghostwire/config.yaml.
type Config struct {
	Executable  string            `yaml:"executable"`
	Host        string            `yaml:"host,omitempty"`
	Port        int               `yaml:"port,omitempty"` // 0 picks a free port at run time
	Args        []string          `yaml:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	LogPath     string            `yaml:"log_path,omitempty"`
	StopTimeout Duration          `yaml:"stop_timeout,omitempty"`
	AuditLog    string            `yaml:"audit_log,omitempty"` // empty disables the lifecycle journal
	API         API               `yaml:"api,omitempty"`
	Ready       Ready             `yaml:"ready,omitempty"`
}

// API configures the control API served by "ghostwire run". Either field
// may be empty; with both empty the API is off.
type API struct {
	Addr   string `yaml:"addr,omitempty"`
	Socket string `yaml:"socket,omitempty"`
}

// Ready configures the readiness probe run after the driver starts.
type Ready struct {
	Type     string   `yaml:"type,omitempty"` // "tcp" | "http"
	Path     string   `yaml:"path,omitempty"` // http only
	Timeout  Duration `yaml:"timeout,omitempty"`
	Interval Duration `yaml:"interval,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling from strings like "10s", "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{
		Executable:  "phantomjs",
		Host:        "localhost",
		LogPath:     "ghostdriver.log",
		StopTimeout: Duration{10 * time.Second},
		Ready: Ready{
			Type:     "tcp",
			Path:     "/wd/hub/status",
			Timeout:  Duration{30 * time.Second},
			Interval: Duration{100 * time.Millisecond},
		},
	}
}

// DefaultPath returns the default config file path: ~/.ghostwire/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ghostwire", "config.yaml")
}

// Load reads a YAML config file from path over the defaults. If the file
// does not exist, it returns the defaults and no error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	if c.Executable == "" {
		return fmt.Errorf("executable is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	switch c.Ready.Type {
	case "tcp", "http":
		// ok
	default:
		return fmt.Errorf("ready.type must be \"tcp\" or \"http\", got %q", c.Ready.Type)
	}
	if c.Ready.Type == "http" && (c.Ready.Path == "" || c.Ready.Path[0] != '/') {
		return fmt.Errorf("ready.path must start with /, got %q", c.Ready.Path)
	}
	if c.Ready.Timeout.Duration <= 0 {
		return fmt.Errorf("ready.timeout must be positive")
	}
	if c.Ready.Interval.Duration <= 0 {
		return fmt.Errorf("ready.interval must be positive")
	}
	return nil
}

// EnvList returns Env as sorted KEY=VALUE entries.
func (c *Config) EnvList() []string {
	if len(c.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
