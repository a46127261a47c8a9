// Package config loads hostcache settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is shared by the daemon, the CLI and the MCP server.
type Config struct {
	// Socket is the unix socket hostcached listens on.
	Socket string `yaml:"socket"`
	// DBPath is the bbolt file backing the daemon.
	DBPath string `yaml:"db_path"`
	// StateDir holds the install ID.
	StateDir string `yaml:"state_dir"`
	// Namespace scopes keys; empty means the install ID.
	Namespace string `yaml:"namespace"`
	// TTL is the driver's maximum entry lifetime in seconds.
	TTL int `yaml:"ttl"`
	// EnableCLI lets command-line tools use the daemon.
	EnableCLI     bool          `yaml:"enable_cli"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	LogPath       string        `yaml:"log_path"`
	LogLevel      string        `yaml:"log_level"`
}

// Default returns a Config with the runtime directory as its home.
func Default() *Config {
	run := runtimeDir()
	return &Config{
		Socket:        filepath.Join(run, "cache.sock"),
		DBPath:        filepath.Join(run, "cache.bbolt"),
		StateDir:      stateDir(),
		TTL:           300,
		SweepInterval: 30 * time.Second,
		LogLevel:      "info",
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads path when it is non-empty and then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	LoadFromEnv(cfg)
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("HOSTCACHE_SOCK"); v != "" {
		cfg.Socket = v
	}
	if v := os.Getenv("HOSTCACHE_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("HOSTCACHE_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("HOSTCACHE_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("HOSTCACHE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TTL = n
		}
	}
	if v := os.Getenv("HOSTCACHE_ENABLE_CLI"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableCLI = b
		}
	}
	if v := os.Getenv("HOSTCACHE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("HOSTCACHE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// ResolveNamespace returns the configured namespace, falling back to the
// install ID kept in StateDir.
func (c *Config) ResolveNamespace() (string, error) {
	if c.Namespace != "" {
		return c.Namespace, nil
	}
	return InstallID(c.StateDir)
}

const installIDFile = "install-id"

// InstallID returns the identifier of this installation, creating and
// persisting a new UUID on first use.
func InstallID(dir string) (string, error) {
	path := filepath.Join(dir, installIDFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", err
	}
	return id, nil
}

// runtimeDir prefers XDG_RUNTIME_DIR, which is cleared on reboot.
func runtimeDir() string {
	if d := os.Getenv("XDG_RUNTIME_DIR"); d != "" {
		return filepath.Join(d, "hostcache")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("hostcache-%d", os.Getuid()))
}

func stateDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "hostcache")
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".config", "hostcache")
}
