// Package config owns the server's configuration surface: built-in
// defaults, the optional config file named by the CLI's positional
// argument, environment variables, and the CLI flags of §6.4 layered on
// top via viper. A small subset of fields is safe to hot-reload while the
// server runs; Watch arranges for that via fsnotify.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dreamware/torudis/internal/log"
)

// Config is the fully resolved server configuration.
type Config struct {
	Bind       string
	Dir        string
	DBFilename string
	AOFFilename string
	RequirePass string
	ReplicaOf   string

	Port int

	Databases int
	Shards    int

	MaxMemoryBytes  int64
	MaxClients      int
	AOFEnabled      bool
	AOFFsync        string // always | everysec | no
	SaveSeconds     int
	SaveChanges     int
	ScriptMaxRunMS       int
	ScriptMaxInstructions int

	mu sync.RWMutex
}

// Defaults returns the built-in configuration, matching the reference
// server's own stated defaults (§2-§5 of the spec).
func Defaults() *Config {
	return &Config{
		Bind:        "127.0.0.1",
		Port:        6379,
		Dir:         ".",
		DBFilename:  "dump.rdb",
		AOFFilename: "appendonly.aof",
		Databases:   16,
		Shards:      32,
		MaxMemoryBytes: 0, // 0 = unlimited
		MaxClients:     10000,
		AOFEnabled:     false,
		AOFFsync:       "everysec",
		SaveSeconds:    900,
		SaveChanges:    1,
		ScriptMaxRunMS:        5000,
		ScriptMaxInstructions: 5_000_000,
	}
}

// Load builds configuration from defaults, an optional key/value config
// file (a viper "properties" document — "key value" lines, "#" comments,
// per §6.4), environment variables prefixed TORUDIS_, and finally the
// flags bound by cmd/torudis-server's cobra command.
func Load(configFile string, bind func(*viper.Viper)) (*Config, *viper.Viper, error) {
	v := viper.New()
	cfg := Defaults()

	v.SetDefault("bind", cfg.Bind)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dir", cfg.Dir)
	v.SetDefault("dbfilename", cfg.DBFilename)
	v.SetDefault("databases", cfg.Databases)
	v.SetDefault("shards", cfg.Shards)
	v.SetDefault("maxmemory", cfg.MaxMemoryBytes)
	v.SetDefault("maxclients", cfg.MaxClients)
	v.SetDefault("appendonly", cfg.AOFEnabled)
	v.SetDefault("appendfsync", cfg.AOFFsync)
	v.SetDefault("save_seconds", cfg.SaveSeconds)
	v.SetDefault("save_changes", cfg.SaveChanges)

	v.SetEnvPrefix("TORUDIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("properties")
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if bind != nil {
		bind(v)
	}

	cfg.Bind = v.GetString("bind")
	cfg.Port = v.GetInt("port")
	cfg.Dir = v.GetString("dir")
	cfg.DBFilename = v.GetString("dbfilename")
	cfg.RequirePass = v.GetString("requirepass")
	cfg.ReplicaOf = v.GetString("replicaof")
	cfg.Databases = v.GetInt("databases")
	cfg.Shards = v.GetInt("shards")
	cfg.MaxMemoryBytes = v.GetInt64("maxmemory")
	cfg.MaxClients = v.GetInt("maxclients")
	cfg.AOFEnabled = v.GetBool("appendonly")
	cfg.AOFFsync = v.GetString("appendfsync")
	cfg.SaveSeconds = v.GetInt("save_seconds")
	cfg.SaveChanges = v.GetInt("save_changes")
	if cfg.ScriptMaxRunMS == 0 {
		cfg.ScriptMaxRunMS = 5000
	}
	if cfg.ScriptMaxInstructions == 0 {
		cfg.ScriptMaxInstructions = 5_000_000
	}

	return cfg, v, nil
}

// Watch hot-reloads the subset of fields declared safe to change live:
// maxmemory, requirepass, and the AOF fsync policy. Everything else
// requires a restart, matching the reference server's position that most
// configuration is process-lifetime-fixed.
func (c *Config) Watch(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		logger := log.Component("config")
		c.mu.Lock()
		c.MaxMemoryBytes = v.GetInt64("maxmemory")
		c.RequirePass = v.GetString("requirepass")
		c.AOFFsync = v.GetString("appendfsync")
		c.mu.Unlock()
		logger.WithField("file", e.Name).Info("reloaded live-safe configuration")
	})
	v.WatchConfig()
}

// MaxMemory returns the current maxmemory ceiling, safe for concurrent
// reads while Watch may be mutating it.
func (c *Config) MaxMemory() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxMemoryBytes
}

// RequirePassword returns the current auth password, if any.
func (c *Config) RequirePassword() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RequirePass
}

// Fsync returns the current AOF fsync policy.
func (c *Config) Fsync() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AOFFsync
}

// SaveThresholds returns the (interval, changes) pair that triggers an
// automatic BGSAVE (§4.9).
func (c *Config) SaveThresholds() (time.Duration, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.SaveSeconds) * time.Second, c.SaveChanges
}
