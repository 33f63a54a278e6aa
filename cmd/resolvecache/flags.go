package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/kushalsai-01/resolvecache/internal/config"
)

// CLIConfig holds command-line configuration. Zero values mean "not set"
// and leave the file or default value in place.
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	Host        string
	Port        int
	MetricsAddr string
	Upstream    string
	RedisAddr   string
	Capacity    int
	TTL         time.Duration
	Sweep       time.Duration
	Demo        bool
	ShowVersion bool
	Validate    bool
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("RESOLVECACHE_CONFIG", ""),
		"Path to YAML configuration file (env: RESOLVECACHE_CONFIG)")
	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("RESOLVECACHE_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: RESOLVECACHE_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("RESOLVECACHE_LOG_FORMAT", ""),
		"Log format: json, text (env: RESOLVECACHE_LOG_FORMAT)")
	fs.StringVar(&cfg.Host, "host",
		getEnv("RESOLVECACHE_HOST", ""),
		"Listen host (env: RESOLVECACHE_HOST)")
	fs.IntVar(&cfg.Port, "port",
		getEnvInt("RESOLVECACHE_PORT", 0),
		"Listen port, default 5353 (env: RESOLVECACHE_PORT)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr",
		getEnv("RESOLVECACHE_METRICS_ADDR", ""),
		"Prometheus /metrics address, empty to disable (env: RESOLVECACHE_METRICS_ADDR)")
	fs.StringVar(&cfg.Upstream, "upstream",
		getEnv("RESOLVECACHE_UPSTREAM", ""),
		"Upstream kind: simulated, dns, redis (env: RESOLVECACHE_UPSTREAM)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr",
		getEnv("RESOLVECACHE_REDIS_ADDR", ""),
		"Redis address for the redis upstream (env: RESOLVECACHE_REDIS_ADDR)")
	fs.IntVar(&cfg.Capacity, "capacity",
		getEnvInt("RESOLVECACHE_CAPACITY", 0),
		"Maximum number of cached keys (env: RESOLVECACHE_CAPACITY)")
	fs.DurationVar(&cfg.TTL, "ttl",
		getEnvDuration("RESOLVECACHE_TTL", 0),
		"Entry time to live (env: RESOLVECACHE_TTL)")
	fs.DurationVar(&cfg.Sweep, "sweep-interval",
		getEnvDuration("RESOLVECACHE_SWEEP_INTERVAL", 0),
		"Expiry sweep period (env: RESOLVECACHE_SWEEP_INTERVAL)")
	fs.BoolVar(&cfg.Demo, "demo",
		getEnvBool("RESOLVECACHE_DEMO", false),
		"Run the walkthrough against the simulated upstream and exit (env: RESOLVECACHE_DEMO)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, nil
}

// overrides returns the flag and environment values as a sparse config.
func (c *CLIConfig) overrides() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        c.Host,
			Port:        c.Port,
			MetricsAddr: c.MetricsAddr,
		},
		Log: config.LogConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
		},
		Cache: config.CacheConfig{
			Capacity:      c.Capacity,
			TTL:           c.TTL,
			SweepInterval: c.Sweep,
		},
		Upstream: config.UpstreamConfig{
			Kind:  c.Upstream,
			Redis: config.RedisConfig{Addr: c.RedisAddr},
		},
	}
}

// loadConfig layers defaults, the config file and the command line.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cli.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(cli.ConfigPath); err != nil {
			return nil, err
		}
	}
	config.Merge(cfg, cli.overrides())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
