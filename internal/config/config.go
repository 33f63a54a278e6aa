// Package config loads the resolvecache configuration.
//
// Values merge in this order, later wins: built-in defaults, the YAML
// config file, then environment variables and command line flags.
package config

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kushalsai-01/resolvecache/internal/cache"
	"github.com/kushalsai-01/resolvecache/internal/errors"
)

// Upstream kinds.
const (
	UpstreamSimulated = "simulated"
	UpstreamDNS       = "dns"
	UpstreamRedis     = "redis"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Cache    CacheConfig    `yaml:"cache"`
	Upstream UpstreamConfig `yaml:"upstream"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MetricsAddr serves /metrics; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

type CacheConfig struct {
	Capacity       int           `yaml:"capacity"`
	TTL            time.Duration `yaml:"ttl"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
}

type UpstreamConfig struct {
	Kind string `yaml:"kind"`
	// Delay is the artificial latency of the simulated upstream.
	Delay time.Duration `yaml:"delay"`
	Redis RedisConfig   `yaml:"redis"`
	Retry RetryConfig   `yaml:"retry"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RetryConfig retries transient upstream failures. Attempts <= 1 disables
// retrying.
type RetryConfig struct {
	Attempts     int           `yaml:"attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

func Default() *Config {
	cc := cache.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port: 5353,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Capacity:       cc.Capacity,
			TTL:            cc.TTL,
			SweepInterval:  cc.SweepInterval,
			ResolveTimeout: cc.ResolveTimeout,
		},
		Upstream: UpstreamConfig{
			Kind:  UpstreamSimulated,
			Delay: 100 * time.Millisecond,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "dns:",
			},
			Retry: RetryConfig{
				Attempts:     1,
				InitialDelay: 50 * time.Millisecond,
				MaxDelay:     time.Second,
			},
		},
	}
}

// Load reads a YAML file over the defaults. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "read config file")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err), "config", "Parse", "decode yaml")
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) []byte {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		panic(err)
	}
	return data
}

// Merge overwrites def fields with the non-zero fields of override,
// descending into nested structs.
func Merge(def, override *Config) {
	merge(reflect.ValueOf(def).Elem(), reflect.ValueOf(override).Elem())
}

func merge(def, override reflect.Value) {
	for i := 0; i < def.NumField(); i++ {
		dst, src := def.Field(i), override.Field(i)
		if dst.Kind() == reflect.Struct {
			merge(dst, src)
			continue
		}
		if !src.IsZero() {
			dst.Set(src)
		}
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("Validate", fmt.Sprintf("invalid port %d", c.Server.Port))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("Validate", fmt.Sprintf("invalid log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("Validate", fmt.Sprintf("invalid log format %q", c.Log.Format))
	}
	if err := c.CacheConfig().Validate(); err != nil {
		return err
	}
	switch c.Upstream.Kind {
	case UpstreamSimulated:
		if c.Upstream.Delay < 0 {
			return invalid("Validate", "simulated upstream delay cannot be negative")
		}
	case UpstreamDNS:
	case UpstreamRedis:
		if c.Upstream.Redis.Addr == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "redis upstream needs an address")
		}
	default:
		return invalid("Validate", fmt.Sprintf("unknown upstream kind %q", c.Upstream.Kind))
	}
	if c.Upstream.Retry.Attempts > 1 && c.Upstream.Retry.MaxDelay < c.Upstream.Retry.InitialDelay {
		return invalid("Validate", "retry max_delay must be >= initial_delay")
	}
	return nil
}

// Addr is the TCP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// CacheConfig converts the cache section.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Capacity:       c.Cache.Capacity,
		TTL:            c.Cache.TTL,
		SweepInterval:  c.Cache.SweepInterval,
		ResolveTimeout: c.Cache.ResolveTimeout,
	}
}

func invalid(op, msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "config", op, "config check")
}
