package cachebay

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/transport"
)

// ConfigError is returned by an Option that rejects its input.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("cachebay: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("cachebay: config error for %q: %s", e.Option, e.Message)
}

// NewConfigError builds a *ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{Option: option, Value: value, Message: message}
}

// CachePolicy is the fetch/emit decision table executeQuery consults
// (spec §4.6).
type CachePolicy string

const (
	PolicyCacheOnly       CachePolicy = "cache-only"
	PolicyCacheFirst      CachePolicy = "cache-first"
	PolicyCacheAndNetwork CachePolicy = "cache-and-network"
	PolicyNetworkOnly     CachePolicy = "network-only"
)

// Logger is the minimal injectable diagnostics sink the coordinator and
// OptimisticHandle use for non-fatal conditions (a dropped stale
// response, an optimistic commit or rollback). The plan compiler logs
// nothing. Defaults to a no-op; the core itself never
// requires a logging library (spec §1 excludes "development tooling,
// logging" as a cache concern).
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}

// Config is built with functional options, mirroring the teacher's
// compiler/gen/option.go idiom: each With* returns an Option that
// mutates a *Config and returns a *ConfigError on invalid input.
type Config struct {
	Keys       map[string]document.KeyFunc
	Interfaces map[string][]string

	HydrationTimeout  time.Duration
	SuspensionTimeout time.Duration

	Transport   transport.Transport
	CachePolicy CachePolicy

	Logger       Logger
	SnapshotStore SnapshotStore
}

// Option configures a Config.
type Option func(*Config) error

// NewConfig applies opts over a Config with the spec's defaults
// (hydrationTimeout=100ms, suspensionTimeout=1000ms, cachePolicy
// network-only, a no-op Logger) and returns the first error
// encountered, if any.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		Keys:              map[string]document.KeyFunc{},
		Interfaces:        map[string][]string{},
		HydrationTimeout:  100 * time.Millisecond,
		SuspensionTimeout: 1000 * time.Millisecond,
		CachePolicy:       PolicyNetworkOnly,
		Logger:            noopLogger{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.Transport.HTTP == nil {
		return nil, NewConfigError("Transport", nil, "transport.HTTP is required")
	}
	return c, nil
}

// WithKeys registers a per-__typename key function used instead of the
// default Node-like "id" rule (spec §4.4 step 3).
func WithKeys(keys map[string]document.KeyFunc) Option {
	return func(c *Config) error {
		for typename, fn := range keys {
			c.Keys[typename] = fn
		}
		return nil
	}
}

// WithInterfaces registers the concrete types implementing each
// interface/union name, used to resolve type-conditioned fragments
// (spec §6.3).
func WithInterfaces(interfaces map[string][]string) Option {
	return func(c *Config) error {
		for name, concretes := range interfaces {
			c.Interfaces[name] = concretes
		}
		return nil
	}
}

// WithHydrationTimeout sets Config.HydrationTimeout, which is passed to
// the coordinator. The coordinator stores it but does not read it: the
// network-only policy serves cached data during hydration based on the
// coordinator's Hydrating flag alone, with no time limit.
func WithHydrationTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return NewConfigError("HydrationTimeout", d, "must be >= 0")
		}
		c.HydrationTimeout = d
		return nil
	}
}

// WithSuspensionTimeout sets the window within which a repeated query
// for the same strict signature is served from cache without a new
// fetch (spec §4.6).
func WithSuspensionTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return NewConfigError("SuspensionTimeout", d, "must be >= 0")
		}
		c.SuspensionTimeout = d
		return nil
	}
}

// WithTransport sets the network transport. Required.
func WithTransport(t transport.Transport) Option {
	return func(c *Config) error {
		if t.HTTP == nil {
			return NewConfigError("Transport", nil, "transport.HTTP is required")
		}
		c.Transport = t
		return nil
	}
}

// WithCachePolicy sets the default cache policy new watchers use when
// none is specified per-call.
func WithCachePolicy(p CachePolicy) Option {
	return func(c *Config) error {
		switch p {
		case PolicyCacheOnly, PolicyCacheFirst, PolicyCacheAndNetwork, PolicyNetworkOnly:
			c.CachePolicy = p
			return nil
		default:
			return NewConfigError("CachePolicy", p, "unknown cache policy")
		}
	}
}

// WithLogger overrides the default no-op Logger.
func WithLogger(l Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// WithSnapshotStore sets Config.SnapshotStore, a persisted snapshot
// backend. Dehydrate and Hydrate do not read it.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(c *Config) error {
		c.SnapshotStore = s
		return nil
	}
}

// yamlConfig is the declarative subset of Config that can be checked
// into a repo (timeouts and default cache policy), mirroring the
// teacher's gqlgen.yml-style config loading.
type yamlConfig struct {
	HydrationTimeoutMS  int    `yaml:"hydrationTimeoutMs"`
	SuspensionTimeoutMS int    `yaml:"suspensionTimeoutMs"`
	CachePolicy         string `yaml:"cachePolicy"`
}

// LoadConfigYAML parses declarative defaults from YAML and returns
// Options applying them, to be combined with the required WithTransport
// (and any other programmatic options) at NewConfig time.
func LoadConfigYAML(data []byte) ([]Option, error) {
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, NewConfigError("YAML", nil, err.Error())
	}

	var opts []Option
	if y.HydrationTimeoutMS > 0 {
		opts = append(opts, WithHydrationTimeout(time.Duration(y.HydrationTimeoutMS)*time.Millisecond))
	}
	if y.SuspensionTimeoutMS > 0 {
		opts = append(opts, WithSuspensionTimeout(time.Duration(y.SuspensionTimeoutMS)*time.Millisecond))
	}
	if y.CachePolicy != "" {
		opts = append(opts, WithCachePolicy(CachePolicy(y.CachePolicy)))
	}
	return opts, nil
}
