package actum

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "100ms" or "1.5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("actum: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// CacheConfig configures the session result cache.
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Capacity int      `yaml:"capacity"`
	TTL      Duration `yaml:"ttl"`
}

// Config is the engine configuration. Zero values fall back to the
// defaults documented per field.
type Config struct {
	// Driver is the database/sql driver name (mysql, sqlite, postgres).
	Driver string `yaml:"driver"`
	// DSN is the data source name handed to the driver.
	DSN string `yaml:"dsn"`
	// Cache configures the result cache. Disabled by default.
	Cache CacheConfig `yaml:"cache"`
	// SlowThreshold marks queries as slow. Defaults to 100ms.
	SlowThreshold Duration `yaml:"slow_threshold"`
	// Logging toggles the query log. Defaults to on.
	Logging *bool `yaml:"logging"`
	// StrictFill makes mass-assignment violations an error.
	StrictFill bool `yaml:"strict_fill"`
}

// DefaultConfig returns a Config with the documented defaults applied.
func DefaultConfig() *Config {
	logging := true
	return &Config{
		SlowThreshold: Duration(DefaultSlowThreshold),
		Logging:       &logging,
		Cache: CacheConfig{
			Capacity: 128,
			TTL:      Duration(time.Minute),
		},
	}
}

// LoadConfig reads and parses a YAML config file on top of the
// defaults.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("actum: read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("actum: parse config: %w", err)
	}
	return cfg, nil
}

// sessionOptions translates the config into session options.
func (c *Config) sessionOptions() []SessionOption {
	var opts []SessionOption
	if c.Cache.Enabled {
		opts = append(opts, WithQueryCache(c.Cache.Capacity, time.Duration(c.Cache.TTL)))
	}
	if c.SlowThreshold > 0 {
		opts = append(opts, WithSlowThreshold(time.Duration(c.SlowThreshold)))
	}
	if c.Logging != nil && !*c.Logging {
		opts = append(opts, WithoutLogging())
	}
	if c.StrictFill {
		opts = append(opts, WithStrictFill())
	}
	return opts
}

// ApplyTunables applies the config values that are safe to change on a
// live session: the slow threshold, logging toggle and strict-fill
// mode. Connection and cache topology are fixed at open time.
func (s *Session) ApplyTunables(c *Config) {
	if c.SlowThreshold > 0 {
		s.log.SetSlowThreshold(time.Duration(c.SlowThreshold))
	}
	if c.Logging != nil {
		if *c.Logging {
			s.log.Enable()
		} else {
			s.log.Disable()
		}
	}
	s.strictFill = c.StrictFill
}

// WatchConfig watches a config file and invokes onChange with the
// re-parsed config whenever the file is written. It returns a stop
// function releasing the watcher. Parse failures are logged and the
// previous config stays in effect.
func WatchConfig(path string, onChange func(*Config)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors typically replace the file, which
	// drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(target)
				if err != nil {
					slog.Warn("config reload failed", "path", target, "err", err)
					continue
				}
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", err)
			}
		}
	}()
	return watcher.Close, nil
}
