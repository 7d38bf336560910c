package config

import (
	"fmt"
	"time"

	reflector "github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Duration is a time.Duration written as a Go duration string ("60s", "100ms")
// in YAML and TOML files.
type Duration struct {
	time.Duration
}

// D is shorthand for constructing a Duration.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// JSONSchema describes Duration as a duration string.
func (Duration) JSONSchema() *reflector.Schema {
	return &reflector.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string, e.g. 60s or 100ms",
	}
}

// Registration modes.
const (
	RegistrationAsk   = "ask"
	RegistrationAuto  = "auto"
	RegistrationNever = "never"
)

// WatchConfig tunes the state file watcher.
type WatchConfig struct {
	SettleDelay       Duration `yaml:"settle_delay,omitempty" toml:"settle_delay,omitempty" jsonschema:"description=Wait after a rename or delete before re-opening the state file"`
	OpenRetryInterval Duration `yaml:"open_retry_interval,omitempty" toml:"open_retry_interval,omitempty" jsonschema:"description=Interval between attempts to open a state file that does not exist yet"`
	OpenRetryLimit    int      `yaml:"open_retry_limit,omitempty" toml:"open_retry_limit,omitempty" jsonschema:"minimum=1,description=Maximum attempts to open a missing state file"`
}

// LockConfig tunes lock acquisition backoff.
type LockConfig struct {
	InitialBackoff Duration `yaml:"initial_backoff,omitempty" toml:"initial_backoff,omitempty" jsonschema:"description=First retry delay"`
	MaxBackoff     Duration `yaml:"max_backoff,omitempty" toml:"max_backoff,omitempty" jsonschema:"description=Upper bound of the doubling retry delay"`
	Retries        int      `yaml:"retries,omitempty" toml:"retries,omitempty" jsonschema:"minimum=0,description=Retries before inspecting the holder"`
}

// RegistrationConfig controls hook registration.
type RegistrationConfig struct {
	Mode           string `yaml:"mode,omitempty" toml:"mode,omitempty" jsonschema:"enum=ask,enum=auto,enum=never,description=How consent for hook registration is obtained"`
	GlobalSettings string `yaml:"global_settings,omitempty" toml:"global_settings,omitempty" jsonschema:"description=Global hook settings document"`
	LocalSettings  string `yaml:"local_settings,omitempty" toml:"local_settings,omitempty" jsonschema:"description=Project-local hook settings document, relative to the project directory"`
	Command        string `yaml:"command,omitempty" toml:"command,omitempty" jsonschema:"description=Command registered for each hook event"`
}

// DiscoveryConfig controls agent process discovery.
type DiscoveryConfig struct {
	ProcessNames []string `yaml:"process_names,omitempty" toml:"process_names,omitempty" jsonschema:"description=Executable names identifying agent processes"`
	Ignore       []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" jsonschema:"description=Directory patterns never offered hook registration"`
}

// Config is the agentwatch configuration file.
type Config struct {
	StateFile     string             `yaml:"state_file,omitempty" toml:"state_file,omitempty" jsonschema:"description=Path of the shared session state file"`
	MaxTracked    int                `yaml:"max_tracked,omitempty" toml:"max_tracked,omitempty" jsonschema:"minimum=1,description=Maximum number of sessions surfaced at once"`
	StaleAfter    Duration           `yaml:"stale_after,omitempty" toml:"stale_after,omitempty" jsonschema:"description=Idle sessions older than this are evicted"`
	SweepInterval Duration           `yaml:"sweep_interval,omitempty" toml:"sweep_interval,omitempty" jsonschema:"description=How often idle sessions are checked for eviction"`
	PollInterval  Duration           `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty" jsonschema:"description=How often agent processes are discovered"`
	Watch         WatchConfig        `yaml:"watch,omitempty" toml:"watch,omitempty"`
	Lock          LockConfig         `yaml:"lock,omitempty" toml:"lock,omitempty"`
	Registration  RegistrationConfig `yaml:"registration,omitempty" toml:"registration,omitempty"`
	Discovery     DiscoveryConfig    `yaml:"discovery,omitempty" toml:"discovery,omitempty"`

	// Extensions holds top-level sections owned by other packages, such as "logging".
	Extensions map[string]interface{} `yaml:"-" toml:"-" json:"-" jsonschema:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxTracked:    5,
		StaleAfter:    D(300 * time.Second),
		SweepInterval: D(60 * time.Second),
		PollInterval:  D(3 * time.Second),
		Watch: WatchConfig{
			SettleDelay:       D(100 * time.Millisecond),
			OpenRetryInterval: D(time.Second),
			OpenRetryLimit:    30,
		},
		Lock: LockConfig{
			InitialBackoff: D(10 * time.Millisecond),
			MaxBackoff:     D(160 * time.Millisecond),
			Retries:        9,
		},
		Registration: RegistrationConfig{
			Mode:          RegistrationAsk,
			LocalSettings: ".claude/settings.local.json",
		},
		Discovery: DiscoveryConfig{
			ProcessNames: []string{"claude"},
		},
		Extensions: make(map[string]interface{}),
	}
}

// UnmarshalExtension decodes a top-level section owned by another package
// into target, which must be a pointer. A missing section leaves target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     target,
		TagName:    "yaml",
		DecodeHook: mapstructure.TextUnmarshallerHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
