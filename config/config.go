package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/grovetools/agentwatch/errors"
	"github.com/grovetools/agentwatch/pkg/paths"
	"github.com/grovetools/agentwatch/schema"
	"github.com/grovetools/agentwatch/util/pathutil"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames are searched in the config directory, in order.
var configNames = []string{"config.yml", "config.yaml", "config.toml"}

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// FindConfigFile returns the first config file present in dir, or "" if none exists.
func FindConfigFile(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadDefault loads the config file from the agentwatch config directory.
// A missing file yields the built-in defaults.
func LoadDefault() (*Config, error) {
	path := FindConfigFile(paths.ConfigDir())
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Load reads, validates and decodes the config file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytes(data, formatOf(path))
	if err != nil {
		if awErr, ok := err.(*errors.AgentwatchError); ok {
			return nil, awErr.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFromBytes decodes config content in the given format ("yaml" or "toml").
func LoadFromBytes(data []byte, format string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	raw := make(map[string]interface{})
	switch format {
	case "toml":
		if err := toml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML config")
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML config")
		}
	}

	if err := Validate(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "config does not match schema")
	}

	cfg := Default()
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     cfg,
		TagName:    "yaml",
		Metadata:   &md,
		DecodeHook: mapstructure.TextUnmarshallerHookFunc(),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create config decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode config")
	}

	// Unknown top-level sections belong to other packages.
	for _, key := range md.Unused {
		if strings.Contains(key, ".") || strings.Contains(key, "[") {
			continue
		}
		cfg.Extensions[key] = raw[key]
	}

	return cfg, nil
}

// Validate checks a raw config document against the schema reflected from Config.
func Validate(raw map[string]interface{}) error {
	validatorOnce.Do(func() {
		validator, validatorErr = schema.NewValidator(&Config{})
	})
	if validatorErr != nil {
		return validatorErr
	}
	return validator.Validate(raw)
}

//go:generate go run ../tools/schema-generator -o ../schema/agentwatch.schema.json

// Schema returns the JSON Schema describing the config file.
func Schema() ([]byte, error) {
	return schema.Generate(&Config{})
}

// StatePath returns the resolved state file path.
func (c *Config) StatePath() string {
	if c.StateFile == "" {
		return paths.StateFilePath()
	}
	if p, err := pathutil.Expand(c.StateFile); err == nil {
		return p
	}
	return c.StateFile
}

// GlobalSettingsPath returns the resolved global hook settings path.
func (c *Config) GlobalSettingsPath() string {
	if c.Registration.GlobalSettings == "" {
		return paths.ClaudeGlobalSettings()
	}
	if p, err := pathutil.Expand(c.Registration.GlobalSettings); err == nil {
		return p
	}
	return c.Registration.GlobalSettings
}

// HookCommand returns the command registered for every hook event.
func (c *Config) HookCommand() string {
	if c.Registration.Command != "" {
		return c.Registration.Command
	}
	exe, err := os.Executable()
	if err != nil {
		exe = "agentwatch"
	}
	return hookCommandFor(exe)
}

// shellSpecial holds the characters that make a path unsafe to splice into
// a shell command unquoted.
const shellSpecial = " \t\n'\"\\$`;&|<>()*?[]{}#~!"

func hookCommandFor(exe string) string {
	if strings.ContainsAny(exe, shellSpecial) {
		exe = "'" + strings.ReplaceAll(exe, "'", `'\''`) + "'"
	}
	return exe + " hook"
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// expandEnvVars replaces ${VAR} references with environment values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRegex.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
