package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

/*
Config System Design:
Configuration is layered with the following precedence (highest to lowest):

1. Runtime overrides (CLI flags)
2. Environment variables (MCPCHAT_ prefix, plus provider API keys)
3. Local project config (.mcpchat/*.mcpchat.{yaml,json})
4. Global user config ($XDG_CONFIG_HOME/mcpchat/*.mcpchat.{yaml,json})
5. Embedded defaults (defaults.mcpchat.yaml)

Multiple files in a directory are merged alphabetically. Lists combine
without duplicates, maps merge deeply and scalars override.

Example:
~/.config/mcpchat/servers.mcpchat.yaml:  { mcpServers: { fs: {...} } }
./.mcpchat/servers.mcpchat.yaml:         { mcpServers: { git: {...} } }
The result holds both fs and git.
*/

const (
	appName    = "mcpchat"
	envPrefix  = "MCPCHAT"
	fileSuffix = "." + appName
)

//go:embed defaults.mcpchat.yaml
var defaultsYAML []byte

// envVarConfig defines an environment variable mapping
type envVarConfig struct {
	key    string // Key in the config
	envVar string // Environment variable name
}

// Environment variables to load
var envVars = []envVarConfig{
	{key: "keys.openai", envVar: "OPENAI_API_KEY"},
	{key: "keys.anthropic", envVar: "ANTHROPIC_API_KEY"},
	{key: "keys.gemini", envVar: "GEMINI_API_KEY"},
}

type configSource struct {
	value  interface{}
	source string
}

// LoadOptions points the loader at the directories it reads
type LoadOptions struct {
	GlobalDir string
	LocalDir  string
	// EnvFiles are loaded with godotenv before the environment is read
	EnvFiles []string
}

// DefaultLoadOptions returns the standard global and local locations
func DefaultLoadOptions() (LoadOptions, error) {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return LoadOptions{}, err
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return LoadOptions{
		GlobalDir: filepath.Join(xdgConfig, appName),
		LocalDir:  "." + appName,
		EnvFiles:  defaultEnvFiles(),
	}, nil
}

// New loads configuration from the standard locations
func New(overrides *RuntimeOverrides) (*ConfigSchema, error) {
	opts, err := DefaultLoadOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directories: %w", err)
	}
	return Load(opts, overrides)
}

// Load builds, validates and returns the merged configuration
func Load(opts LoadOptions, overrides *RuntimeOverrides) (*ConfigSchema, error) {
	loadEnvFiles(opts.EnvFiles)

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
		return nil, fmt.Errorf("could not read defaults: %w", err)
	}

	sources := make(map[string][]configSource)
	for _, dir := range []string{opts.GlobalDir, opts.LocalDir} {
		if dir == "" {
			continue
		}
		if err := loadDir(v, dir, sources); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, env := range envVars {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env.envVar, err)
		}
		if os.Getenv(env.envVar) != "" {
			sources[env.key] = append(sources[env.key], configSource{
				value:  "[REDACTED]",
				source: env.envVar + " environment variable",
			})
		}
	}

	var cfg ConfigSchema
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.ActiveModel = strings.ToLower(cfg.ActiveModel)
	cfg.settings = v.AllSettings()
	cfg.sources = sources

	if err := overrides.apply(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDir(v *viper.Viper, dir string, sources map[string][]configSource) error {
	files, err := findConfigFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, f := range files {
		fv := viper.New()
		fv.SetConfigFile(f)
		if err := fv.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", f, err)
		}

		settings := fv.AllSettings()
		for _, key := range unknownKeys(settings) {
			slog.Warn("unknown configuration key", "key", key, "file", f)
		}
		for key, value := range settings {
			sources[key] = append(sources[key], configSource{value: value, source: f})
		}

		if err := mergeConfig(v, settings); err != nil {
			return fmt.Errorf("error merging config from %s: %w", f, err)
		}
	}
	return nil
}

// findConfigFiles returns all *.mcpchat.{yaml,yml,json} files in a directory, sorted
func findConfigFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, ext := range []string{".yaml", ".yml", ".json"} {
			if strings.HasSuffix(name, fileSuffix+ext) {
				files = append(files, filepath.Join(dir, name))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func mergeConfig(v *viper.Viper, settings map[string]interface{}) error {
	for key, value := range settings {
		existing := v.Get(key)
		if existing == nil {
			v.Set(key, value)
			continue
		}

		switch existingVal := existing.(type) {
		case []interface{}:
			newSlice, ok := value.([]interface{})
			if !ok {
				return fmt.Errorf("type mismatch for key %s: expected list, got %T", key, value)
			}
			v.Set(key, mergeSlices(existingVal, newSlice))

		case map[string]interface{}:
			newMap, ok := value.(map[string]interface{})
			if !ok {
				return fmt.Errorf("type mismatch for key %s: expected map, got %T", key, value)
			}
			v.Set(key, mergeMapRecursive(existingVal, newMap))

		default:
			v.Set(key, value)
		}
	}
	return nil
}

// mergeSlices appends b to a, dropping scalar duplicates
func mergeSlices(a, b []interface{}) []interface{} {
	seen := make(map[string]bool)
	out := make([]interface{}, 0, len(a)+len(b))
	for _, item := range append(append([]interface{}{}, a...), b...) {
		k := fmt.Sprintf("%T:%v", item, item)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
	}
	return out
}

func mergeMapRecursive(existing, incoming map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(existing)+len(incoming))
	for k, v := range existing {
		result[k] = v
	}

	for k, v := range incoming {
		switch existingVal := existing[k].(type) {
		case map[string]interface{}:
			if newVal, ok := v.(map[string]interface{}); ok {
				result[k] = mergeMapRecursive(existingVal, newVal)
				continue
			}
		case []interface{}:
			if newVal, ok := v.([]interface{}); ok {
				result[k] = mergeSlices(existingVal, newVal)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// Validate validates the configuration against the schema
func (s *ConfigSchema) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("config validation error: %w", err)
	}

	if _, ok := s.ModelPresets[s.ActiveModel]; !ok {
		return fmt.Errorf("activeModel %q must be one of the configured presets: %v", s.ActiveModel, s.PresetNames())
	}
	for name := range s.MCPServers {
		if strings.Contains(name, "__") {
			return fmt.Errorf("mcp server name %q cannot contain '__'", name)
		}
	}
	return nil
}

// PresetNames returns the configured model preset keys in order
func (s *ConfigSchema) PresetNames() []string {
	names := make([]string, 0, len(s.ModelPresets))
	for name := range s.ModelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
