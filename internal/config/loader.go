package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const enabledPluginsKey = "enabled_plugins"

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config", Err: err}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	cfg.PluginsDir = expandHome(cfg.PluginsDir)
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// Init writes a default config to path. An existing file is left alone
// unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return &ConfigError{Message: "config already exists: " + path}
	}
	return Save(path, Defaults())
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config", Err: err}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EnablePlugin appends name to enabled_plugins in the file at path. The
// list order is the order plugins are enabled at startup.
func EnablePlugin(path, name string) error {
	return updateEnabled(path, func(names []string) []string {
		if slices.Contains(names, name) {
			return names
		}
		return append(names, name)
	})
}

// DisablePlugin removes name from enabled_plugins in the file at path.
func DisablePlugin(path, name string) error {
	return updateEnabled(path, func(names []string) []string {
		return slices.DeleteFunc(names, func(n string) bool { return n == name })
	})
}

// updateEnabled edits the raw document so keys lla does not know survive.
func updateEnabled(path string, edit func([]string) []string) error {
	raw, err := LoadRaw(path)
	if err != nil {
		return err
	}
	var names []string
	if list, ok := raw[enabledPluginsKey].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
	}
	names = edit(names)
	if names == nil {
		names = []string{}
	}
	raw[enabledPluginsKey] = names
	return SaveRaw(path, raw)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.DefaultSort == "" {
		cfg.DefaultSort = "name"
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = "default"
	}
	if cfg.EnabledPlugins == nil {
		cfg.EnabledPlugins = []string{}
	}
	if cfg.Listers.Recursive.MaxEntries == 0 {
		cfg.Listers.Recursive.MaxEntries = DefaultMaxEntries
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Shortcuts == nil {
		cfg.Shortcuts = map[string]ShortcutCommand{}
	}
}

// applyEnvOverrides reads LLA_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLA_PLUGINS_DIR"); v != "" {
		cfg.PluginsDir = v
	}
	if v := os.Getenv("LLA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LLA_DEFAULT_FORMAT"); v != "" {
		cfg.DefaultFormat = strings.ToLower(v)
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
