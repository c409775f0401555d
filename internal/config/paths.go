package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Paths holds resolved filesystem locations for lla state.
type Paths struct {
	Base    string // ~/.config/lla
	Config  string // ~/.config/lla/config.yaml
	Plugins string // ~/.config/lla/plugins
	DB      string // ~/.config/lla/lla.db
}

// ResolvePaths computes the standard paths. LLA_HOME overrides the base
// directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("LLA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, ".config", "lla")
	}
	return PathsAt(base), nil
}

// PathsAt lays out the standard paths under base.
func PathsAt(base string) Paths {
	return Paths{
		Base:    base,
		Config:  filepath.Join(base, "config.yaml"),
		Plugins: filepath.Join(base, "plugins"),
		DB:      filepath.Join(base, "lla.db"),
	}
}

// PluginsDir is the configured plugins directory, or the standard one.
func (p Paths) PluginsDir(cfg Config) string {
	if cfg.PluginsDir != "" {
		return cfg.PluginsDir
	}
	return p.Plugins
}

// EnsureDirs creates the base and plugins directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Plugins} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// topLevelKeys are the keys a config path may start with.
var topLevelKeys = []string{
	"default_sort", "default_format", "enabled_plugins", "plugins_dir",
	"default_depth", "show_icons", "sort", "filter", "listers",
	"decoration", "logging", "shortcuts",
}

// ParseConfigPath splits a dot-separated config path such as
// "sort.dirs_first" into segments. The first segment must be a known key.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
	}
	if !slices.Contains(topLevelKeys, parts[0]) {
		return nil, &ConfigError{Message: "unknown config key: " + parts[0]}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			return false
		}
		m, ok := next.(map[string]any)
		if !ok {
			return false
		}
		current = m
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
