package config

import (
	"fmt"
	"slices"
)

var (
	ValidSorts     = []string{"name", "size", "date"}
	ValidFormats   = []string{"default", "long"}
	ValidLogLevels = []string{"silent", "error", "warn", "info", "debug", "trace"}
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("must be one of %v, got %q", valid, value),
			})
		}
	}

	oneOf("default_sort", cfg.DefaultSort, ValidSorts)
	oneOf("default_format", cfg.DefaultFormat, ValidFormats)
	oneOf("logging.level", cfg.Logging.Level, ValidLogLevels)

	if cfg.DefaultDepth < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "default_depth",
			Message: fmt.Sprintf("must be 0 (unlimited) or positive, got %d", cfg.DefaultDepth),
		})
	}
	if cfg.Listers.Recursive.MaxEntries < 0 || cfg.Listers.Recursive.MaxEntries > 100_000 {
		issues = append(issues, ValidationIssue{
			Path:    "listers.recursive.max_entries",
			Message: fmt.Sprintf("must be between 0 and 100000, got %d", cfg.Listers.Recursive.MaxEntries),
		})
	}
	if cfg.Decoration.Workers < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "decoration.workers",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Decoration.Workers),
		})
	}
	if cfg.Decoration.CacheSize < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "decoration.cache_size",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Decoration.CacheSize),
		})
	}

	seen := map[string]bool{}
	for i, name := range cfg.EnabledPlugins {
		path := fmt.Sprintf("enabled_plugins[%d]", i)
		switch {
		case name == "":
			issues = append(issues, ValidationIssue{Path: path, Message: "plugin name is empty"})
		case seen[name]:
			issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf("%q listed twice", name)})
		}
		seen[name] = true
	}

	names := make([]string, 0, len(cfg.Shortcuts))
	for name := range cfg.Shortcuts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		sc := cfg.Shortcuts[name]
		if sc.PluginName == "" {
			issues = append(issues, ValidationIssue{Path: "shortcuts." + name + ".plugin_name", Message: "plugin name is required"})
		}
		if sc.Action == "" {
			issues = append(issues, ValidationIssue{Path: "shortcuts." + name + ".action", Message: "action is required"})
		}
	}

	return issues
}
