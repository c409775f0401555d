package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

const (
	DefaultMaxEntries = 20_000
	DefaultCacheSize  = 4096
)

// Defaults returns a Config with sensible defaults applied. PluginsDir is
// left empty and resolved from Paths.
func Defaults() Config {
	return Config{
		DefaultSort:    "name",
		DefaultFormat:  "default",
		EnabledPlugins: []string{},
		DefaultDepth:   3,
		Listers: ListerConfig{
			Recursive: RecursiveConfig{MaxEntries: DefaultMaxEntries},
		},
		Decoration: DecorationConfig{
			CacheSize: DefaultCacheSize,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		Shortcuts: map[string]ShortcutCommand{},
	}
}
