package config

// Config is the root lla configuration, stored as YAML.
type Config struct {
	DefaultSort    string                     `yaml:"default_sort"`   // "name" | "size" | "date"
	DefaultFormat  string                     `yaml:"default_format"` // "default" | "long"
	EnabledPlugins []string                   `yaml:"enabled_plugins"`
	PluginsDir     string                     `yaml:"plugins_dir,omitempty"`
	DefaultDepth   int                        `yaml:"default_depth,omitempty"` // 0 = unlimited
	ShowIcons      bool                       `yaml:"show_icons,omitempty"`
	Sort           SortConfig                 `yaml:"sort,omitempty"`
	Filter         FilterConfig               `yaml:"filter,omitempty"`
	Listers        ListerConfig               `yaml:"listers,omitempty"`
	Decoration     DecorationConfig           `yaml:"decoration,omitempty"`
	Logging        LoggingConfig              `yaml:"logging,omitempty"`
	Shortcuts      map[string]ShortcutCommand `yaml:"shortcuts,omitempty"`
}

type SortConfig struct {
	DirsFirst     bool `yaml:"dirs_first,omitempty"`
	CaseSensitive bool `yaml:"case_sensitive,omitempty"`
	Natural       bool `yaml:"natural,omitempty"`
}

type FilterConfig struct {
	CaseSensitive bool `yaml:"case_sensitive,omitempty"`
}

type ListerConfig struct {
	Recursive RecursiveConfig `yaml:"recursive,omitempty"`
}

// RecursiveConfig caps recursive listings.
type RecursiveConfig struct {
	MaxEntries int `yaml:"max_entries,omitempty"`
}

// DecorationConfig tunes the plugin decoration pipeline.
type DecorationConfig struct {
	Workers   int `yaml:"workers,omitempty"`    // 0 = GOMAXPROCS
	CacheSize int `yaml:"cache_size,omitempty"` // decorated entries kept in memory
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "error" | "warn" | "info" | "debug" | "trace"
}

// ShortcutCommand maps a short name to a plugin action.
type ShortcutCommand struct {
	PluginName  string `yaml:"plugin_name"`
	Action      string `yaml:"action"`
	Description string `yaml:"description,omitempty"`
}
