package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/soyeahso/lla/internal/config"
	"github.com/soyeahso/lla/internal/logging"
)

var (
	cfgFile    string
	logLevel   string
	pluginsDir string
	colorMode  string

	// loaded in PersistentPreRunE
	paths config.Paths
	cfg   config.Config
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "lla [path]",
		Short: "lla - a file lister extended by plugins",
		Long: "lla lists directory contents. Plugins add columns and metadata to each entry;\n" +
			"install them with `lla install` and switch them on with --enable-plugin.",
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(lenient(cmd))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args, lf)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.config/lla/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, silent)")
	pf.StringVar(&pluginsDir, "plugins-dir", "", "plugins directory (default ~/.config/lla/plugins)")
	pf.StringVar(&colorMode, "color", "auto", "color output: auto, always or never")

	lf.register(cmd)

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newPluginCmd())
	cmd.AddCommand(newListPluginsCmd())
	cmd.AddCommand(newShortcutCmd())

	return cmd
}

// setup resolves paths, loads the config and builds the logger. A lenient
// setup falls back to defaults on a broken config so it can still be fixed.
func setup(lenient bool) error {
	var err error
	paths, err = config.ResolvePaths()
	if err != nil {
		return err
	}
	if cfgFile != "" {
		paths.Config = cfgFile
	}

	cfg, err = config.Load(paths.Config)
	if err != nil {
		if !lenient {
			return err
		}
		cfg = config.Defaults()
	}
	if pluginsDir != "" {
		cfg.PluginsDir = pluginsDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if issues := config.Validate(&cfg); len(issues) > 0 && !lenient {
		msgs := make([]string, len(issues))
		for i, is := range issues {
			msgs[i] = is.String()
		}
		return &config.ConfigError{Message: "invalid configuration", Err: errors.New(strings.Join(msgs, "; "))}
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		cfg.Logging.Level = "warn"
	}
	log = logging.New(nil, cfg.Logging.Level)
	return nil
}

// lenient reports whether cmd edits the config itself.
func lenient(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "config", "init", "version":
			return true
		}
	}
	return false
}

func useColor() bool {
	switch colorMode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// Execute runs the root command.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "lla:", err)
	}
	return err
}
