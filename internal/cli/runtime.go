package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/soyeahso/lla/internal/builtin"
	"github.com/soyeahso/lla/internal/hooks"
	"github.com/soyeahso/lla/internal/plugin"
	"github.com/soyeahso/lla/internal/store"
)

// pluginRuntime is the plugin machinery one command works with.
type pluginRuntime struct {
	hooks    *hooks.Manager
	manager  *plugin.Manager
	dir      string
	db       *store.DB
	installs *store.InstallStore
}

type runtimeOptions struct {
	// out receives built-in plugin action output.
	out io.Writer
	// store opens the install database.
	store bool
	// discover loads libraries from the plugins directory.
	discover bool
}

func openRuntime(opts runtimeOptions) (*pluginRuntime, error) {
	rt := &pluginRuntime{
		hooks: hooks.NewManager(log),
		dir:   paths.PluginsDir(cfg),
	}

	m, err := plugin.NewManager(rt.hooks, log, plugin.ManagerOptions{
		ConfigPath: paths.Config,
		Decoration: plugin.DecoratorOptions{
			Workers:   cfg.Decoration.Workers,
			CacheSize: cfg.Decoration.CacheSize,
		},
	})
	if err != nil {
		return nil, err
	}
	rt.manager = m

	out := opts.out
	if out == nil {
		out = os.Stdout
	}
	if err := builtin.Register(m, builtin.Options{Dir: paths.Base, Out: out}); err != nil {
		rt.close()
		return nil, fmt.Errorf("registering built-in plugins: %w", err)
	}

	if opts.discover {
		_, rejected, err := m.Discover(rt.dir)
		if err != nil {
			rt.close()
			return nil, err
		}
		for _, r := range rejected {
			fmt.Fprintf(os.Stderr, "lla: skipping plugin %s: %v\n", r.Path, r.Err)
		}
		m.ApplyEnabled(cfg.EnabledPlugins)
	}

	if opts.store {
		rt.db, err = store.Open(paths.DB, log)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.installs = store.NewInstallStore(rt.db)
	}
	return rt, nil
}

func (rt *pluginRuntime) close() {
	if rt.manager != nil {
		rt.manager.Close()
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}
}
