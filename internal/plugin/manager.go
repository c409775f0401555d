package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/lla/internal/config"
	"github.com/soyeahso/lla/internal/ffi"
	"github.com/soyeahso/lla/internal/hooks"
	"github.com/soyeahso/lla/internal/logging"
	"github.com/soyeahso/lla/pkg/wire"
)

// LibraryExtensions are the file suffixes Discover treats as plugins.
var LibraryExtensions = []string{".so", ".dylib", ".dll"}

// IsLibrary reports whether path has a plugin library extension.
func IsLibrary(path string) bool {
	return slices.Contains(LibraryExtensions, strings.ToLower(filepath.Ext(path)))
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Open overrides how libraries are opened; nil means ffi.Open.
	Open OpenFunc
	// Supported protocol versions; empty means wire.SupportedProtocolVersions.
	Supported []uint32
	// ConfigPath, when set, is where Enable and Disable persist the
	// enabled_plugins list.
	ConfigPath string
	Decoration DecoratorOptions
}

// Rejection is a library that failed to load, negotiate or register.
type Rejection struct {
	Path string
	Err  error
}

// Manager ties the runtime together: it discovers libraries, admits them
// through load, negotiation and registration, and exposes the plugin set to
// the CLI.
type Manager struct {
	registry   *Registry
	loader     *Loader
	negotiator *Negotiator
	dispatch   *Dispatcher
	decorator  *Decorator
	hooks      *hooks.Manager
	log        *logging.Logger
	configPath string

	mu   sync.Mutex
	seen map[string]string // canonical path -> plugin name
}

// NewManager creates a manager with an empty registry.
func NewManager(hm *hooks.Manager, log *logging.Logger, opts ManagerOptions) (*Manager, error) {
	reg := NewRegistry(hm, log)
	disp := NewDispatcher(reg, log)
	dec, err := NewDecorator(reg, disp, hm, opts.Decoration, log)
	if err != nil {
		return nil, fmt.Errorf("decorator: %w", err)
	}
	return &Manager{
		registry:   reg,
		loader:     NewLoader(opts.Open, log),
		negotiator: NewNegotiator(disp, opts.Supported),
		dispatch:   disp,
		decorator:  dec,
		hooks:      hm,
		log:        log.Sub("plugins"),
		configPath: opts.ConfigPath,
		seen:       make(map[string]string),
	}, nil
}

func (m *Manager) Registry() *Registry     { return m.registry }
func (m *Manager) Dispatcher() *Dispatcher { return m.dispatch }
func (m *Manager) Decorator() *Decorator   { return m.decorator }
func (m *Manager) Loader() *Loader         { return m.loader }
func (m *Manager) Negotiator() *Negotiator { return m.negotiator }

// Discover loads every plugin library in dir, creating dir when missing.
// A bad library is logged, reported as a Rejection and skipped.
func (m *Manager) Discover(dir string) (loaded []string, rejected []Rejection, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create plugins dir: %w", err)
	}
	files, err := libraryFiles(dir)
	if err != nil {
		return nil, nil, err
	}

	for _, path := range files {
		canonical := canonicalPath(path)
		m.mu.Lock()
		_, dup := m.seen[canonical]
		m.mu.Unlock()
		if dup {
			m.log.Debug().Str("path", path).Msg("library already loaded")
			continue
		}

		h, err := m.LoadFile(path)
		if err != nil {
			var ee *wire.EncodeError
			if errors.As(err, &ee) {
				return loaded, rejected, err
			}
			rejected = append(rejected, Rejection{Path: path, Err: err})
			continue
		}
		m.mu.Lock()
		m.seen[canonical] = h.Name()
		m.mu.Unlock()
		loaded = append(loaded, h.Name())
	}
	return loaded, rejected, nil
}

// LoadFile loads, negotiates and registers a single library.
func (m *Manager) LoadFile(path string) (*Handle, error) {
	h, err := m.loader.Load(path)
	if err != nil {
		m.reject(path, err)
		return nil, err
	}
	if err := m.admit(h); err != nil {
		m.reject(path, err)
		return nil, err
	}
	return h, nil
}

// RegisterBuiltin admits a compiled-in plugin. It crosses the same byte
// protocol and negotiation as a dynamic library.
func (m *Manager) RegisterBuiltin(name string, factory func() ffi.Handler) error {
	path := "builtin:" + name
	h, err := m.loader.Attach(ffi.NewStatic(path, factory))
	if err != nil {
		m.reject(path, err)
		return err
	}
	if err := m.admit(h); err != nil {
		m.reject(path, err)
		return err
	}
	return nil
}

// admit negotiates, names and registers h. On failure h is closed and no
// further request reaches it.
func (m *Manager) admit(h *Handle) error {
	err := m.negotiator.Negotiate(h)
	if err == nil {
		h.name, err = m.dispatch.Name(h)
		if err == nil && h.name == "" {
			err = fmt.Errorf("plugin %s reported an empty name", h.Path())
		}
	}
	if err == nil {
		err = m.registry.Register(h)
	}
	if err != nil {
		if cerr := h.Close(); cerr != nil {
			m.log.Warn().Err(cerr).Str("path", h.Path()).Msg("close rejected plugin")
		}
		return err
	}
	return nil
}

func (m *Manager) reject(path string, err error) {
	m.log.Warn().Err(err).Str("path", path).Msg("plugin rejected")
	m.hooks.Emit(context.Background(), hooks.EventPluginRejected, "", map[string]any{
		"path":  path,
		"error": err.Error(),
	})
}

// ApplyEnabled enables names in order; the last one wins field collisions.
// Names with no loaded plugin are logged and skipped.
func (m *Manager) ApplyEnabled(names []string) {
	for _, name := range names {
		if err := m.registry.Enable(name); err != nil {
			m.log.Warn().Err(err).Str("plugin", name).Msg("enabled plugin not loaded")
		}
	}
}

// Enable enables a loaded plugin and persists the choice.
func (m *Manager) Enable(name string) error {
	if err := m.registry.Enable(name); err != nil {
		return err
	}
	if m.configPath == "" {
		return nil
	}
	return config.EnablePlugin(m.configPath, name)
}

// Disable disables a plugin and persists the choice. A plugin that is not
// loaded is still removed from the persisted list.
func (m *Manager) Disable(name string) error {
	err := m.registry.Disable(name)
	if err != nil && !errors.Is(err, ErrUnknownName) {
		return err
	}
	if m.configPath != "" {
		if perr := config.DisablePlugin(m.configPath, name); perr != nil {
			return perr
		}
	}
	return err
}

// CleanReport lists what Clean removed and what passed.
type CleanReport struct {
	Removed []Rejection
	Kept    []string
}

// Clean re-probes every library in dir with a fresh load and negotiation.
// Libraries that fail are unloaded and deleted. Loaded libraries that no
// longer sit in dir are probed at their own path and unloaded on failure,
// but their files are left alone.
func (m *Manager) Clean(dir string) (CleanReport, error) {
	var report CleanReport
	files, err := libraryFiles(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return report, err
	}

	checked := make(map[string]bool, len(files))
	for _, path := range files {
		checked[canonicalPath(path)] = true
		if err := m.probe(path); err != nil {
			if isEncodeError(err) {
				return report, err
			}
			m.forget(path)
			if rmErr := os.Remove(path); rmErr != nil {
				err = fmt.Errorf("%w (remove: %v)", err, rmErr)
			}
			m.log.Warn().Err(err).Str("path", path).Msg("removed invalid plugin")
			report.Removed = append(report.Removed, Rejection{Path: path, Err: err})
			continue
		}
		report.Kept = append(report.Kept, path)
	}

	for _, path := range m.loadedPaths() {
		if checked[path] {
			continue
		}
		if err := m.probe(path); err != nil {
			if isEncodeError(err) {
				return report, err
			}
			m.forget(path)
			m.log.Warn().Err(err).Str("path", path).Msg("unloaded invalid plugin")
			report.Removed = append(report.Removed, Rejection{Path: path, Err: err})
			continue
		}
		report.Kept = append(report.Kept, path)
	}
	return report, nil
}

// loadedPaths returns the canonical paths of discovered libraries, sorted.
func (m *Manager) loadedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.seen))
	for p := range m.seen {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// probe loads a second, throwaway instance of path and negotiates with it.
// Probe is what a fresh load of a library file reports.
type Probe struct {
	Name     string
	Version  string
	Protocol uint32
}

// Probe loads path into a throwaway handle, negotiates, asks for the name
// and closes it again. The registry is not touched.
func (m *Manager) Probe(path string) (Probe, error) {
	h, err := m.loader.Load(path)
	if err != nil {
		return Probe{}, err
	}
	defer h.Close()
	if err := m.negotiator.Negotiate(h); err != nil {
		return Probe{}, err
	}
	name, err := m.dispatch.Name(h)
	if err != nil {
		return Probe{}, err
	}
	if name == "" {
		return Probe{}, fmt.Errorf("plugin %s reported an empty name", path)
	}
	return Probe{Name: name, Version: h.Version(), Protocol: h.ProtocolVersion()}, nil
}

func (m *Manager) probe(path string) error {
	_, err := m.Probe(path)
	return err
}

func (m *Manager) forget(path string) {
	canonical := canonicalPath(path)
	m.mu.Lock()
	name, ok := m.seen[canonical]
	delete(m.seen, canonical)
	m.mu.Unlock()
	if !ok {
		return
	}
	if h := m.registry.Get(name); h != nil {
		m.decorator.Forget(h)
	}
	if err := m.registry.Unload(name); err != nil {
		m.log.Warn().Err(err).Str("plugin", name).Msg("unload")
	}
}

// PluginDetails is the listing shown by list-plugins.
type PluginDetails struct {
	Info
	Description string
	Formats     []string
	CliArgs     []wire.CliArg
	// Err is set when the plugin failed to describe itself.
	Err error
}

// List describes every loaded plugin in registration order.
func (m *Manager) List() []PluginDetails {
	infos := m.registry.Info()
	out := make([]PluginDetails, 0, len(infos))
	for _, info := range infos {
		d := PluginDetails{Info: info}
		if h := m.registry.Get(info.Name); h != nil {
			var errs []error
			var err error
			if d.Description, err = m.dispatch.Description(h); err != nil {
				errs = append(errs, err)
			}
			if d.Formats, err = m.dispatch.SupportedFormats(h); err != nil {
				errs = append(errs, err)
			}
			if d.CliArgs, err = m.dispatch.CliArgs(h); err != nil {
				errs = append(errs, err)
			}
			d.Err = errors.Join(errs...)
		}
		out = append(out, d)
	}
	return out
}

// Action runs a plugin action. Disabled plugins are refused.
func (m *Manager) Action(name, action string, args []string) (wire.ActionResponse, error) {
	resp, err := m.dispatch.Call(name, wire.PerformAction{Action: action, Args: args})
	if err != nil {
		return wire.ActionResponse{}, err
	}
	ar, ok := resp.(wire.ActionResponse)
	if !ok {
		return wire.ActionResponse{}, &DispatchError{Plugin: name, Request: wire.TagPerformAction, Kind: UnexpectedVariant, Got: resp.Tag()}
	}
	return ar, nil
}

// Close unloads every plugin.
func (m *Manager) Close() {
	m.registry.UnloadAll()
	m.decorator.Purge()
}

func libraryFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsLibrary(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return path
}
