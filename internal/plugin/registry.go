package plugin

import (
	"context"
	"slices"
	"sync"

	"github.com/soyeahso/lla/internal/hooks"
	"github.com/soyeahso/lla/internal/logging"
)

type registration struct {
	handle  *Handle
	enabled bool
}

// Registry owns every loaded handle, keyed by plugin name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*registration
	order   []string // registration order
	enabled []string // enable order; later entries win field collisions
	gen     uint64
	hooks   *hooks.Manager
	log     *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(hm *hooks.Manager, log *logging.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]*registration),
		hooks:   hm,
		log:     log.Sub("plugins"),
	}
}

// Register adds a negotiated handle, disabled. If the name is taken the
// existing plugin stays and the caller keeps ownership of h.
func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	if _, exists := r.plugins[h.Name()]; exists {
		r.mu.Unlock()
		return &RegistryError{Kind: DuplicateName, Name: h.Name()}
	}
	r.plugins[h.Name()] = &registration{handle: h}
	r.order = append(r.order, h.Name())
	r.gen++
	r.mu.Unlock()

	r.log.Info().
		Str("plugin", h.Name()).
		Str("version", h.Version()).
		Str("path", h.Path()).
		Msg("plugin registered")
	r.hooks.Emit(context.Background(), hooks.EventPluginLoaded, h.Name(), map[string]any{
		"version": h.Version(),
		"path":    h.Path(),
	})
	return nil
}

// Enable marks a plugin enabled and appends it to the enable order.
// Enabling an enabled plugin keeps its position.
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	reg, ok := r.plugins[name]
	if !ok {
		r.mu.Unlock()
		return &RegistryError{Kind: UnknownName, Name: name}
	}
	changed := !reg.enabled
	if changed {
		reg.enabled = true
		r.enabled = append(r.enabled, name)
		r.gen++
	}
	r.mu.Unlock()

	if changed {
		r.log.Debug().Str("plugin", name).Msg("plugin enabled")
		r.hooks.Emit(context.Background(), hooks.EventPluginEnabled, name, nil)
	}
	return nil
}

// Disable marks a plugin disabled. The handle stays loaded.
func (r *Registry) Disable(name string) error {
	r.mu.Lock()
	reg, ok := r.plugins[name]
	if !ok {
		r.mu.Unlock()
		return &RegistryError{Kind: UnknownName, Name: name}
	}
	changed := reg.enabled
	if changed {
		reg.enabled = false
		r.enabled = slices.DeleteFunc(r.enabled, func(n string) bool { return n == name })
		r.gen++
	}
	r.mu.Unlock()

	if changed {
		r.log.Debug().Str("plugin", name).Msg("plugin disabled")
		r.hooks.Emit(context.Background(), hooks.EventPluginDisabled, name, nil)
	}
	return nil
}

// Unload removes a plugin and closes its handle. The entry disappears
// first, so no new call can start; Close then waits for an in-flight one.
// Unknown names are ignored.
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	reg, ok := r.plugins[name]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	r.remove(name)
	r.mu.Unlock()

	return r.close(name, reg.handle)
}

// UnloadAll closes every plugin in reverse registration order.
func (r *Registry) UnloadAll() {
	r.mu.Lock()
	order := slices.Clone(r.order)
	regs := make([]*registration, len(order))
	for i, name := range order {
		regs[i] = r.plugins[name]
	}
	r.plugins = make(map[string]*registration)
	r.order, r.enabled = nil, nil
	r.gen++
	r.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		if err := r.close(order[i], regs[i].handle); err != nil {
			r.log.Error().Err(err).Str("plugin", order[i]).Msg("plugin close error")
		}
	}
}

// remove deletes name from every index. Callers hold r.mu.
func (r *Registry) remove(name string) {
	delete(r.plugins, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	r.enabled = slices.DeleteFunc(r.enabled, func(n string) bool { return n == name })
	r.gen++
}

func (r *Registry) close(name string, h *Handle) error {
	err := h.Close()
	r.log.Info().Str("plugin", name).Msg("plugin unloaded")
	r.hooks.Emit(context.Background(), hooks.EventPluginUnloaded, name, nil)
	return err
}

// Get returns the handle registered under name, or nil.
func (r *Registry) Get(name string) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.plugins[name]; ok {
		return reg.handle
	}
	return nil
}

func (r *Registry) lookup(name string) (h *Handle, enabled, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.plugins[name]
	if !ok {
		return nil, false, false
	}
	return reg.handle, reg.enabled, true
}

// IsEnabled reports whether name is registered and enabled.
func (r *Registry) IsEnabled(name string) bool {
	_, enabled, _ := r.lookup(name)
	return enabled
}

// Names returns plugin names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// EnabledNames returns enabled plugin names in enable order.
func (r *Registry) EnabledNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.enabled)
}

// Enabled returns the enabled handles in enable order.
func (r *Registry) Enabled() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, len(r.enabled))
	for i, name := range r.enabled {
		out[i] = r.plugins[name].handle
	}
	return out
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Generation changes whenever the set of plugins or their enabled state
// changes. Caches of plugin output key on it.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// Info describes a registered plugin.
type Info struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Protocol uint32 `json:"protocol"`
	Path     string `json:"path"`
	Enabled  bool   `json:"enabled"`
}

// Info returns a description of every plugin in registration order.
func (r *Registry) Info() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		reg := r.plugins[name]
		infos = append(infos, Info{
			Name:     name,
			Version:  reg.handle.Version(),
			Protocol: reg.handle.ProtocolVersion(),
			Path:     reg.handle.Path(),
			Enabled:  reg.enabled,
		})
	}
	return infos
}
