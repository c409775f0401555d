// Package hooks lets other parts of lla observe the plugin lifecycle.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/lla/internal/logging"
)

// Event names a point in the plugin lifecycle.
type Event string

const (
	EventPluginLoaded      Event = "plugin_loaded"
	EventPluginRejected    Event = "plugin_rejected"
	EventPluginEnabled     Event = "plugin_enabled"
	EventPluginDisabled    Event = "plugin_disabled"
	EventPluginUnloaded    Event = "plugin_unloaded"
	EventDecorationFailed  Event = "decoration_failed"
	EventPluginInstalled   Event = "plugin_installed"
	EventPluginInstallFail Event = "plugin_install_failed"
)

// AllEvents lists every event the runtime emits.
var AllEvents = []Event{
	EventPluginLoaded,
	EventPluginRejected,
	EventPluginEnabled,
	EventPluginDisabled,
	EventPluginUnloaded,
	EventDecorationFailed,
	EventPluginInstalled,
	EventPluginInstallFail,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event  Event          `json:"event"`
	Plugin string         `json:"plugin,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Handler handles one event. A returned error is logged and never stops
// the remaining handlers.
type Handler func(ctx context.Context, p Payload) error

type namedHandler struct {
	name    string
	handler Handler
}

// Manager keeps hook registrations and dispatches events. A nil *Manager
// is valid and drops every event.
type Manager struct {
	mu       sync.RWMutex
	handlers map[Event][]namedHandler
	log      *logging.Logger
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[Event][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for event under name.
func (m *Manager) On(event Event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", string(event)).Str("handler", name).Msg("hook registered")
}

// Off removes every handler registered under name for event.
func (m *Manager) Off(event Event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

// Emit runs the handlers for event synchronously in registration order.
// Handlers run without the manager lock held, so they may register hooks.
func (m *Manager) Emit(ctx context.Context, event Event, plugin string, data map[string]any) {
	if m == nil {
		return
	}
	m.mu.RLock()
	handlers := slices.Clone(m.handlers[event])
	m.mu.RUnlock()

	payload := Payload{Event: event, Plugin: plugin, Data: data}
	for _, h := range handlers {
		if err := m.run(ctx, h, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", string(event)).
				Str("handler", h.name).
				Msg("hook handler error")
		}
	}
}

func (m *Manager) run(ctx context.Context, h namedHandler, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return h.handler(ctx, p)
}

// Count returns the number of handlers registered for event.
func (m *Manager) Count(event Event) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that have at least one handler, sorted.
func (m *Manager) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]Event, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}
