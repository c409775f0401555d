// Package plugin is the host side of the lla plugin runtime: loading
// libraries, negotiating the protocol, keeping the registry and dispatching
// requests to plugins.
package plugin

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/soyeahso/lla/internal/ffi"
)

// Handle is one loaded plugin instance. Calls through a handle are
// serialized; Close waits for an in-flight call, then destroys the instance
// and closes the library.
type Handle struct {
	path string
	lib  ffi.Library
	inst ffi.Instance

	// Set during admission, before the handle is published to the registry.
	name     string
	version  string
	protocol uint32

	mu     sync.Mutex
	closed bool
	calls  atomic.Int64
}

func newHandle(path string, lib ffi.Library, inst ffi.Instance) *Handle {
	return &Handle{path: path, lib: lib, inst: inst}
}

func (h *Handle) Name() string            { return h.name }
func (h *Handle) Version() string         { return h.version }
func (h *Handle) ProtocolVersion() uint32 { return h.protocol }
func (h *Handle) Path() string            { return h.path }

// Calls returns how many requests were sent through the handle.
func (h *Handle) Calls() int64 { return h.calls.Load() }

// Closed reports whether the handle has been unloaded.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// label names the handle in logs and errors before its name is known.
func (h *Handle) label() string {
	if h.name != "" {
		return h.name
	}
	return h.path
}

func (h *Handle) call(request []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrUnloaded
	}
	h.calls.Add(1)
	return h.lib.Call(h.inst, request)
}

// Close destroys the plugin instance and then releases the library.
// Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.lib.Destroy(h.inst)
	err := h.lib.Close()
	h.closed = true
	h.lib = nil
	return err
}

// ErrUnloaded is returned for calls through a closed handle.
var ErrUnloaded = errors.New("plugin unloaded")
