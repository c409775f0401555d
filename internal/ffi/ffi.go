// Package ffi is the only surface crossed between the host and a plugin.
//
// A plugin is a dynamic library exporting C-calling-convention functions that
// exchange nothing but integers and byte buffers (see include/lla_plugin.h):
//
//	uintptr_t lla_plugin_create(void);
//	int32_t   lla_plugin_call(uintptr_t instance, const uint8_t *in, size_t in_len,
//	                          uint8_t **out, size_t *out_len);
//	void      lla_plugin_free(uint8_t *ptr, size_t len);   // optional
//	void      lla_plugin_destroy(uintptr_t instance);      // optional
//
// The reply buffer written to *out belongs to the plugin. The host copies it
// and hands it back through lla_plugin_free, or libc free() when the plugin
// does not export one. No struct, enum or vtable ever crosses the boundary,
// so host and plugin may be built by unrelated compilers.
package ffi

import (
	"errors"
	"fmt"
)

// Exported symbol names every plugin binary is looked up by.
const (
	SymbolCreate  = "lla_plugin_create"
	SymbolCall    = "lla_plugin_call"
	SymbolFree    = "lla_plugin_free"
	SymbolDestroy = "lla_plugin_destroy"
)

// Instance is the opaque handle a plugin constructor returns. The host never
// interprets it; zero means construction failed.
type Instance uintptr

// Library is an opened plugin binary with its entry points resolved.
// Implementations are not required to be safe for concurrent use; callers
// serialize access per instance.
type Library interface {
	// Path is the file the library was opened from.
	Path() string
	// Create invokes the plugin constructor.
	Create() (Instance, error)
	// Call sends one encoded request and returns a copy of the encoded reply.
	Call(inst Instance, request []byte) ([]byte, error)
	// Destroy invokes the plugin destructor for inst.
	Destroy(inst Instance)
	// Close releases the library. No function pointer obtained from it may be
	// used afterwards.
	Close() error
}

// Handler is the in-process form of lla_plugin_call.
type Handler interface {
	Handle(request []byte) ([]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(request []byte) ([]byte, error)

func (f HandlerFunc) Handle(request []byte) ([]byte, error) { return f(request) }

var (
	// ErrUnsupported is returned by Open on builds without dynamic loading.
	ErrUnsupported = errors.New("dynamic plugin loading is not supported on this build")

	// ErrCreateFailed means the plugin constructor returned a zero instance.
	ErrCreateFailed = errors.New("plugin constructor returned no instance")

	// ErrClosed is returned when a closed library is used.
	ErrClosed = errors.New("library closed")
)

// OpenError reports a file that could not be opened as a dynamic library.
// Err is set when the failure has a sentinel, such as ErrUnsupported.
type OpenError struct {
	Path   string
	Reason string
	Err    error
}

func (e *OpenError) Error() string {
	reason := e.Reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	return fmt.Sprintf("open %s: %s", e.Path, reason)
}

func (e *OpenError) Unwrap() error { return e.Err }

// SymbolError reports a required symbol missing from a library.
type SymbolError struct {
	Path   string
	Symbol string
	Reason string
}

func (e *SymbolError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: missing symbol %s", e.Path, e.Symbol)
	}
	return fmt.Sprintf("%s: missing symbol %s: %s", e.Path, e.Symbol, e.Reason)
}

// CallError reports a failed call into a plugin. Status is the non-zero
// value lla_plugin_call returned, or -1 for host-side failures such as a
// recovered panic in an in-process plugin.
type CallError struct {
	Status int32
	Err    error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin call failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("plugin call failed (status %d)", e.Status)
}

func (e *CallError) Unwrap() error { return e.Err }
