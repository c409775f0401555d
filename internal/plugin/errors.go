package plugin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/lla/pkg/wire"
)

// LoadErrorKind classifies why a library could not become a handle.
type LoadErrorKind int

const (
	NotFound LoadErrorKind = iota + 1
	InvalidLibrary
	MissingSymbol
	ConstructionFailed
)

var (
	ErrNotFound           = errors.New("plugin not found")
	ErrInvalidLibrary     = errors.New("invalid plugin library")
	ErrMissingSymbol      = errors.New("missing plugin symbol")
	ErrConstructionFailed = errors.New("plugin construction failed")
)

func (k LoadErrorKind) sentinel() error {
	switch k {
	case NotFound:
		return ErrNotFound
	case InvalidLibrary:
		return ErrInvalidLibrary
	case MissingSymbol:
		return ErrMissingSymbol
	case ConstructionFailed:
		return ErrConstructionFailed
	}
	return nil
}

func (k LoadErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("load error %d", int(k))
}

// LoadError reports a library that could not be loaded. errors.Is matches
// the sentinel for its Kind.
type LoadError struct {
	Path string
	Kind LoadErrorKind
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("load %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == e.Kind.sentinel() }

// VersionError reports a plugin rejected during protocol negotiation. When
// the plugin could not even answer, Err holds the dispatch failure.
type VersionError struct {
	Plugin        string
	PluginVersion uint32
	Supported     []uint32
	Err           error
}

func (e *VersionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin %s: version negotiation failed: %v", e.Plugin, e.Err)
	}
	return fmt.Sprintf("plugin %s: protocol version %d not supported (supported: %s)",
		e.Plugin, e.PluginVersion, joinVersions(e.Supported))
}

func (e *VersionError) Unwrap() error { return e.Err }

func joinVersions(vs []uint32) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

// RegistryErrorKind classifies registry failures.
type RegistryErrorKind int

const (
	DuplicateName RegistryErrorKind = iota + 1
	UnknownName
)

var (
	ErrDuplicateName = errors.New("plugin already registered")
	ErrUnknownName   = errors.New("unknown plugin")
)

// RegistryError reports a rejected registry operation.
type RegistryError struct {
	Kind RegistryErrorKind
	Name string
}

func (e *RegistryError) Error() string {
	if e.Kind == DuplicateName {
		return fmt.Sprintf("%s: %s", ErrDuplicateName, e.Name)
	}
	return fmt.Sprintf("%s: %s", ErrUnknownName, e.Name)
}

func (e *RegistryError) Is(target error) bool {
	switch e.Kind {
	case DuplicateName:
		return target == ErrDuplicateName
	case UnknownName:
		return target == ErrUnknownName
	}
	return false
}

// DispatchErrorKind classifies a failed request.
type DispatchErrorKind int

const (
	MalformedResponse DispatchErrorKind = iota + 1
	UnexpectedVariant
	PluginFailure
	CallFailed
	Unloaded
	Disabled
	UnknownPlugin
)

var dispatchKindNames = map[DispatchErrorKind]string{
	MalformedResponse: "malformed response",
	UnexpectedVariant: "unexpected response variant",
	PluginFailure:     "plugin error",
	CallFailed:        "call failed",
	Unloaded:          "plugin unloaded",
	Disabled:          "plugin disabled",
	UnknownPlugin:     "plugin not found",
}

func (k DispatchErrorKind) String() string {
	if s, ok := dispatchKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("dispatch error %d", int(k))
}

// DispatchError reports a request that did not produce a usable response.
type DispatchError struct {
	Plugin  string
	Request wire.Tag
	Kind    DispatchErrorKind
	// Got is the variant received for UnexpectedVariant.
	Got wire.Tag
	// Message is the text of an ErrorResponse for PluginFailure.
	Message string
	Err     error
}

func (e *DispatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plugin %s: %s: %s", e.Plugin, e.Request, e.Kind)
	switch {
	case e.Kind == UnexpectedVariant:
		fmt.Fprintf(&b, " %s", e.Got)
	case e.Kind == PluginFailure:
		fmt.Fprintf(&b, ": %s", e.Message)
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DispatchError) Unwrap() error { return e.Err }

// IsKind reports whether err is a *DispatchError of kind k.
func IsKind(err error, k DispatchErrorKind) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Kind == k
}
