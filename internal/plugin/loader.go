package plugin

import (
	"errors"
	"os"

	"github.com/soyeahso/lla/internal/ffi"
	"github.com/soyeahso/lla/internal/logging"
)

// OpenFunc opens a plugin binary. ffi.Open is the production implementation.
type OpenFunc func(path string) (ffi.Library, error)

// Loader turns plugin binaries into handles. It never calls the plugin's
// dispatch function; that is left to the negotiator.
type Loader struct {
	open OpenFunc
	log  *logging.Logger
}

// NewLoader creates a loader. A nil open uses ffi.Open.
func NewLoader(open OpenFunc, log *logging.Logger) *Loader {
	if open == nil {
		open = ffi.Open
	}
	return &Loader{open: open, log: log.Sub("loader")}
}

// Load opens the library at path and constructs one plugin instance.
func (l *Loader) Load(path string) (*Handle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Kind: NotFound, Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Path: path, Kind: InvalidLibrary, Err: errors.New("is a directory")}
	}

	lib, err := l.open(path)
	if err != nil {
		var se *ffi.SymbolError
		if errors.As(err, &se) {
			return nil, &LoadError{Path: path, Kind: MissingSymbol, Err: err}
		}
		return nil, &LoadError{Path: path, Kind: InvalidLibrary, Err: err}
	}
	return l.Attach(lib)
}

// Attach constructs an instance from an already opened library. Built-in
// plugins enter here with an ffi.Static library. On failure the library is
// closed.
func (l *Loader) Attach(lib ffi.Library) (*Handle, error) {
	inst, err := lib.Create()
	if err != nil {
		if cerr := lib.Close(); cerr != nil {
			l.log.Warn().Err(cerr).Str("path", lib.Path()).Msg("close after failed construction")
		}
		return nil, &LoadError{Path: lib.Path(), Kind: ConstructionFailed, Err: err}
	}
	l.log.Debug().Str("path", lib.Path()).Msg("plugin instance constructed")
	return newHandle(lib.Path(), lib, inst), nil
}
