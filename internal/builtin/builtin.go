// Package builtin holds plugins compiled into lla. They are served through
// the same encoded request protocol as dynamic plugins.
package builtin

import (
	"io"
	"path/filepath"

	"github.com/soyeahso/lla/internal/ffi"
	"github.com/soyeahso/lla/pkg/pluginsdk"
)

// Registrar is the part of the plugin manager used to admit built-ins.
type Registrar interface {
	RegisterBuiltin(name string, factory func() ffi.Handler) error
}

// Options configures the built-in plugins.
type Options struct {
	// Dir holds plugin state files such as categorizer.yaml.
	Dir string
	// Out receives action output.
	Out io.Writer
}

// Register admits every built-in plugin.
func Register(r Registrar, opts Options) error {
	rules := ""
	if opts.Dir != "" {
		rules = filepath.Join(opts.Dir, "categorizer.yaml")
	}
	return r.RegisterBuiltin(CategorizerName, func() ffi.Handler {
		return pluginsdk.NewAdapter(NewCategorizer(rules, opts.Out))
	})
}
