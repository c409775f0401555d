package plugin

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"runtime"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/lla/internal/hooks"
	"github.com/soyeahso/lla/internal/logging"
	"github.com/soyeahso/lla/pkg/wire"
)

// Diagnostic records one plugin failing on one entry. The entry keeps
// every other plugin's fields.
type Diagnostic struct {
	Path   string
	Plugin string
	Err    error
}

func (d Diagnostic) Error() string { return d.Plugin + ": " + d.Path + ": " + d.Err.Error() }

// DecoratorOptions tunes the decoration pipeline.
type DecoratorOptions struct {
	// Workers bounds concurrent entries. Zero means GOMAXPROCS.
	Workers int
	// CacheSize is the number of decorated entries kept. Zero disables caching.
	CacheSize int
}

type cacheKey struct {
	path     string
	format   string
	size     uint64
	modified uint64
	gen      uint64
}

// Decorator runs entries through every enabled plugin that supports the
// requested format. Plugins apply in enable order, so a later-enabled
// plugin overwrites an earlier one's field of the same name.
type Decorator struct {
	reg      *Registry
	dispatch *Dispatcher
	hooks    *hooks.Manager
	log      *logging.Logger
	workers  int
	cache    *lru.Cache[cacheKey, map[string]string]

	mu      sync.Mutex
	formats map[*Handle][]string
}

// NewDecorator creates a decoration pipeline.
func NewDecorator(reg *Registry, d *Dispatcher, hm *hooks.Manager, opts DecoratorOptions, log *logging.Logger) (*Decorator, error) {
	dec := &Decorator{
		reg:      reg,
		dispatch: d,
		hooks:    hm,
		log:      log.Sub("decorate"),
		workers:  opts.Workers,
		formats:  make(map[*Handle][]string),
	}
	if dec.workers <= 0 {
		dec.workers = runtime.GOMAXPROCS(0)
	}
	if opts.CacheSize > 0 {
		c, err := lru.New[cacheKey, map[string]string](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		dec.cache = c
	}
	return dec, nil
}

// supports reports whether h decorates in format, asking the plugin once
// per handle.
func (dc *Decorator) supports(h *Handle, format string) (bool, error) {
	dc.mu.Lock()
	formats, ok := dc.formats[h]
	dc.mu.Unlock()
	if !ok {
		var err error
		formats, err = dc.dispatch.SupportedFormats(h)
		if err != nil {
			return false, err
		}
		dc.mu.Lock()
		dc.formats[h] = formats
		dc.mu.Unlock()
	}
	return slices.Contains(formats, format), nil
}

// participants returns the enabled handles that decorate in format.
func (dc *Decorator) participants(format string) ([]*Handle, []Diagnostic, error) {
	var out []*Handle
	var diags []Diagnostic
	for _, h := range dc.reg.Enabled() {
		ok, err := dc.supports(h, format)
		if err != nil {
			if isEncodeError(err) {
				return nil, nil, err
			}
			diags = append(diags, Diagnostic{Plugin: h.Name(), Err: err})
			continue
		}
		if ok {
			out = append(out, h)
		}
	}
	return out, diags, nil
}

// DecorateAll decorates entries concurrently and returns them in input
// order. Per-plugin failures are reported as diagnostics; only a host
// encode error or ctx cancellation aborts the pass.
func (dc *Decorator) DecorateAll(ctx context.Context, entries []wire.Entry, format string) ([]wire.Entry, []Diagnostic, error) {
	handles, diags, err := dc.participants(format)
	if err != nil {
		return nil, nil, err
	}
	out := make([]wire.Entry, len(entries))
	if len(handles) == 0 {
		for i, e := range entries {
			out[i] = e.Clone()
		}
		return out, diags, nil
	}

	gen := dc.reg.Generation()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dc.workers)
	for i, e := range entries {
		g.Go(func() error {
			decorated, ds, err := dc.decorateOne(gctx, handles, e, format, gen)
			if err != nil {
				return err
			}
			out[i] = decorated
			if len(ds) > 0 {
				mu.Lock()
				diags = append(diags, ds...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	slices.SortStableFunc(diags, func(a, b Diagnostic) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Plugin, b.Plugin))
	})
	for _, d := range diags {
		dc.log.Warn().Err(d.Err).Str("plugin", d.Plugin).Str("path", d.Path).Msg("decoration failed")
		dc.hooks.Emit(ctx, hooks.EventDecorationFailed, d.Plugin, map[string]any{"path": d.Path, "error": d.Err.Error()})
	}
	return out, diags, nil
}

func (dc *Decorator) decorateOne(ctx context.Context, handles []*Handle, e wire.Entry, format string, gen uint64) (wire.Entry, []Diagnostic, error) {
	key := cacheKey{path: e.Path, format: format, size: e.Metadata.Size, modified: e.Metadata.Modified, gen: gen}
	out := e.Clone()
	if dc.cache != nil {
		if fields, ok := dc.cache.Get(key); ok {
			out.Merge(fields)
			return out, nil, nil
		}
	}

	var diags []Diagnostic
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return out, nil, err
		}
		if !dc.reg.IsEnabled(h.Name()) {
			continue
		}
		next, err := dc.dispatch.Decorate(h, out)
		if err != nil {
			if isEncodeError(err) {
				return out, nil, err
			}
			diags = append(diags, Diagnostic{Path: e.Path, Plugin: h.Name(), Err: err})
			continue
		}
		out = next
	}

	if dc.cache != nil && len(diags) == 0 {
		dc.cache.Add(key, maps.Clone(out.CustomFields))
	}
	return out, diags, nil
}

// FieldValue is one plugin's column for an entry.
type FieldValue struct {
	Plugin string
	Value  string
}

// FormatFields collects the columns enabled plugins render for e, in
// enable order. Plugins with nothing to show are skipped.
func (dc *Decorator) FormatFields(e wire.Entry, format string) ([]FieldValue, []Diagnostic, error) {
	var fields []FieldValue
	var diags []Diagnostic
	for _, h := range dc.reg.Enabled() {
		v, ok, err := dc.dispatch.FormatField(h, e, format)
		if err != nil {
			if isEncodeError(err) {
				return nil, nil, err
			}
			diags = append(diags, Diagnostic{Path: e.Path, Plugin: h.Name(), Err: err})
			continue
		}
		if ok && v != "" {
			fields = append(fields, FieldValue{Plugin: h.Name(), Value: v})
		}
	}
	return fields, diags, nil
}

// Forget drops memoised state for h; used when a handle is unloaded.
func (dc *Decorator) Forget(h *Handle) {
	dc.mu.Lock()
	delete(dc.formats, h)
	dc.mu.Unlock()
}

// Purge empties the decoration cache.
func (dc *Decorator) Purge() {
	if dc.cache != nil {
		dc.cache.Purge()
	}
}

func isEncodeError(err error) bool {
	var ee *wire.EncodeError
	return errors.As(err, &ee)
}
