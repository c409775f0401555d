// Package lister reads directories into wire entries.
package lister

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/lla/pkg/wire"
)

// Options controls a listing.
type Options struct {
	Recursive bool
	// Depth bounds recursion; 0 means unlimited. The listed directory's
	// children are depth 1.
	Depth int
	// MaxEntries stops the listing once this many entries are collected;
	// 0 means unlimited.
	MaxEntries int
	// Filter keeps entries whose base name matches. A pattern containing
	// glob metacharacters is matched with filepath.Match, anything else is
	// a substring test.
	Filter        string
	CaseSensitive bool
	// All includes dot files.
	All bool
}

// Result is the outcome of List.
type Result struct {
	Entries []wire.Entry
	// Truncated is set when MaxEntries cut the listing short.
	Truncated bool
	// Skipped lists subdirectories that could not be read.
	Skipped []error
}

var errLimit = errors.New("entry limit reached")

// List reads dir. Symlinks are reported, not followed. A path to a single
// file lists just that file.
func List(ctx context.Context, dir string, opts Options) (Result, error) {
	var res Result
	info, err := os.Lstat(dir)
	if err != nil {
		return res, err
	}
	if !info.IsDir() {
		res.Entries = append(res.Entries, entryFor(dir, info))
		return res, nil
	}

	match, err := compileFilter(opts.Filter, opts.CaseSensitive)
	if err != nil {
		return res, err
	}

	w := walker{opts: opts, match: match, res: &res}
	err = w.walk(ctx, dir, 1)
	if errors.Is(err, errLimit) {
		res.Truncated = true
		err = nil
	}
	return res, err
}

type walker struct {
	opts  Options
	match func(string) bool
	res   *Result
}

func (w *walker) walk(ctx context.Context, dir string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		if depth == 1 {
			return err
		}
		w.res.Skipped = append(w.res.Skipped, err)
		return nil
	}

	var subdirs []string
	for _, it := range items {
		name := it.Name()
		if !w.opts.All && strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := it.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // removed while listing
			}
			return err
		}
		if w.match(name) {
			if w.opts.MaxEntries > 0 && len(w.res.Entries) >= w.opts.MaxEntries {
				return errLimit
			}
			w.res.Entries = append(w.res.Entries, entryFor(path, info))
		}
		if info.IsDir() {
			subdirs = append(subdirs, path)
		}
	}

	if !w.opts.Recursive || (w.opts.Depth > 0 && depth >= w.opts.Depth) {
		return nil
	}
	for _, sub := range subdirs {
		if err := w.walk(ctx, sub, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func compileFilter(pattern string, caseSensitive bool) (func(string) bool, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}
	fold := func(s string) string { return s }
	if !caseSensitive {
		fold = strings.ToLower
	}
	p := fold(pattern)
	if strings.ContainsAny(p, "*?[") {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("bad filter %q: %w", pattern, err)
		}
		return func(name string) bool {
			ok, _ := filepath.Match(p, fold(name))
			return ok
		}, nil
	}
	return func(name string) bool { return strings.Contains(fold(name), p) }, nil
}

func entryFor(path string, info fs.FileInfo) wire.Entry {
	md := wire.Metadata{
		Size:        uint64(max(info.Size(), 0)),
		Modified:    unixSeconds(info.ModTime().Unix()),
		Kind:        kindOf(info.Mode()),
		Permissions: uint32(info.Mode().Perm()),
	}
	platformMetadata(path, info, &md)
	return wire.NewEntry(path, md)
}

func kindOf(m fs.FileMode) wire.Kind {
	switch {
	case m.IsRegular():
		return wire.KindFile
	case m.IsDir():
		return wire.KindDir
	case m&fs.ModeSymlink != 0:
		return wire.KindSymlink
	default:
		return wire.KindOther
	}
}

func unixSeconds(s int64) uint64 {
	if s < 0 {
		return 0
	}
	return uint64(s)
}
