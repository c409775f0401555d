package lister

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/soyeahso/lla/pkg/wire"
)

// SortBy names a sort key.
type SortBy string

const (
	ByName SortBy = "name"
	BySize SortBy = "size"
	ByDate SortBy = "date"
)

// SortOptions controls Sort.
type SortOptions struct {
	By            SortBy
	Reverse       bool
	DirsFirst     bool
	CaseSensitive bool
	// Natural compares digit runs by value, so "file2" sorts before "file10".
	Natural bool
}

// ParseSortBy validates a sort key from flags or config.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(s) {
	case ByName, BySize, ByDate:
		return SortBy(s), nil
	case "":
		return ByName, nil
	}
	return "", fmt.Errorf("unknown sort %q (want name, size or date)", s)
}

// Sort orders entries in place. Names ascend; sizes and dates descend, so
// the largest and newest come first. Ties fall back to name. DirsFirst is
// applied before Reverse and is not flipped by it.
func Sort(entries []wire.Entry, opts SortOptions) {
	nameCmp := func(a, b wire.Entry) int {
		an, bn := filepath.Base(a.Path), filepath.Base(b.Path)
		if !opts.CaseSensitive {
			an, bn = strings.ToLower(an), strings.ToLower(bn)
		}
		if opts.Natural {
			return naturalCompare(an, bn)
		}
		return strings.Compare(an, bn)
	}

	key := nameCmp
	switch opts.By {
	case BySize:
		key = func(a, b wire.Entry) int {
			if c := cmpDesc(a.Metadata.Size, b.Metadata.Size); c != 0 {
				return c
			}
			return nameCmp(a, b)
		}
	case ByDate:
		key = func(a, b wire.Entry) int {
			if c := cmpDesc(a.Metadata.Modified, b.Metadata.Modified); c != 0 {
				return c
			}
			return nameCmp(a, b)
		}
	}

	slices.SortStableFunc(entries, func(a, b wire.Entry) int {
		if opts.DirsFirst && a.Metadata.IsDir() != b.Metadata.IsDir() {
			if a.Metadata.IsDir() {
				return -1
			}
			return 1
		}
		c := key(a, b)
		if opts.Reverse {
			return -c
		}
		return c
	})
}

func cmpDesc(a, b uint64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		ad, bd := isDigit(a[0]), isDigit(b[0])
		switch {
		case ad && bd:
			na, ra := splitDigits(a)
			nb, rb := splitDigits(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return cmpInt(len(ta), len(tb))
			}
			if c := strings.Compare(ta, tb); c != 0 {
				return c
			}
			if c := cmpInt(len(na), len(nb)); c != 0 {
				return c
			}
			a, b = ra, rb
		case a[0] != b[0]:
			return cmpInt(int(a[0]), int(b[0]))
		default:
			a, b = a[1:], b[1:]
		}
	}
	return cmpInt(len(a), len(b))
}

func splitDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
