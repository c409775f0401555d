package lister

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/lla/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tree builds:
//
//	root/a.txt  root/B.go  root/.hidden  root/link -> a.txt
//	root/sub/c.txt  root/sub/deep/d.txt
func tree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.txt":          "aaaa",
		"B.go":           "package b",
		".hidden":        "",
		"sub/c.txt":      "c",
		"sub/deep/d.txt": "dd",
	}
	for rel, body := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	require.NoError(t, os.Symlink("a.txt", filepath.Join(root, "link")))
	return root
}

func names(root string, entries []wire.Entry) []string {
	var out []string
	for _, e := range entries {
		rel, _ := filepath.Rel(root, e.Path)
		out = append(out, rel)
	}
	return out
}

func TestList_Flat(t *testing.T) {
	root := tree(t)
	res, err := List(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "B.go", "link", "sub"}, names(root, res.Entries))
	assert.False(t, res.Truncated)

	byName := map[string]wire.Entry{}
	for _, e := range res.Entries {
		byName[filepath.Base(e.Path)] = e
	}
	assert.Equal(t, wire.KindFile, byName["a.txt"].Metadata.Kind)
	assert.Equal(t, uint64(4), byName["a.txt"].Metadata.Size)
	assert.Equal(t, uint32(0o644), byName["a.txt"].Metadata.Permissions)
	assert.NotZero(t, byName["a.txt"].Metadata.Modified)
	assert.NotNil(t, byName["a.txt"].CustomFields)
	assert.Equal(t, wire.KindDir, byName["sub"].Metadata.Kind)
	assert.Equal(t, wire.KindSymlink, byName["link"].Metadata.Kind)
}

func TestList_All(t *testing.T) {
	root := tree(t)
	res, err := List(context.Background(), root, Options{All: true})
	require.NoError(t, err)
	assert.Contains(t, names(root, res.Entries), ".hidden")
}

func TestList_Recursive(t *testing.T) {
	root := tree(t)

	res, err := List(context.Background(), root, Options{Recursive: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"a.txt", "B.go", "link", "sub",
		filepath.Join("sub", "c.txt"), filepath.Join("sub", "deep"),
		filepath.Join("sub", "deep", "d.txt"),
	}, names(root, res.Entries))

	res, err = List(context.Background(), root, Options{Recursive: true, Depth: 2})
	require.NoError(t, err)
	assert.NotContains(t, names(root, res.Entries), filepath.Join("sub", "deep", "d.txt"))
	assert.Contains(t, names(root, res.Entries), filepath.Join("sub", "deep"))
}

func TestList_MaxEntries(t *testing.T) {
	root := tree(t)
	res, err := List(context.Background(), root, Options{Recursive: true, MaxEntries: 3})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 3)
	assert.True(t, res.Truncated)
}

func TestList_Filter(t *testing.T) {
	root := tree(t)
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"substring case folded", Options{Filter: "b."}, []string{"B.go"}},
		{"substring case sensitive", Options{Filter: "b.", CaseSensitive: true}, nil},
		{"glob", Options{Filter: "*.txt"}, []string{"a.txt"}},
		{"glob recursive", Options{Filter: "*.txt", Recursive: true},
			[]string{"a.txt", filepath.Join("sub", "c.txt"), filepath.Join("sub", "deep", "d.txt")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := List(context.Background(), root, tt.opts)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, names(root, res.Entries))
		})
	}

	_, err := List(context.Background(), root, Options{Filter: "[oops"})
	assert.Error(t, err)
}

func TestList_SingleFileAndMissing(t *testing.T) {
	root := tree(t)
	res, err := List(context.Background(), filepath.Join(root, "a.txt"), Options{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	_, err = List(context.Background(), filepath.Join(root, "nope"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestList_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := List(ctx, tree(t), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func entry(name string, size uint64, mod time.Time, kind wire.Kind) wire.Entry {
	return wire.NewEntry("/x/"+name, wire.Metadata{Size: size, Modified: uint64(mod.Unix()), Kind: kind})
}

func base(entries []wire.Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, filepath.Base(e.Path))
	}
	return out
}

func TestSort(t *testing.T) {
	now := time.Now()
	mk := func() []wire.Entry {
		return []wire.Entry{
			entry("file10", 10, now.Add(-time.Hour), wire.KindFile),
			entry("File2", 300, now, wire.KindFile),
			entry("docs", 0, now.Add(-2*time.Hour), wire.KindDir),
			entry("alpha", 300, now.Add(-3*time.Hour), wire.KindFile),
		}
	}

	tests := []struct {
		name string
		opts SortOptions
		want []string
	}{
		{"name", SortOptions{By: ByName}, []string{"alpha", "docs", "file10", "File2"}},
		{"name natural", SortOptions{By: ByName, Natural: true}, []string{"alpha", "docs", "File2", "file10"}},
		{"name case sensitive", SortOptions{By: ByName, CaseSensitive: true}, []string{"File2", "alpha", "docs", "file10"}},
		{"size", SortOptions{By: BySize}, []string{"alpha", "File2", "file10", "docs"}},
		{"date", SortOptions{By: ByDate}, []string{"File2", "file10", "docs", "alpha"}},
		{"reverse", SortOptions{By: ByName, Reverse: true}, []string{"File2", "file10", "docs", "alpha"}},
		{"dirs first reverse", SortOptions{By: ByName, Reverse: true, DirsFirst: true}, []string{"docs", "File2", "file10", "alpha"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := mk()
			Sort(entries, tt.opts)
			assert.Equal(t, tt.want, base(entries))
		})
	}
}

func TestNaturalCompare(t *testing.T) {
	assert.Negative(t, naturalCompare("a2", "a10"))
	assert.Positive(t, naturalCompare("a10", "a9"))
	assert.Negative(t, naturalCompare("a01", "a001"))
	assert.Zero(t, naturalCompare("x7y", "x7y"))
	assert.Negative(t, naturalCompare("abc", "abcd"))
}

func TestParseSortBy(t *testing.T) {
	for _, s := range []string{"name", "size", "date"} {
		got, err := ParseSortBy(s)
		require.NoError(t, err)
		assert.Equal(t, SortBy(s), got)
	}
	got, err := ParseSortBy("")
	require.NoError(t, err)
	assert.Equal(t, ByName, got)
	_, err = ParseSortBy("colour")
	assert.Error(t, err)
}
