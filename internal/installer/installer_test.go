package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soyeahso/lla/internal/hooks"
	"github.com/soyeahso/lla/internal/logging"
	"github.com/soyeahso/lla/internal/plugin"
	"github.com/soyeahso/lla/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fakeProber answers by library base name.
type fakeProber map[string]plugin.Probe

func (f fakeProber) Probe(path string) (plugin.Probe, error) {
	p, ok := f[filepath.Base(path)]
	if !ok {
		return plugin.Probe{}, errors.New("invalid ELF header")
	}
	return p, nil
}

func shellSource(t *testing.T, dir, name, script string) {
	t.Helper()
	write(t, filepath.Join(dir, ManifestFile), strings.Join([]string{
		"name: " + name,
		"version: 0.1.0",
		"build: [\"sh\", \"-c\", " + quote(script) + "]",
		"artifact: out/*.so",
	}, "\n")+"\n")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type rig struct {
	inst    *Installer
	store   *store.InstallStore
	plugins string
	events  map[hooks.Event][]string
}

func newRig(t *testing.T, prober Prober, clone CloneFunc) *rig {
	t.Helper()
	log := logging.Nop()
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := &rig{
		store:   store.NewInstallStore(db),
		plugins: filepath.Join(t.TempDir(), "plugins"),
		events:  map[hooks.Event][]string{},
	}
	hm := hooks.NewManager(log)
	for _, ev := range []hooks.Event{hooks.EventPluginInstalled, hooks.EventPluginInstallFail} {
		hm.On(ev, "test", func(_ context.Context, p hooks.Payload) error {
			r.events[p.Event] = append(r.events[p.Event], p.Plugin)
			return nil
		})
	}

	r.inst, err = New(Options{
		PluginsDir:   r.plugins,
		Prober:       prober,
		Store:        r.store,
		Hooks:        hm,
		Clone:        clone,
		BuildTimeout: "30s",
	}, log)
	require.NoError(t, err)
	return r
}

func TestNew_RequiresDirAndProber(t *testing.T) {
	_, err := New(Options{Prober: fakeProber{}}, logging.Nop())
	assert.Error(t, err)
	_, err = New(Options{PluginsDir: t.TempDir()}, logging.Nop())
	assert.Error(t, err)
}

func TestFindSources(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "ws", "Cargo.toml"), "[workspace]\nmembers = [\"plugins/*\"]\n")
	write(t, filepath.Join(root, "ws", "plugins", "git-status", "Cargo.toml"), `
[package]
name = "git-status"
version = "0.2.0"

[dependencies]
lla_plugin_interface = { path = "../../lla_plugin_interface" }
`)
	write(t, filepath.Join(root, "ws", "plugins", "inherits", "Cargo.toml"), `
[package]
name = "inherits"
version.workspace = true

[dependencies]
lla_plugin_interface = "0.3"
`)
	write(t, filepath.Join(root, "ws", "lla_plugin_interface", "Cargo.toml"), `
[package]
name = "lla_plugin_interface"
version = "0.3.0"

[dependencies]
lla_plugin_interface = "0.2"
`)
	write(t, filepath.Join(root, "ws", "plugins", "git-status", "target", "release", "build", "Cargo.toml"),
		"[package]\nname = \"junk\"\n[dependencies]\nlla_plugin_interface = \"0.3\"\n")
	write(t, filepath.Join(root, "plain", "Cargo.toml"), "[package]\nname = \"plain\"\n[dependencies]\nserde = \"1\"\n")
	shellSource(t, filepath.Join(root, "other"), "hello", "true")

	srcs, err := FindSources(root)
	require.NoError(t, err)
	require.Len(t, srcs, 3)

	assert.Equal(t, filepath.Join(root, "other"), srcs[0].Dir)
	assert.Equal(t, "hello", srcs[0].Name)
	require.NotNil(t, srcs[0].Manifest)
	assert.Empty(t, srcs[0].Workspace)

	assert.Equal(t, "git-status", srcs[1].Name)
	assert.Equal(t, "0.2.0", srcs[1].Version)
	assert.Equal(t, filepath.Join(root, "ws"), srcs[1].Workspace)

	assert.Equal(t, "inherits", srcs[2].Name)
	assert.Empty(t, srcs[2].Version)
}

func TestFindSources_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	write(t, f, "x")
	_, err := FindSources(f)
	assert.Error(t, err)
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name    string
		src     Source
		wantDir string
		want    []string
	}{
		{"standalone crate", Source{Dir: "/p", Name: "sizes"}, "/p", []string{"cargo", "build", "--release"}},
		{"workspace member", Source{Dir: "/w/p", Name: "sizes", Workspace: "/w"}, "/w",
			[]string{"cargo", "build", "--release", "-p", "sizes"}},
		{"manifest override", Source{Dir: "/p", Workspace: "/w", Manifest: &Manifest{Build: []string{"make", "lib"}}},
			"/p", []string{"make", "lib"}},
		{"manifest without build", Source{Dir: "/p", Name: "x", Manifest: &Manifest{}}, "/p",
			[]string{"cargo", "build", "--release"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, args := buildCommand(tt.src)
			assert.Equal(t, tt.wantDir, dir)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestFindArtifact_CargoLayout(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "target", "release", "libgit_status"+libraryExt())
	write(t, lib, "elf")
	write(t, filepath.Join(dir, "target", "release", "libgit_status.d"), "deps")

	got, err := findArtifact(Source{Dir: dir, Name: "git-status"}, dir)
	require.NoError(t, err)
	assert.Equal(t, lib, got)

	_, err = findArtifact(Source{Dir: dir, Name: "other"}, dir)
	assert.ErrorContains(t, err, "no library produced")
}

func TestInstallDir(t *testing.T) {
	root := t.TempDir()
	shellSource(t, root, "hello", "mkdir -p out && printf lib > out/libhello.so")
	r := newRig(t, fakeProber{"libhello.so": {Name: "hello", Version: "0.1.1", Protocol: 1}}, nil)

	sum, err := r.inst.InstallDir(context.Background(), root)
	require.NoError(t, err)
	require.True(t, sum.OK())
	require.Len(t, sum.Installed, 1)

	res := sum.Installed[0]
	assert.Equal(t, "hello", res.Name)
	assert.Equal(t, "0.1.1", res.Version)
	assert.Equal(t, filepath.Join(r.plugins, "libhello.so"), res.Library)
	data, err := os.ReadFile(res.Library)
	require.NoError(t, err)
	assert.Equal(t, "lib", string(data))

	rec, err := r.store.Get("hello")
	require.NoError(t, err)
	assert.Equal(t, store.SourceDir, rec.SourceKind)
	assert.Equal(t, root, rec.Source)
	assert.Equal(t, uint32(1), rec.Protocol)
	assert.Equal(t, res.Library, rec.LibraryPath)

	assert.Equal(t, []string{"hello"}, r.events[hooks.EventPluginInstalled])
	assert.Empty(t, r.events[hooks.EventPluginInstallFail])
}

func TestInstallDir_PartialFailure(t *testing.T) {
	root := t.TempDir()
	shellSource(t, filepath.Join(root, "a"), "broken", "echo oops >&2; exit 3")
	shellSource(t, filepath.Join(root, "b"), "fine", "mkdir -p out && printf lib > out/libfine.so")
	shellSource(t, filepath.Join(root, "c"), "bogus", "mkdir -p out && printf junk > out/libbogus.so")
	r := newRig(t, fakeProber{"libfine.so": {Name: "fine", Protocol: 1}}, nil)

	sum, err := r.inst.InstallDir(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, sum.OK())
	require.Len(t, sum.Installed, 1)
	assert.Equal(t, "fine", sum.Installed[0].Name)

	require.Len(t, sum.Failed, 2)
	assert.Equal(t, "broken", sum.Failed[0].Name)
	assert.ErrorContains(t, sum.Failed[0].Err, "exit 3")
	assert.ErrorContains(t, sum.Failed[0].Err, "oops")
	assert.Equal(t, "bogus", sum.Failed[1].Name)
	assert.ErrorContains(t, sum.Failed[1].Err, "not a usable plugin")
	assert.NoFileExists(t, filepath.Join(r.plugins, "libbogus.so"))

	_, err = r.store.Get("bogus")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{"broken", "bogus"}, r.events[hooks.EventPluginInstallFail])
}

func TestInstallDir_NoSources(t *testing.T) {
	r := newRig(t, fakeProber{}, nil)
	_, err := r.inst.InstallDir(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestInstallGit(t *testing.T) {
	var cloned string
	clone := func(_ context.Context, url, dir string) (string, error) {
		assert.Equal(t, "https://example.com/plugins.git", url)
		cloned = dir
		shellSource(t, filepath.Join(dir, "plugins", "hello"), "hello",
			"mkdir -p out && printf lib > out/libhello.so")
		return "abc123", nil
	}
	r := newRig(t, fakeProber{"libhello.so": {Name: "hello", Protocol: 1}}, clone)

	sum, err := r.inst.InstallGit(context.Background(), "https://example.com/plugins.git")
	require.NoError(t, err)
	require.Len(t, sum.Installed, 1)
	assert.NoDirExists(t, cloned)

	rec, err := r.store.Get("hello")
	require.NoError(t, err)
	assert.Equal(t, store.SourceGit, rec.SourceKind)
	assert.Equal(t, "abc123", rec.Revision)
	assert.Equal(t, "0.1.0", rec.Version)
}

func TestInstallGit_CloneError(t *testing.T) {
	clone := func(context.Context, string, string) (string, error) {
		return "", errors.New("authentication required")
	}
	r := newRig(t, fakeProber{}, clone)
	_, err := r.inst.InstallGit(context.Background(), "https://example.com/private.git")
	assert.ErrorContains(t, err, "authentication required")
}

func TestInstall_Cancelled(t *testing.T) {
	root := t.TempDir()
	shellSource(t, root, "hello", "true")
	r := newRig(t, fakeProber{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.inst.InstallDir(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
