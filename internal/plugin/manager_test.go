package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/lla/internal/config"
	"github.com/soyeahso/lla/internal/ffi"
	"github.com/soyeahso/lla/internal/hooks"
	"github.com/soyeahso/lla/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, plugins map[string]*testPlugin, configPath string) (*Manager, *hooks.Manager) {
	t.Helper()
	log := testLog()
	hm := hooks.NewManager(log)
	m, err := NewManager(hm, log, ManagerOptions{
		Open:       fakeOpen(plugins),
		ConfigPath: configPath,
		Decoration: DecoratorOptions{Workers: 2},
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, hm
}

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()
	future := newTestPlugin("future")
	future.protocol = 7
	plugins := map[string]*testPlugin{
		"a.so":      newTestPlugin("alpha"),
		"b.dylib":   newTestPlugin("beta"),
		"future.so": future,
		"clone.so":  newTestPlugin("alpha"),
	}
	for name := range plugins {
		touch(t, dir, name)
	}
	touch(t, dir, "broken.so")
	touch(t, dir, "README.md")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.so"), 0o755))

	m, hm := newTestManager(t, plugins, "")
	var rejectedEvents int
	hm.On(hooks.EventPluginRejected, "test", func(_ context.Context, _ hooks.Payload) error {
		rejectedEvents++
		return nil
	})

	loaded, rejected, err := m.Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, loaded)

	reasons := map[string]error{}
	for _, r := range rejected {
		reasons[filepath.Base(r.Path)] = r.Err
	}
	require.Len(t, reasons, 3)
	assert.ErrorIs(t, reasons["broken.so"], ErrInvalidLibrary)
	assert.ErrorIs(t, reasons["clone.so"], ErrDuplicateName)
	var ve *VersionError
	assert.ErrorAs(t, reasons["future.so"], &ve)
	assert.Equal(t, 3, rejectedEvents)

	// The rejected version-7 plugin only ever saw GetVersion.
	assert.Equal(t, []wire.Tag{wire.TagGetVersion}, future.seen())

	// A second pass skips libraries already loaded.
	loaded, _, err = m.Discover(dir)
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.Equal(t, 2, m.Registry().Count())
}

func TestManager_DiscoverCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plugins")
	m, _ := newTestManager(t, nil, "")

	loaded, rejected, err := m.Discover(dir)
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.Empty(t, rejected)
	assert.DirExists(t, dir)
}

func TestManager_DiscoverDedupesSymlinks(t *testing.T) {
	dir := t.TempDir()
	real := touch(t, dir, "real.so")
	require.NoError(t, os.Symlink(real, filepath.Join(dir, "link.so")))
	p := newTestPlugin("once")

	m, _ := newTestManager(t, map[string]*testPlugin{"real.so": p, "link.so": p}, "")
	loaded, rejected, err := m.Discover(dir)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Empty(t, rejected)
}

func TestManager_RegisterBuiltin(t *testing.T) {
	m, _ := newTestManager(t, nil, "")
	p := newTestPlugin("builtin_one")

	require.NoError(t, m.RegisterBuiltin("builtin_one", p.factory))
	h := m.Registry().Get("builtin_one")
	require.NotNil(t, h)
	assert.Equal(t, "builtin:builtin_one", h.Path())
	assert.Equal(t, []wire.Tag{wire.TagGetVersion, wire.TagGetName}, p.seen())

	err := m.RegisterBuiltin("nil", func() ffi.Handler { return nil })
	assert.ErrorIs(t, err, ErrConstructionFailed)
}

func TestManager_ApplyEnabledOrder(t *testing.T) {
	m, _ := newTestManager(t, nil, "")
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, m.RegisterBuiltin(name, newTestPlugin(name).factory))
	}

	m.ApplyEnabled([]string{"c", "missing", "a"})
	assert.Equal(t, []string{"c", "a"}, m.Registry().EnabledNames())
}

func TestManager_EnableDisablePersist(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	m, _ := newTestManager(t, nil, cfgPath)
	require.NoError(t, m.RegisterBuiltin("hash", newTestPlugin("hash").factory))

	require.NoError(t, m.Enable("hash"))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"hash"}, cfg.EnabledPlugins)
	assert.True(t, m.Registry().IsEnabled("hash"))

	assert.ErrorIs(t, m.Enable("ghost"), ErrUnknownName)

	require.NoError(t, m.Disable("hash"))
	cfg, err = config.Load(cfgPath)
	require.NoError(t, err)
	assert.Empty(t, cfg.EnabledPlugins)
	assert.False(t, m.Registry().IsEnabled("hash"))
}

func TestManager_Clean(t *testing.T) {
	dir := t.TempDir()
	good := newTestPlugin("good")
	drifting := newTestPlugin("drifting")
	plugins := map[string]*testPlugin{"good.so": good, "drifting.so": drifting}
	for name := range plugins {
		touch(t, dir, name)
	}
	garbage := touch(t, dir, "garbage.so")

	m, _ := newTestManager(t, plugins, "")
	_, _, err := m.Discover(dir)
	require.NoError(t, err)
	drifted := m.Registry().Get("drifting")
	require.NotNil(t, drifted)

	// The library on disk was replaced by one speaking another protocol.
	drifting.protocol = 42

	report, err := m.Clean(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "good.so")}, report.Kept)

	removed := map[string]bool{}
	for _, r := range report.Removed {
		removed[filepath.Base(r.Path)] = true
	}
	assert.Equal(t, map[string]bool{"drifting.so": true, "garbage.so": true}, removed)

	assert.NoFileExists(t, garbage)
	assert.NoFileExists(t, filepath.Join(dir, "drifting.so"))
	assert.Nil(t, m.Registry().Get("drifting"))
	assert.True(t, drifted.Closed())
	assert.NotNil(t, m.Registry().Get("good"))
}

func TestManager_CleanUnloadsMovedLibraries(t *testing.T) {
	elsewhere := t.TempDir()
	moved := newTestPlugin("moved")
	stays := newTestPlugin("stays")
	movedPath := touch(t, elsewhere, "moved.so")
	staysPath := touch(t, elsewhere, "stays.so")

	m, _ := newTestManager(t, map[string]*testPlugin{"moved.so": moved, "stays.so": stays}, "")
	_, _, err := m.Discover(elsewhere)
	require.NoError(t, err)
	h := m.Registry().Get("moved")
	require.NotNil(t, h)

	require.NoError(t, os.Remove(movedPath))

	report, err := m.Clean(filepath.Join(t.TempDir(), "plugins"))
	require.NoError(t, err)
	require.Len(t, report.Removed, 1)
	assert.Equal(t, "moved.so", filepath.Base(report.Removed[0].Path))
	assert.ErrorIs(t, report.Removed[0].Err, ErrNotFound)
	require.Len(t, report.Kept, 1)
	assert.Equal(t, "stays.so", filepath.Base(report.Kept[0]))

	assert.Nil(t, m.Registry().Get("moved"))
	assert.True(t, h.Closed())
	assert.NotNil(t, m.Registry().Get("stays"))
	assert.FileExists(t, staysPath)
}

func TestManager_ListAndAction(t *testing.T) {
	m, _ := newTestManager(t, nil, "")
	p := newTestPlugin("tools")
	require.NoError(t, m.RegisterBuiltin("tools", p.factory))
	require.NoError(t, m.Registry().Enable("tools"))

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, "tools", list[0].Name)
	assert.Equal(t, "tools test plugin", list[0].Description)
	assert.Equal(t, []string{"default", "long"}, list[0].Formats)
	assert.True(t, list[0].Enabled)
	assert.NoError(t, list[0].Err)

	resp, err := m.Action("tools", "refresh", []string{"x"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"refresh"}, p.actions)

	_, err = m.Action("nope", "refresh", nil)
	assert.True(t, IsKind(err, UnknownPlugin))
}

func TestManager_ActionRefusesDisabledPlugin(t *testing.T) {
	m, _ := newTestManager(t, nil, "")
	p := newTestPlugin("idle")
	require.NoError(t, m.RegisterBuiltin("idle", p.factory))
	require.False(t, m.Registry().IsEnabled("idle"))

	_, err := m.Action("idle", "run", nil)
	assert.True(t, IsKind(err, Disabled))
	assert.Empty(t, p.actions)

	require.NoError(t, m.Registry().Enable("idle"))
	require.NoError(t, m.Registry().Disable("idle"))
	_, err = m.Action("idle", "run", nil)
	assert.True(t, IsKind(err, Disabled))
	assert.Empty(t, p.actions)
}

func TestManager_DecoratesThroughRegistry(t *testing.T) {
	m, _ := newTestManager(t, nil, "")
	require.NoError(t, m.RegisterBuiltin("first", newTestPlugin("first").factory))
	m.ApplyEnabled([]string{"first"})

	out, diags, err := m.Decorator().DecorateAll(context.Background(), testEntries(2), "default")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "seen", out[0].CustomFields["first"])
}

func TestManager_ProbeLeavesRegistryAlone(t *testing.T) {
	dir := t.TempDir()
	p := newTestPlugin("probed")
	p.version = "2.1.0"
	path := touch(t, dir, "probed.so")
	m, _ := newTestManager(t, map[string]*testPlugin{"probed.so": p}, "")

	got, err := m.Probe(path)
	require.NoError(t, err)
	assert.Equal(t, Probe{Name: "probed", Version: "2.1.0", Protocol: wire.ProtocolVersion}, got)
	assert.Zero(t, m.Registry().Count())

	_, err = m.Probe(touch(t, dir, "junk.so"))
	assert.ErrorIs(t, err, ErrInvalidLibrary)
}
