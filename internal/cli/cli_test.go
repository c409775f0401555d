package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/lla/internal/config"
)

// run executes lla with args against an isolated LLA_HOME.
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LLA_HOME", home)
	t.Setenv("LLA_LOG_LEVEL", "silent")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--color", "never"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"main.go":   "package main",
		"notes.md":  "# notes",
		"data.bin":  "\x00\x01",
		"sub/x.txt": "x",
	} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lla ")
	assert.Contains(t, out, "plugin protocol: [1]")
}

func TestInitAndConfig(t *testing.T) {
	home := t.TempDir()
	_, err := run(t, home, "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, "config.yaml"))
	assert.DirExists(t, filepath.Join(home, "plugins"))

	_, err = run(t, home, "init")
	assert.Error(t, err, "init must not clobber an existing config")

	out, err := run(t, home, "config", "get", "default_sort")
	require.NoError(t, err)
	assert.Equal(t, "name\n", out)

	_, err = run(t, home, "config", "set", "sort.dirs_first", "true")
	require.NoError(t, err)
	out, err = run(t, home, "config", "get", "sort.dirs_first")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = run(t, home, "config", "set", "default_sort", "colour")
	assert.ErrorContains(t, err, "default_sort")

	_, err = run(t, home, "config", "set", "nonsense", "1")
	assert.Error(t, err)

	_, err = run(t, home, "config", "unset", "sort.dirs_first")
	require.NoError(t, err)
	_, err = run(t, home, "config", "get", "sort.dirs_first")
	assert.Error(t, err)

	out, err = run(t, home, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", out)
}

func TestList_Plain(t *testing.T) {
	dir := project(t)
	out, err := run(t, t.TempDir(), dir)
	require.NoError(t, err)
	assert.Equal(t, "data.bin\nmain.go\nnotes.md\nsub\n", out)

	out, err = run(t, t.TempDir(), "-s", "size", "-r", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "main.go")

	out, err = run(t, t.TempDir(), "-R", "-f", "*.txt", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("sub", "x.txt")+"\n", out)

	_, err = run(t, t.TempDir(), "-s", "colour", dir)
	assert.Error(t, err)
}

func TestEnableBuiltinAndList(t *testing.T) {
	home := t.TempDir()
	dir := project(t)

	out, err := run(t, home, "--enable-plugin", "categorizer")
	require.NoError(t, err)
	assert.Equal(t, "Enabled categorizer\n", out)

	c, err := config.Load(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"categorizer"}, c.EnabledPlugins)

	out, err = run(t, home, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "main.go  [Code]")
	assert.Contains(t, out, "notes.md  [Document]")
	assert.Contains(t, out, "data.bin\n")

	out, err = run(t, home, "-l", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "[Code] (")

	out, err = run(t, home, "list-plugins")
	require.NoError(t, err)
	assert.Contains(t, out, "categorizer")
	assert.Contains(t, out, "enabled")

	_, err = run(t, home, "--disable-plugin", "categorizer")
	require.NoError(t, err)
	out, err = run(t, home, dir)
	require.NoError(t, err)
	assert.NotContains(t, out, "[Code]")
}

func TestEnableUnknownPlugin(t *testing.T) {
	_, err := run(t, t.TempDir(), "--enable-plugin", "ghost")
	assert.ErrorContains(t, err, "ghost")
}

func TestPluginActionAndShortcut(t *testing.T) {
	home := t.TempDir()
	_, err := run(t, home, "plugin", "--name", "categorizer", "--action", "list-categories")
	assert.ErrorContains(t, err, "disabled")

	_, err = run(t, home, "--enable-plugin", "categorizer")
	require.NoError(t, err)
	out, err := run(t, home, "plugin", "--name", "categorizer", "--action", "list-categories")
	require.NoError(t, err)
	assert.Contains(t, out, "Code")

	_, err = run(t, home, "plugin", "--name", "categorizer", "--action", "explode")
	assert.Error(t, err)

	_, err = run(t, home, "shortcut", "add", "cats", "categorizer", "list-categories", "--description", "show rules")
	require.NoError(t, err)
	out, err = run(t, home, "shortcut", "list")
	require.NoError(t, err)
	assert.Equal(t, "cats -> categorizer list-categories  # show rules\n", out)

	out, err = run(t, home, "shortcut", "run", "cats")
	require.NoError(t, err)
	assert.Contains(t, out, "Document")

	_, err = run(t, home, "shortcut", "run", "nope")
	assert.ErrorContains(t, err, "cats")

	_, err = run(t, home, "shortcut", "remove", "cats")
	require.NoError(t, err)
	out, err = run(t, home, "shortcut", "list")
	require.NoError(t, err)
	assert.Equal(t, "No shortcuts defined.\n", out)
}

func TestClean_RemovesJunkLibraries(t *testing.T) {
	home := t.TempDir()
	plugins := filepath.Join(home, "plugins")
	require.NoError(t, os.MkdirAll(plugins, 0o755))
	junk := filepath.Join(plugins, "libjunk.so")
	require.NoError(t, os.WriteFile(junk, []byte("not a library"), 0o644))

	out, err := run(t, home, "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "1 removed, 0 kept")
	assert.NoFileExists(t, junk)
}

func TestInstall_RequiresOneSource(t *testing.T) {
	_, err := run(t, t.TempDir(), "install")
	assert.Error(t, err)
}
