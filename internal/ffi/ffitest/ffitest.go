// Package ffitest builds a small C plugin library for tests that need to
// cross the real dynamic-library boundary.
package ffitest

import (
	_ "embed"
	"os"
	osexec "os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jmgilman/go/exec"
	"github.com/stretchr/testify/require"
)

//go:embed fixture.c
var fixtureSource []byte

// EventsEnv names the file the fixture appends its entry-point calls to.
const EventsEnv = "LLA_FIXTURE_EVENTS"

// Build compiles the fixture plugin with the given preprocessor defines
// (e.g. "FIXTURE_NO_FREE", "FIXTURE_PROTOCOL=7") and returns the library
// path. The test is skipped when no C compiler is available.
func Build(t testing.TB, name string, defines ...string) string {
	t.Helper()
	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	if _, err := osexec.LookPath(cc); err != nil {
		t.Skipf("no C compiler (%s) available", cc)
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "fixture.c")
	require.NoError(t, os.WriteFile(src, fixtureSource, 0o644))
	lib := filepath.Join(dir, "lib"+name+LibraryExt())

	args := []string{cc, "-shared", "-fPIC", "-o", lib}
	for _, d := range defines {
		args = append(args, "-D"+d)
	}
	args = append(args, src)
	if res, err := exec.New().WithDir(dir).Run(args...); err != nil {
		stderr := ""
		if res != nil {
			stderr = res.Stderr
		}
		t.Fatalf("compile fixture: %v\n%s", err, stderr)
	}
	return lib
}

// LibraryExt is the shared library suffix for the running platform.
func LibraryExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	}
	return ".so"
}

// RecordEvents points the fixture at a fresh events file for this test.
func RecordEvents(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events")
	t.Setenv(EventsEnv, path)
	return path
}

// Events returns the entry points the fixture recorded, in call order.
func Events(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Fields(string(data))
}
