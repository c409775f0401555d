// Package installer builds plugin sources, from a git repository or a local
// directory, and places the resulting libraries in the plugins directory.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jmgilman/go/exec"

	"github.com/soyeahso/lla/internal/hooks"
	"github.com/soyeahso/lla/internal/logging"
	"github.com/soyeahso/lla/internal/plugin"
	"github.com/soyeahso/lla/internal/store"
)

// Prober checks that a library file is a loadable plugin.
type Prober interface {
	Probe(path string) (plugin.Probe, error)
}

// Options configures an Installer.
type Options struct {
	PluginsDir string
	Prober     Prober
	// Store records successful installs; nil skips recording.
	Store *store.InstallStore
	Hooks *hooks.Manager
	// Executor runs build commands; nil runs them on the host with the
	// parent environment.
	Executor exec.Executor
	// Clone fetches a repository; nil uses go-git.
	Clone CloneFunc
	// BuildTimeout bounds each build, in time.ParseDuration syntax.
	BuildTimeout string
	// Output, when set, receives build output as it happens.
	Output io.Writer
}

// Result is the outcome for one plugin source.
type Result struct {
	Source  string
	Name    string
	Version string
	Library string
	Err     error
}

// Summary collects results of one install run.
type Summary struct {
	Installed []Result
	Failed    []Result
}

// OK reports whether every source installed.
func (s Summary) OK() bool { return len(s.Failed) == 0 }

// ErrNoSources is returned when an install root holds no plugin sources.
var ErrNoSources = errors.New("no plugin sources found")

// Installer builds and installs plugins.
type Installer struct {
	opts  Options
	exec  exec.Executor
	clone CloneFunc
	log   *logging.Logger
}

func New(opts Options, log *logging.Logger) (*Installer, error) {
	if opts.PluginsDir == "" {
		return nil, errors.New("installer: plugins directory is required")
	}
	if opts.Prober == nil {
		return nil, errors.New("installer: prober is required")
	}
	ex := opts.Executor
	if ex == nil {
		ex = exec.New(exec.WithInheritEnv(), exec.WithDisableColors())
	}
	clone := opts.Clone
	if clone == nil {
		clone = GitClone
	}
	return &Installer{opts: opts, exec: ex, clone: clone, log: log.Sub("installer")}, nil
}

// InstallGit clones url and installs every plugin source in it.
func (i *Installer) InstallGit(ctx context.Context, url string) (Summary, error) {
	tmp, err := os.MkdirTemp("", "lla-install-*")
	if err != nil {
		return Summary{}, fmt.Errorf("creating clone directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	i.log.Info().Str("url", url).Msg("cloning")
	rev, err := i.clone(ctx, url, tmp)
	if err != nil {
		return Summary{}, fmt.Errorf("cloning %s: %w", url, err)
	}
	return i.install(ctx, tmp, origin{kind: store.SourceGit, source: url, revision: rev})
}

// InstallDir installs every plugin source under dir.
func (i *Installer) InstallDir(ctx context.Context, dir string) (Summary, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Summary{}, err
	}
	return i.install(ctx, abs, origin{kind: store.SourceDir, source: abs})
}

type origin struct {
	kind     store.SourceKind
	source   string
	revision string
}

func (i *Installer) install(ctx context.Context, root string, o origin) (Summary, error) {
	sources, err := FindSources(root)
	if err != nil {
		return Summary{}, err
	}
	if len(sources) == 0 {
		return Summary{}, fmt.Errorf("%w in %s", ErrNoSources, o.source)
	}
	if err := os.MkdirAll(i.opts.PluginsDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating plugins directory: %w", err)
	}

	var sum Summary
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res := i.installOne(ctx, src, o)
		if res.Err != nil {
			i.log.Warn().Err(res.Err).Str("plugin", res.Name).Msg("install failed")
			i.opts.Hooks.Emit(ctx, hooks.EventPluginInstallFail, res.Name, map[string]any{
				"source": o.source,
				"error":  res.Err.Error(),
			})
			sum.Failed = append(sum.Failed, res)
			continue
		}
		i.opts.Hooks.Emit(ctx, hooks.EventPluginInstalled, res.Name, map[string]any{
			"source":  o.source,
			"version": res.Version,
			"library": res.Library,
		})
		sum.Installed = append(sum.Installed, res)
	}
	return sum, nil
}

func (i *Installer) installOne(ctx context.Context, src Source, o origin) Result {
	res := Result{Source: src.Dir, Name: src.Name, Version: src.Version}

	built, err := i.build(ctx, src)
	if err != nil {
		res.Err = err
		return res
	}

	dest := filepath.Join(i.opts.PluginsDir, filepath.Base(built))
	if err := copyFile(built, dest); err != nil {
		res.Err = fmt.Errorf("copying %s: %w", filepath.Base(built), err)
		return res
	}

	probe, err := i.opts.Prober.Probe(dest)
	if err != nil {
		os.Remove(dest)
		res.Err = fmt.Errorf("built library is not a usable plugin: %w", err)
		return res
	}
	res.Name, res.Library = probe.Name, dest
	if probe.Version != "" {
		res.Version = probe.Version
	}

	if i.opts.Store != nil {
		_, err := i.opts.Store.Upsert(store.Install{
			Name:        probe.Name,
			Version:     res.Version,
			Protocol:    probe.Protocol,
			SourceKind:  o.kind,
			Source:      o.source,
			Revision:    o.revision,
			LibraryPath: dest,
		})
		if err != nil {
			// The library is in place and loads; only the bookkeeping failed.
			i.log.Warn().Err(err).Str("plugin", probe.Name).Msg("recording install")
		}
	}
	i.log.Info().Str("plugin", probe.Name).Str("version", res.Version).Str("library", dest).Msg("installed")
	return res
}

// build runs the source's build command and returns the produced library.
func (i *Installer) build(ctx context.Context, src Source) (string, error) {
	dir, args := buildCommand(src)
	i.log.Debug().Str("dir", dir).Strs("cmd", args).Msg("building")

	ex := i.exec.Clone().WithDir(dir).WithContext(ctx)
	if i.opts.BuildTimeout != "" {
		ex = ex.WithTimeout(i.opts.BuildTimeout)
	}
	if i.opts.Output != nil {
		ex = ex.WithStdout(i.opts.Output).WithStderr(i.opts.Output).WithPassthrough()
	}
	if _, err := ex.Run(args...); err != nil {
		var ee *exec.ExecError
		if errors.As(err, &ee) && strings.TrimSpace(ee.Stderr) != "" {
			return "", fmt.Errorf("build failed (exit %d): %s", ee.ExitCode, lastLine(ee.Stderr))
		}
		return "", fmt.Errorf("build failed: %w", err)
	}
	return findArtifact(src, dir)
}

// buildCommand picks the working directory and argv for src. Workspace
// members are built from the workspace root so the shared target directory
// is used.
func buildCommand(src Source) (string, []string) {
	if src.Manifest != nil && len(src.Manifest.Build) > 0 {
		return src.Dir, src.Manifest.Build
	}
	if src.Workspace != "" {
		return src.Workspace, []string{"cargo", "build", "--release", "-p", src.Name}
	}
	return src.Dir, []string{"cargo", "build", "--release"}
}

func findArtifact(src Source, buildDir string) (string, error) {
	var matches []string
	if src.Manifest != nil && src.Manifest.Artifact != "" {
		m, err := filepath.Glob(filepath.Join(src.Dir, src.Manifest.Artifact))
		if err != nil {
			return "", fmt.Errorf("artifact pattern: %w", err)
		}
		matches = m
	} else {
		stem := strings.ReplaceAll(src.Name, "-", "_")
		m, _ := filepath.Glob(filepath.Join(buildDir, "target", "release", "*"+stem+"*"+libraryExt()))
		matches = m
	}

	var libs []string
	for _, m := range matches {
		if plugin.IsLibrary(m) {
			libs = append(libs, m)
		}
	}
	switch len(libs) {
	case 0:
		return "", fmt.Errorf("no library produced for %s", src.Name)
	case 1:
		return libs[0], nil
	default:
		return "", fmt.Errorf("ambiguous build output for %s: %s", src.Name, strings.Join(libs, ", "))
	}
}

func libraryExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// copyFile writes dst through a temporary file so a running lla never sees a
// half-written library.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".install-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
