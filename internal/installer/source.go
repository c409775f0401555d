package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ManifestFile marks a plugin source directory that is not a cargo crate, or
// one whose build needs overriding.
const ManifestFile = "lla-plugin.yaml"

// interfaceCrate is the dependency that makes a cargo crate a plugin.
const interfaceCrate = "lla_plugin_interface"

// maxSearchDepth bounds how far below the install root sources are looked for.
const maxSearchDepth = 5

// Manifest is the content of lla-plugin.yaml.
type Manifest struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Build is the command run in the source directory. Empty means cargo.
	Build []string `yaml:"build,omitempty"`
	// Artifact is a glob, relative to the source directory, matching the
	// built library.
	Artifact string `yaml:"artifact,omitempty"`
}

// Source is one buildable plugin found under an install root.
type Source struct {
	Dir      string
	Name     string
	Version  string
	Manifest *Manifest
	// Workspace is the cargo workspace root the crate belongs to, if any.
	Workspace string
}

type cargoManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version any    `toml:"version"`
	} `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
	Workspace    *struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
}

func readCargo(dir string) (*cargoManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		return nil, err
	}
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Join(dir, "Cargo.toml"), err)
	}
	return &m, nil
}

func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Join(dir, ManifestFile), err)
	}
	return &m, nil
}

// FindSources walks root and returns every plugin source directory, sorted
// by path. A directory qualifies when it has an lla-plugin.yaml or a
// Cargo.toml depending on the plugin interface crate. Build output and VCS
// directories are skipped.
func FindSources(root string) ([]Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var out []Source
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			switch d.Name() {
			case "target", ".git", "node_modules":
				return fs.SkipDir
			}
			rel, _ := filepath.Rel(root, path)
			if strings.Count(rel, string(filepath.Separator)) >= maxSearchDepth {
				return fs.SkipDir
			}
		}

		src, ok, err := inspect(path)
		if err != nil {
			return err
		}
		if ok {
			src.Workspace = findWorkspace(root, path)
			out = append(out, src)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}

func inspect(dir string) (Source, bool, error) {
	src := Source{Dir: dir}

	man, err := readManifest(dir)
	switch {
	case err == nil:
		src.Manifest = man
		src.Name, src.Version = man.Name, man.Version
	case !errors.Is(err, fs.ErrNotExist):
		return src, false, err
	}

	cargo, err := readCargo(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if src.Manifest == nil {
			return src, false, nil
		}
	case err != nil:
		return src, false, err
	default:
		_, plugin := cargo.Dependencies[interfaceCrate]
		if src.Manifest == nil && (!plugin || cargo.Package.Name == interfaceCrate) {
			return src, false, nil
		}
		if src.Name == "" {
			src.Name = cargo.Package.Name
		}
		if v, ok := cargo.Package.Version.(string); ok && src.Version == "" {
			src.Version = v
		}
	}

	if src.Name == "" {
		src.Name = filepath.Base(dir)
	}
	return src, true, nil
}

// findWorkspace returns the closest ancestor of dir, not above root, whose
// Cargo.toml declares a workspace.
func findWorkspace(root, dir string) string {
	for cur := filepath.Dir(dir); ; cur = filepath.Dir(cur) {
		if rel, err := filepath.Rel(root, cur); err != nil || strings.HasPrefix(rel, "..") {
			return ""
		}
		if m, err := readCargo(cur); err == nil && m.Workspace != nil {
			return cur
		}
		if cur == root || cur == filepath.Dir(cur) {
			return ""
		}
	}
}
