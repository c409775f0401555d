package wire

import (
	"io/fs"
	"maps"
)

// Kind classifies the filesystem object an Entry describes.
type Kind uint8

const (
	KindOther Kind = iota
	KindFile
	KindDir
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindOther:
		return "other"
	default:
		return "invalid"
	}
}

func (k Kind) valid() bool { return k <= KindSymlink }

// Metadata is a platform-independent snapshot of a filesystem object.
// Timestamps are seconds since the Unix epoch; zero means unknown.
type Metadata struct {
	Size        uint64
	Modified    uint64
	Accessed    uint64
	Created     uint64
	Kind        Kind
	Permissions uint32
	UID         uint32
	GID         uint32
}

// IsDir reports whether the metadata describes a directory.
func (m Metadata) IsDir() bool { return m.Kind == KindDir }

// Mode returns the permission bits and kind as an fs.FileMode.
func (m Metadata) Mode() fs.FileMode {
	mode := fs.FileMode(m.Permissions & 0o777)
	switch m.Kind {
	case KindDir:
		mode |= fs.ModeDir
	case KindSymlink:
		mode |= fs.ModeSymlink
	}
	return mode
}

// Entry is one listed filesystem object plus the custom fields plugins
// contributed to it. Entries are passed by value across the plugin
// boundary; use Clone before handing one to code that may mutate it.
type Entry struct {
	Path         string
	Metadata     Metadata
	CustomFields map[string]string
}

// NewEntry returns an Entry with an allocated CustomFields map.
func NewEntry(path string, md Metadata) Entry {
	return Entry{Path: path, Metadata: md, CustomFields: make(map[string]string)}
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	out := e
	out.CustomFields = make(map[string]string, len(e.CustomFields))
	maps.Copy(out.CustomFields, e.CustomFields)
	return out
}

// Merge copies fields into e.CustomFields. Keys in fields win.
func (e *Entry) Merge(fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	if e.CustomFields == nil {
		e.CustomFields = make(map[string]string, len(fields))
	}
	maps.Copy(e.CustomFields, fields)
}
