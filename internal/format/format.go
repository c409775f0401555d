// Package format renders listed entries for the terminal.
package format

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/soyeahso/lla/pkg/wire"
)

// Names accepted by New.
const (
	NameDefault = "default"
	NameLong    = "long"
)

// Formatter writes entries to w.
type Formatter interface {
	Format(w io.Writer, entries []wire.Entry) error
}

// Options shared by all formatters.
type Options struct {
	// Color forces ANSI styling on; false renders plain text.
	Color bool
	// Root, when set, makes names relative to it instead of base names.
	Root string
	// Fields returns the plugin columns for an entry; nil means none.
	Fields func(wire.Entry) []string
	// Owner and Group resolve ids; nil uses the system user database.
	Owner func(uint32) string
	Group func(uint32) string
}

// New returns the formatter called name.
func New(name string, opts Options) (Formatter, error) {
	switch name {
	case NameDefault, "":
		return &Default{opts: opts}, nil
	case NameLong:
		return &Long{opts: opts}, nil
	}
	return nil, fmt.Errorf("unknown format %q", name)
}

type styles struct {
	dir, link, exec, field, size, date, perm lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		dir:   r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		link:  r.NewStyle().Foreground(lipgloss.Color("14")),
		exec:  r.NewStyle().Foreground(lipgloss.Color("10")),
		field: r.NewStyle().Foreground(lipgloss.Color("8")),
		size:  r.NewStyle().Foreground(lipgloss.Color("3")),
		date:  r.NewStyle().Foreground(lipgloss.Color("4")),
		perm:  r.NewStyle().Foreground(lipgloss.Color("5")),
	}
}

func (s styles) name(e wire.Entry, label string) string {
	switch {
	case e.Metadata.Kind == wire.KindDir:
		return s.dir.Render(label)
	case e.Metadata.Kind == wire.KindSymlink:
		return s.link.Render(label)
	case e.Metadata.Permissions&0o111 != 0:
		return s.exec.Render(label)
	}
	return label
}

func displayName(root, path string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Base(path)
}

func fieldsOf(opts Options, e wire.Entry) []string {
	if opts.Fields == nil {
		return nil
	}
	return opts.Fields(e)
}

// Default prints one name per line followed by plugin columns.
type Default struct{ opts Options }

func (d *Default) Format(w io.Writer, entries []wire.Entry) error {
	st := newStyles(w, d.opts.Color)
	for _, e := range entries {
		line := st.name(e, displayName(d.opts.Root, e.Path))
		for _, f := range fieldsOf(d.opts, e) {
			line += "  " + st.field.Render(f)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Long prints permissions, size, modification time, owner and group in
// aligned columns, then the name and plugin columns.
type Long struct {
	opts Options

	mu     sync.Mutex
	users  map[uint32]string
	groups map[uint32]string
}

func (l *Long) Format(w io.Writer, entries []wire.Entry) error {
	st := newStyles(w, l.opts.Color)

	rows := make([][5]string, len(entries))
	var widths [5]int
	for i, e := range entries {
		md := e.Metadata
		rows[i] = [5]string{
			md.Mode().String(),
			humanize.IBytes(md.Size),
			formatTime(md.Modified),
			l.owner(md.UID),
			l.group(md.GID),
		}
		if md.IsDir() {
			rows[i][1] = "-"
		}
		for c, v := range rows[i] {
			widths[c] = max(widths[c], lipgloss.Width(v))
		}
	}

	for i, e := range entries {
		r := rows[i]
		name := st.name(e, displayName(l.opts.Root, e.Path))
		if e.Metadata.Kind == wire.KindSymlink {
			if target, err := os.Readlink(e.Path); err == nil {
				name += " -> " + target
			}
		}
		line := strings.Join([]string{
			st.perm.Render(r[0]),
			st.size.Render(padLeft(r[1], widths[1])),
			st.date.Render(padRight(r[2], widths[2])),
			padRight(r[3], widths[3]),
			padRight(r[4], widths[4]),
			name,
		}, " ")
		for _, f := range fieldsOf(l.opts, e) {
			line += "  " + st.field.Render(f)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (l *Long) owner(uid uint32) string {
	if l.opts.Owner != nil {
		return l.opts.Owner(uid)
	}
	return l.lookup(&l.users, uid, func(id string) (string, error) {
		u, err := user.LookupId(id)
		if err != nil {
			return "", err
		}
		return u.Username, nil
	})
}

func (l *Long) group(gid uint32) string {
	if l.opts.Group != nil {
		return l.opts.Group(gid)
	}
	return l.lookup(&l.groups, gid, func(id string) (string, error) {
		g, err := user.LookupGroupId(id)
		if err != nil {
			return "", err
		}
		return g.Name, nil
	})
}

func (l *Long) lookup(cache *map[uint32]string, id uint32, resolve func(string) (string, error)) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if *cache == nil {
		*cache = make(map[uint32]string)
	}
	if name, ok := (*cache)[id]; ok {
		return name
	}
	s := strconv.FormatUint(uint64(id), 10)
	name, err := resolve(s)
	if err != nil || name == "" {
		name = s
	}
	(*cache)[id] = name
	return name
}

func formatTime(sec uint64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(int64(sec), 0).Format("Jan _2 15:04")
}

func padLeft(s string, w int) string {
	return strings.Repeat(" ", max(w-lipgloss.Width(s), 0)) + s
}

func padRight(s string, w int) string {
	return s + strings.Repeat(" ", max(w-lipgloss.Width(s), 0))
}
