package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/soyeahso/lla/internal/format"
	"github.com/soyeahso/lla/internal/lister"
	"github.com/soyeahso/lla/pkg/wire"
)

type listFlags struct {
	long      bool
	sortBy    string
	reverse   bool
	filter    string
	recursive bool
	depth     int
	all       bool
	dirsFirst bool
	enable    []string
	disable   []string
}

func (f *listFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVarP(&f.long, "long", "l", false, "use long listing format")
	fl.StringVarP(&f.sortBy, "sort", "s", "", "sort by name, size or date")
	fl.BoolVarP(&f.reverse, "sort-reverse", "r", false, "reverse the sort order")
	fl.StringVarP(&f.filter, "filter", "f", "", "only show entries whose name contains or matches this")
	fl.BoolVarP(&f.recursive, "recursive", "R", false, "list subdirectories recursively")
	fl.IntVarP(&f.depth, "depth", "d", -1, "recursion depth (0 = unlimited)")
	fl.BoolVarP(&f.all, "all", "a", false, "include entries starting with a dot")
	fl.BoolVar(&f.dirsFirst, "dirs-first", false, "list directories before files")
	fl.StringSliceVar(&f.enable, "enable-plugin", nil, "enable plugins by name")
	fl.StringSliceVar(&f.disable, "disable-plugin", nil, "disable plugins by name")
}

func runList(cmd *cobra.Command, args []string, f listFlags) error {
	out := cmd.OutOrStdout()
	rt, err := openRuntime(runtimeOptions{out: out, discover: true})
	if err != nil {
		return err
	}
	defer rt.close()

	if len(f.enable) > 0 || len(f.disable) > 0 {
		for _, name := range f.enable {
			if err := rt.manager.Enable(name); err != nil {
				return err
			}
			fmt.Fprintf(out, "Enabled %s\n", name)
		}
		for _, name := range f.disable {
			if err := rt.manager.Disable(name); err != nil {
				return err
			}
			fmt.Fprintf(out, "Disabled %s\n", name)
		}
		return nil
	}

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	formatName := cfg.DefaultFormat
	if f.long {
		formatName = format.NameLong
	}
	by, err := lister.ParseSortBy(firstNonEmpty(f.sortBy, cfg.DefaultSort))
	if err != nil {
		return err
	}
	depth := cfg.DefaultDepth
	if f.depth >= 0 {
		depth = f.depth
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := lister.List(ctx, dir, lister.Options{
		Recursive:     f.recursive,
		Depth:         depth,
		MaxEntries:    cfg.Listers.Recursive.MaxEntries,
		Filter:        f.filter,
		CaseSensitive: cfg.Filter.CaseSensitive,
		All:           f.all,
	})
	if err != nil {
		return err
	}
	for _, skipped := range res.Skipped {
		log.Warn().Err(skipped).Msg("skipped directory")
	}
	if res.Truncated {
		fmt.Fprintf(cmd.ErrOrStderr(), "lla: listing stopped at %d entries\n", len(res.Entries))
	}

	lister.Sort(res.Entries, lister.SortOptions{
		By:            by,
		Reverse:       f.reverse,
		DirsFirst:     f.dirsFirst || cfg.Sort.DirsFirst,
		CaseSensitive: cfg.Sort.CaseSensitive,
		Natural:       cfg.Sort.Natural,
	})

	decorated, _, err := rt.manager.Decorator().DecorateAll(ctx, res.Entries, formatName)
	if err != nil {
		return err
	}

	fields, err := pluginFields(rt, decorated, formatName)
	if err != nil {
		return err
	}

	root := ""
	if f.recursive {
		root = dir
	}
	fm, err := format.New(formatName, format.Options{
		Color:  useColor(),
		Root:   root,
		Fields: func(e wire.Entry) []string { return fields[e.Path] },
	})
	if err != nil {
		return err
	}
	return fm.Format(out, decorated)
}

// pluginFields renders each enabled plugin's column for every entry.
// Per-entry failures are logged and leave the column out.
func pluginFields(rt *pluginRuntime, entries []wire.Entry, formatName string) (map[string][]string, error) {
	out := make(map[string][]string, len(entries))
	for _, e := range entries {
		vals, diags, err := rt.manager.Decorator().FormatFields(e, formatName)
		if err != nil {
			return nil, err
		}
		for _, d := range diags {
			log.Warn().Err(d.Err).Str("plugin", d.Plugin).Str("path", d.Path).Msg("format field")
		}
		for _, v := range vals {
			out[e.Path] = append(out[e.Path], v.Value)
		}
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
