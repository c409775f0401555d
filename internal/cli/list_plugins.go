package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soyeahso/lla/internal/plugin"
	"github.com/soyeahso/lla/internal/store"
)

func newListPluginsCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "list-plugins",
		Short: "List loaded plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(runtimeOptions{out: cmd.OutOrStdout(), store: true, discover: true})
			if err != nil {
				return err
			}
			defer rt.close()
			return printPlugins(cmd.OutOrStdout(), rt.manager.List(), rt.installs, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show formats, arguments and install source")
	return cmd
}

func printPlugins(w io.Writer, list []plugin.PluginDetails, installs *store.InstallStore, verbose bool) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No plugins loaded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tSTATUS\tDESCRIPTION")
	for _, p := range list {
		status := "disabled"
		if p.Enabled {
			status = "enabled"
		}
		desc := p.Description
		if p.Err != nil {
			desc = "error: " + p.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Version, status, desc)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !verbose {
		return nil
	}

	for _, p := range list {
		fmt.Fprintf(w, "\n%s\n", p.Name)
		fmt.Fprintf(w, "  library:  %s\n", p.Path)
		fmt.Fprintf(w, "  protocol: %d\n", p.Protocol)
		if len(p.Formats) > 0 {
			fmt.Fprintf(w, "  formats:  %s\n", strings.Join(p.Formats, ", "))
		}
		for _, a := range p.CliArgs {
			flag := "--" + a.Long
			if a.Short != "" {
				flag = "-" + a.Short + ", " + flag
			}
			fmt.Fprintf(w, "  arg:      %s  %s\n", flag, a.Help)
		}
		if installs == nil {
			continue
		}
		rec, err := installs.Get(p.Name)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			fmt.Fprintf(w, "  source:   %s %s", rec.SourceKind, rec.Source)
			if rec.Revision != "" {
				fmt.Fprintf(w, " @ %.7s", rec.Revision)
			}
			fmt.Fprintf(w, "\n  updated:  %s\n", rec.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
	}
	return nil
}
