package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/soyeahso/lla/internal/installer"
)

func newInstallCmd() *cobra.Command {
	var gitURL, dir, timeout string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Build and install plugins from a git repository or a local directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (gitURL == "") == (dir == "") {
				return errors.New("give exactly one of --git or --dir")
			}
			out := cmd.OutOrStdout()

			rt, err := openRuntime(runtimeOptions{out: out, store: true})
			if err != nil {
				return err
			}
			defer rt.close()

			opts := installer.Options{
				PluginsDir:   rt.dir,
				Prober:       rt.manager,
				Store:        rt.installs,
				Hooks:        rt.hooks,
				BuildTimeout: timeout,
			}
			if verbose {
				opts.Output = cmd.ErrOrStderr()
			}
			inst, err := installer.New(opts, log)
			if err != nil {
				return err
			}

			var sum installer.Summary
			if gitURL != "" {
				fmt.Fprintf(out, "Installing from %s\n", gitURL)
				sum, err = inst.InstallGit(cmd.Context(), gitURL)
			} else {
				fmt.Fprintf(out, "Installing from %s\n", dir)
				sum, err = inst.InstallDir(cmd.Context(), dir)
			}
			if err != nil {
				return err
			}
			printSummary(out, sum)
			if !sum.OK() {
				return fmt.Errorf("%d of %d plugins failed to install", len(sum.Failed), len(sum.Failed)+len(sum.Installed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&gitURL, "git", "", "git repository URL")
	cmd.Flags().StringVar(&dir, "dir", "", "local directory containing plugin sources")
	cmd.Flags().StringVar(&timeout, "timeout", "15m", "build timeout per plugin")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show build output")
	cmd.MarkFlagsMutuallyExclusive("git", "dir")
	return cmd
}

func printSummary(w io.Writer, sum installer.Summary) {
	for _, r := range sum.Installed {
		fmt.Fprintf(w, "  ✓ %s %s\n", r.Name, r.Version)
	}
	for _, r := range sum.Failed {
		fmt.Fprintf(w, "  ✗ %s: %v\n", r.Name, r.Err)
	}
	fmt.Fprintf(w, "%d installed, %d failed\n", len(sum.Installed), len(sum.Failed))
}
