package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove plugin libraries that no longer load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rt, err := openRuntime(runtimeOptions{out: out, store: true, discover: true})
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := rt.manager.Clean(rt.dir)
			if err != nil {
				return err
			}
			for _, r := range report.Removed {
				fmt.Fprintf(out, "Removed %s: %v\n", r.Path, r.Err)
				if _, err := rt.installs.DeleteByPath(r.Path, "removed by clean"); err != nil {
					log.Warn().Err(err).Str("path", r.Path).Msg("forgetting install record")
				}
			}
			fmt.Fprintf(out, "%d removed, %d kept\n", len(report.Removed), len(report.Kept))
			return nil
		},
	}
}
