package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/lla/internal/version"
	"github.com/soyeahso/lla/pkg/wire"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of lla",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			fmt.Fprintln(cmd.OutOrStdout(), version.ProtocolLine(wire.SupportedProtocolVersions))
		},
	}
}
