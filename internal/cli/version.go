package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/internxt/drivectl/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "drivectl %s (built %s) %s %s/%s\n",
				version.Version, version.BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
