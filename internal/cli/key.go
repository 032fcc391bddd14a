package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/internxt/drivectl/internal/ratelimit"
)

// newKeyCmd creates the 'key' command.
func newKeyCmd() *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "key <url-or-path>",
		Short: "Print the rate-limit endpoint key for a URL",
		Long: `Print the key drivectl tracks quota under for a URL or path.

Identifier segments (UUIDs, long hex ids, numbers) become ":id" and the query
string is dropped, so every call to the same route shares one key.

Examples:
  drivectl key https://gateway.internxt.com/drive/files/12345/meta
  drivectl key --base https://gateway.internxt.com/drive /folders/content/<uuid>/files`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ratelimit.EndpointKey(ratelimit.Endpoint{BaseURL: base, URL: args[0]})
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "Base URL joined in front of the argument")
	return cmd
}
