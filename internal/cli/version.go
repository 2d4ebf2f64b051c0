package cli

import (
	"encoding/json"
	"fmt"

	"github.com/soyeahso/ragrelay/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var short, asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.Current())
			case short:
				fmt.Fprintln(out, version.Resolved())
			default:
				fmt.Fprintln(out, version.Info())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version, commit, build date and platform as JSON")
	cmd.MarkFlagsMutuallyExclusive("short", "json")
	return cmd
}
