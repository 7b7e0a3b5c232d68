package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/mark3labs/openapi2mcp/internal/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build and version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			info.Fprint(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}
