package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/openapi2mcp/internal/validate"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an existing MCP server project",
		Long: "Validate the structure of a generated MCP server project: required files, " +
			"pyproject metadata, dependencies, source modules, tests and documentation.",
		Example: "  openapi2mcp validate --project-dir ./my-mcp-server",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("project-dir")
			if err != nil {
				return err
			}
			dir = strings.TrimSpace(dir)
			if dir == "" {
				dir = "."
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Validating MCP project: %s\n", dir)
			res := validate.Project(dir)
			printValidation(out, "Project", res)
			if !res.IsValid {
				return fmt.Errorf("validate: %d errors in %s", len(res.Errors), dir)
			}
			return nil
		},
	}
	cmd.Flags().StringP("project-dir", "p", ".", "Project directory to validate")
	return cmd
}
