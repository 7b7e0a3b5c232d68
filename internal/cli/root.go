package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the openapi2mcp CLI until it finishes or ctx is cancelled.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openapi2mcp",
		Short: "Generate Python MCP server projects from OpenAPI specs",
		Long: "openapi2mcp scaffolds Python MCP server projects, either from scratch or from " +
			"OpenAPI/Swagger documents, with tests, configuration and Docker assets.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	cmd.SetFlagErrorFunc(flagError)

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	for _, sub := range []*cobra.Command{
		newInitCmd(),
		newFromOpenAPICmd(),
		newAnalyzeCmd(),
		newValidateCmd(),
		newServeCmd(),
		newConfigCmd(),
		newVersionCmd(),
	} {
		sub.SetFlagErrorFunc(flagError)
		cmd.AddCommand(sub)
	}

	return cmd
}

func flagError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}
