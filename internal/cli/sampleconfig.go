package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// SampleConfig captures the options for the config command.
type SampleConfig struct {
	OutputPath string
	Force      bool

	Stdout io.Writer
}

const defaultSampleConfigPath = "openapi2mcp.yaml"

var sampleConfigRunner = runSampleConfig

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write a sample openapi2mcp configuration file",
		Long:  "Write a commented openapi2mcp configuration file that documents the available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			return sampleConfigRunner(cmd.Context(), &SampleConfig{
				OutputPath: out,
				Force:      force,
				Stdout:     cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().String("out", defaultSampleConfigPath, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runSampleConfig(ctx context.Context, cfg *SampleConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultSampleConfigPath
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("config: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force && st.Mode().IsRegular() {
		return newUsageError(fmt.Sprintf("config: %q already exists (use --force to overwrite)", absPath))
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("config: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("config: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("config: cannot place file at %s: %v", absPath, err))
	}
	fmt.Fprintf(cfg.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML documents every key the commands read. Keys are matched
// without regard to case, dashes or underscores.
const sampleConfigYAML = `# openapi2mcp configuration (YAML)
# All fields are optional. Environment variables (OPENAPI2MCP_*) are read
# first, this file overrides them and command-line flags override both.

# Path or URL to the OpenAPI/Swagger document (from-openapi).
# spec: ./openapi.yaml

# Project name. from-openapi derives it from the spec title when omitted.
# name: petstore-server

# Project description and author.
# description: MCP server for the Petstore API
# author: Developer

# Directory the project directory is created in.
# outputDir: .

# Client generation engine (basic|enhanced). Defaults to enhanced.
# generatorEngine: enhanced

# Generate an asyncio client (false selects the synchronous client).
# asyncClient: true

# Include authentication tools. Defaults to true when the spec declares
# security schemes.
# includeAuth: true

# YAML file with openapi-generator overrides (package_name, client_type,
# additional_properties, ...).
# clientConfig: ./client-config.yaml

# Only validate the spec, generate nothing.
# validateOnly: false

# Write usage examples.
# includeExamples: false

# Maximum number of tools. Defaults to the operation count, at least 10.
# maxTools: 50

# Only include operations with these tags (comma-separated or list).
# includeTags: [pets]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# init only: Python version, test framework, Docker and CI.
# pythonVersion: "3.11"
# testFramework: pytest
# noDocker: false
# noCi: false

# Preview planned outputs without writing files.
# dryRun: false

# Overwrite a non-empty project directory.
# force: false

# Enable verbose logging.
# verbose: false
`
