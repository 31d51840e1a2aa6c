package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/citenet/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/citenet.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new citenet configuration file",
		Long: `Initialize creates a new .citenet configuration file in the current directory.

The generated file includes:
- Default crawl limits (depth, budget, citers per publication)
- Request politeness settings (delay, retries, backoff)
- Identity matching thresholds

Secrets such as the session cookie or proxy credentials are better kept in
a .env file (CITENET_COOKIE, CITENET_PROXY) than in the configuration file.

Examples:
  # Create .citenet in current directory
  citenet init

  # Create config file at a specific path
  citenet init -o myconfig.yaml

  # Force overwrite existing file
  citenet init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	// Read template from embedded filesystem
	content, err := configTemplate.ReadFile("templates/citenet.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write configuration file
	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - Seed queries and crawl limits")
	fmt.Fprintln(out, "  - Request delay and retries")
	fmt.Fprintln(out, "  - Identity matching strategies")

	return nil
}
