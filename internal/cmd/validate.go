package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dosanma1/forge-booster/internal/config"
	"github.com/dosanma1/forge-booster/internal/host"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate booster.yaml configuration",
	Long: `Validates the booster.yaml manifest against the JSON Schema and then
checks it semantically: variant names are unique, SDK levels are consistent
and the host version is supported.

Without a path the manifest is looked up from the current directory upwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		path string
		err  error
	)
	if len(args) == 1 {
		path = args[0]
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			path = filepath.Join(path, config.FileName)
		}
	} else if path, err = findManifest("."); err != nil {
		return err
	}
	return validateManifest(cmd.OutOrStdout(), path)
}

func validateManifest(out io.Writer, path string) error {
	fmt.Fprintf(out, "🔍 Validating %s...\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	violations, err := config.ValidateSchema(data)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		// Print validation errors
		fmt.Fprintln(out, "\n❌ Validation failed with the following errors:")
		fmt.Fprintln(out)
		for i, v := range violations {
			fmt.Fprintf(out, "%d. %s\n", i+1, v)
		}
		return fmt.Errorf("validation failed with %d errors", len(violations))
	}

	// Semantic validation beyond the schema
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrSchema) {
			return err
		}
		fmt.Fprintf(out, "\n❌ %v\n", err)
		return fmt.Errorf("validation failed")
	}
	if _, err := host.ForVersion(cfg.Project.HostVersion); err != nil {
		fmt.Fprintf(out, "\n❌ %v\n", err)
		return fmt.Errorf("validation failed")
	}

	fmt.Fprintf(out, "✅ %s is valid! (%d variants, host %s)\n", config.FileName, len(cfg.Variants), cfg.Project.HostVersion)
	return nil
}
