package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dosanma1/forge-booster/internal/config"
	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/internal/ui"
)

// DefaultHostVersion is offered when creating a manifest.
const DefaultHostVersion = "7.0.4"

type initOptions struct {
	name        string
	hostVersion string
	yes         bool
	force       bool
}

var initOpts initOptions

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a booster.yaml manifest",
	Long: `Create a booster.yaml manifest with a debug and a release application
variant. Missing values are asked for interactively unless --yes is given.

Examples:
  booster init                               # Interactive
  booster init --name app --host-version 4.1.3 --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initOpts.name, "name", "", "Project name (default: directory name)")
	initCmd.Flags().StringVar(&initOpts.hostVersion, "host-version", "", "Android Gradle plugin version of the host build (default: "+DefaultHostVersion+")")
	initCmd.Flags().BoolVarP(&initOpts.yes, "yes", "y", false, "Accept defaults without prompting")
	initCmd.Flags().BoolVarP(&initOpts.force, "force", "f", false, "Overwrite an existing manifest")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	var prompter *ui.Prompter
	if !initOpts.yes && isatty.IsTerminal(os.Stdin.Fd()) {
		prompter = &ui.Prompter{}
	}
	path, err := initManifest(cmd.OutOrStdout(), dir, initOpts, prompter)
	if errors.Is(err, ui.ErrCancelled) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s\n", ui.IconSuccess, path)
	return nil
}

// initManifest writes a default manifest into dir. A nil prompter accepts
// every default.
func initManifest(out io.Writer, dir string, o initOptions, prompter *ui.Prompter) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, config.FileName)

	if _, err := os.Stat(path); err == nil && !o.force {
		if prompter == nil {
			return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		ok, err := prompter.AskConfirm(fmt.Sprintf("%s already exists. Overwrite", config.FileName), false)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ui.ErrCancelled
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	name := o.name
	if name == "" {
		name = filepath.Base(dir)
		if prompter != nil {
			if name, err = prompter.AskText("Project name", name, validateName); err != nil {
				return "", err
			}
		}
	}
	if err := validateName(name); err != nil {
		return "", err
	}

	version := o.hostVersion
	if version == "" {
		version = DefaultHostVersion
		if prompter != nil {
			if version, err = prompter.AskText("Host plugin version", version, validateHostVersion); err != nil {
				return "", err
			}
		}
	}
	if err := validateHostVersion(version); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := config.NewDefaultConfig(name, version).Save(path); err != nil {
		return "", err
	}
	fmt.Fprintf(out, "%s Project %s on host %s\n", ui.IconPackage, name, version)
	return path, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("project name is required")
	}
	return nil
}

func validateHostVersion(version string) error {
	_, err := host.ForVersion(version)
	return err
}
