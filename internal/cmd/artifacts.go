package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dosanma1/forge-booster/internal/artifact"
	"github.com/dosanma1/forge-booster/internal/processor"
	"github.com/dosanma1/forge-booster/internal/ui"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List artifact types and processors",
	Long: `List every artifact type post-processors can ask the host for, with
the category it belongs to and whether it is backed by one file or several,
followed by the registered processors.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeArtifacts(cmd.OutOrStdout(), artifact.Default())
	},
}

func init() {
	rootCmd.AddCommand(artifactsCmd)
}

func writeArtifacts(w io.Writer, r *artifact.Registry) error {
	rows := make([][2]string, 0, r.Len())
	for _, t := range r.All() {
		rows = append(rows, [2]string{t.Name, fmt.Sprintf("%s (%s)", t.Category, t.Cardinality)})
	}
	procs := make([][2]string, 0)
	for _, name := range processor.Names() {
		procs = append(procs, [2]string{name, ""})
	}
	_, err := fmt.Fprint(w,
		ui.RenderSection(fmt.Sprintf("%s Artifact types (%d)", ui.IconPackage, r.Len()), rows),
		"\n",
		ui.RenderSection(fmt.Sprintf("%s Processors (%d)", ui.IconTool, len(procs)), procs),
	)
	return err
}
