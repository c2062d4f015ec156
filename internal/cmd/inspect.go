package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dosanma1/forge-booster/internal/adapter"
	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/internal/ui"
	"github.com/dosanma1/forge-booster/internal/variant"
)

var (
	inspectKind       string
	inspectProperties []string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <variant>",
	Short: "Show what post-processors see of a variant",
	Long: `Show a variant as the post-processors see it through the host adapter:
its metadata, lifecycle task names, the files of every artifact type and its
dependency artifacts per scope.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectKind, "kind", "android-res", "Dependency artifact kind to list")
	inspectCmd.Flags().StringArrayVarP(&inspectProperties, "property", "P", nil, "Override a project property (key=value, repeatable)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	manifest, err := findManifest(".")
	if err != nil {
		return err
	}
	s, err := openSession(manifest, args, inspectProperties, newLogger(cmd.ErrOrStderr(), verbose))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderInspect(s.adapter, s.variants[0], inspectKind, verbose))
	return nil
}

// renderInspect renders a variant. Artifact types without files are listed
// only when all is set.
func renderInspect(a *adapter.Adapter, v host.Variant, kind string, all bool) string {
	md := a.Metadata(v)
	var b strings.Builder

	b.WriteString(ui.TitleStyle.Render(fmt.Sprintf("%s %s (host %s)", ui.IconPackage, md.Name, a.HostVersion())))
	b.WriteByte('\n')
	b.WriteString(ui.RenderSection("Metadata", [][2]string{
		{"kind", md.Kind.String()},
		{"applicationId", md.ApplicationID},
		{"minSdk", strconv.Itoa(md.MinSdk)},
		{"targetSdk", strconv.Itoa(md.TargetSdk)},
		{"dynamicFeature", strconv.FormatBool(md.HasDynamicFeature)},
		{"precompileDependenciesResources", strconv.FormatBool(md.PrecompileDependenciesResourcesEnabled)},
		{"optimizedResources", strconv.FormatBool(a.OptimizedResources(v))},
	}))

	tasks := a.LifecycleTasks(v)
	var rows [][2]string
	for _, r := range variant.Roles() {
		if name, ok := tasks[r]; ok {
			rows = append(rows, [2]string{r.String(), name})
		}
	}
	b.WriteString(ui.RenderSection("Lifecycle tasks", rows))

	rows = rows[:0]
	for _, f := range a.AllArtifacts(v) {
		if len(f.Files) == 0 && !all {
			continue
		}
		rows = append(rows, [2]string{f.Type.String(), joinOrDash(f.Files)})
	}
	rows = append(rows,
		[2]string{"merged assets", derived(a.MergedAssets(v))},
		[2]string{"symbol list", derived(a.SymbolList(v))},
		[2]string{"raw resources", joinOrDash(a.RawResources(v))},
	)
	b.WriteString(ui.RenderSection("Artifacts", rows))

	rows = rows[:0]
	for _, scope := range []variant.Scope{variant.ScopeProject, variant.ScopeExternal} {
		rows = append(rows, [2]string{scope.String(), joinOrDash(a.DependencyArtifacts(v, scope, kind))})
	}
	b.WriteString(ui.RenderSection(fmt.Sprintf("Dependency artifacts (%s)", kind), rows))

	return b.String()
}

func derived(files []string, err error) string {
	if errors.Is(err, variant.ErrUnsupportedKind) {
		return ui.HelpStyle.Render("unsupported for this variant kind")
	}
	if err != nil {
		return err.Error()
	}
	return joinOrDash(files)
}

func joinOrDash(files []string) string {
	if len(files) == 0 {
		return "-"
	}
	return strings.Join(files, ", ")
}
