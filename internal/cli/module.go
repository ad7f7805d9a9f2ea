package cli

import (
	"fmt"
	"strings"

	"github.com/carina-lang/carina/internal/graph"
	"github.com/spf13/cobra"
)

var moduleCmd = &cobra.Command{
	Use:   "module",
	Short: "Inspect module structure",
}

var moduleInfoCmd = &cobra.Command{
	Use:   "info [path]",
	Short: "Print the resolved resource tree",
	Long: `Resolves the configuration (expanding every module call) and prints
each resource and its dependencies, grouped by module instance, followed
by the resources nothing depends on.`,
	RunE: runModuleInfo,
}

func init() {
	moduleCmd.AddCommand(moduleInfoCmd)
}

func runModuleInfo(cmd *cobra.Command, args []string) error {
	dir, entryFile, err := entryPointFor(args)
	if err != nil {
		return err
	}

	reg := buildProviderRegistry(nil)
	result, err := loadAndResolve(dir, entryFile, reg)
	if err != nil {
		return err
	}

	g := graph.FromResources(result.Resources)

	byNamespace := map[string][]string{}
	for _, r := range result.Resources {
		ns := strings.Join(r.NamespacePath, "/")
		if ns == "" {
			ns = "(root)"
		}
		key := r.Key()
		deps := g.DependenciesOf(key)
		depStrs := make([]string, len(deps))
		for i, d := range deps {
			depStrs[i] = d.String()
		}
		line := fmt.Sprintf("  %s.%s", r.QualifiedType, r.LocalName)
		if len(depStrs) > 0 {
			line += " -> depends on: " + strings.Join(depStrs, ", ")
		}
		byNamespace[ns] = append(byNamespace[ns], line)
	}

	roots := g.RootResources()
	rootStrs := make([]string, len(roots))
	for i, r := range roots {
		rootStrs[i] = r.String()
	}

	fmt.Printf("%d resource(s) across %d module instance(s):\n\n", len(result.Resources), len(byNamespace))
	for ns, lines := range byNamespace {
		fmt.Printf("%s:\n", ns)
		for _, l := range lines {
			fmt.Println(l)
		}
		fmt.Println()
	}

	fmt.Printf("Root resources (nothing depends on them): %s\n", strings.Join(rootStrs, ", "))
	return nil
}
