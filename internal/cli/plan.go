package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/carina-lang/carina/internal/plan"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [path]",
	Short: "Compute the execution plan",
	Long: `Resolves the configuration, diffs it against the last-applied state,
and prints what carina apply would do:
  • Resources to create
  • Resources to update in place
  • Resources to replace (destroy then recreate)
  • Resources to delete`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	dir, entryFile, err := entryPointFor(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	providerReg := buildProviderRegistry(nil)
	fmt.Print("Loading configuration... ")
	result, err := loadAndResolve(dir, entryFile, providerReg)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	providerReg = buildProviderRegistry(result.Providers)

	backendCfg, err := backendFromAST(result.Backend, dir)
	if err != nil {
		return err
	}
	_, doc, err := openState(ctx, backendCfg)
	if err != nil {
		return err
	}

	fmt.Print("Calculating plan... ")
	p, err := plan.Build(ctx, result.Resources, doc, providerReg, plan.Source{Root: true})
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("plan generation failed: %w", err)
	}
	fmt.Println("OK")

	renderPlan(p)

	if flagOut != "" {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize plan: %w", err)
		}
		if err := os.WriteFile(flagOut, data, 0644); err != nil {
			return fmt.Errorf("failed to write plan to %s: %w", flagOut, err)
		}
		fmt.Printf("\nPlan written to %s\n", flagOut)
	}

	if flagCheck && len(p.Changes) > 0 {
		return fmt.Errorf("configuration is not up to date: %s", p.Summary)
	}
	return nil
}

// renderPlan prints the change list the way the teacher's plan/apply
// commands do: a colored +/-/~ marker per resource, then the summary line.
// Changes are grouped by module instance (root first) per SPEC_FULL.md §3's
// ModularPlan display grouping -- grouping is cosmetic only, it does not
// reorder the changes within a group.
func renderPlan(p *plan.Plan) {
	if len(p.Changes) == 0 {
		fmt.Println("\nNo changes. Infrastructure is up to date.")
		return
	}

	fmt.Println("\ncarina will perform the following actions:")
	for _, group := range plan.GroupByModule(p.Changes) {
		fmt.Printf("\n%s:\n", group.Source)
		for _, c := range group.Changes {
			symbol, color := symbolFor(c.Effect)
			fmt.Printf("\n%s  %s %s%s\n", color, symbol, c.Key.String(), reset)
			if c.Effect == plan.Replace && len(c.ReplaceReason) > 0 {
				fmt.Printf("%s      replacement forced by immutable attribute(s): %v%s\n", color, c.ReplaceReason, reset)
			}
		}
	}

	fmt.Printf("\nPlan: %s\n", p.Summary)
}

const reset = "\033[0m"

func symbolFor(e plan.Effect) (symbol, color string) {
	switch e {
	case plan.Create:
		return "+", "\033[32m"
	case plan.Delete:
		return "-", "\033[31m"
	case plan.Replace:
		return "-/+", "\033[33m"
	case plan.Update:
		return "~", "\033[33m"
	case plan.Read:
		return "<", "\033[36m"
	default:
		return " ", reset
	}
}
