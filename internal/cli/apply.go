package cli

import (
	"fmt"

	"github.com/carina-lang/carina/internal/interpreter"
	"github.com/carina-lang/carina/internal/plan"
	"github.com/spf13/cobra"
)

var applyContinueOnError bool

var applyCmd = &cobra.Command{
	Use:   "apply [path]",
	Short: "Apply a configuration",
	Long:  `Builds or changes infrastructure to match the .crn configuration, persisting the result to state.`,
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyContinueOnError, "continue-on-error", false, "keep applying independent changes after one fails")
}

func runApply(cmd *cobra.Command, args []string) error {
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
	backend, doc, err := openState(ctx, backendCfg)
	if err != nil {
		return err
	}

	handle, err := backend.Lock(ctx, lockTimeout, lockWho())
	if err != nil {
		return fmt.Errorf("failed to acquire state lock: %w", err)
	}
	defer backend.Unlock(ctx, handle)

	fmt.Print("Calculating plan... ")
	p, err := plan.Build(ctx, result.Resources, doc, providerReg, plan.Source{Root: true})
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("plan generation failed: %w", err)
	}
	fmt.Println("OK")

	if len(p.Changes) == 0 {
		fmt.Println("\nNo changes. Infrastructure is up to date.")
		return nil
	}

	fmt.Println("\ncarina will perform the following actions:")
	renderPlan(p)

	if !flagAutoApprove {
		if !confirm("\nDo you want to perform these actions?") {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	fmt.Printf("\nApplying %d change(s)...\n", len(p.Changes))
	it := &interpreter.Interpreter{Provider: providerReg, ContinueOnError: applyContinueOnError}
	result2, applyErr := it.Apply(ctx, p, doc)

	if saveErr := backend.Save(ctx, result2.State); saveErr != nil {
		return fmt.Errorf("apply ran but failed to persist state: %w", saveErr)
	}

	if applyErr != nil {
		return fmt.Errorf("apply failed: %w", applyErr)
	}

	fmt.Printf("\nApply complete! %s\n", p.Summary)
	return nil
}
