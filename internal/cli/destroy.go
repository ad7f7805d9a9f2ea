package cli

import (
	"fmt"

	"github.com/carina-lang/carina/internal/graph"
	"github.com/carina-lang/carina/internal/interpreter"
	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy [path]",
	Short: "Destroy all managed infrastructure",
	Long: `Destroys every resource tracked in state, ignoring the current .crn
configuration entirely -- the inverse of apply.

Ordering: each State carries the dependency edges apply persisted for it,
so destroy reverse-topo-sorts on those real edges without re-resolving the
original configuration to recover a graph it no longer needs.`,
	RunE: runDestroy,
}

func runDestroy(cmd *cobra.Command, args []string) error {
	dir, _, err := entryPointFor(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	providerReg := buildProviderRegistry(nil)

	backendCfg, err := backendFromAST(nil, dir)
	if err != nil {
		return err
	}
	backend, doc, err := openState(ctx, backendCfg)
	if err != nil {
		return err
	}

	if len(doc.Resources) == 0 {
		fmt.Println("No resources in state. Nothing to destroy.")
		return nil
	}

	handle, err := backend.Lock(ctx, lockTimeout, lockWho())
	if err != nil {
		return fmt.Errorf("failed to acquire state lock: %w", err)
	}
	defer backend.Unlock(ctx, handle)

	order, err := graph.FromStates(doc.Resources).ReverseTopoSort()
	if err != nil {
		return fmt.Errorf("failed to order destroy: %w", err)
	}

	fmt.Println("carina will destroy the following resources:")
	for _, key := range order {
		fmt.Printf("  - %s\n", key)
	}

	if !flagAutoApprove {
		if !confirm("\nDo you really want to destroy all of this?") {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	it := &interpreter.Interpreter{Provider: providerReg}
	result, err := interpreter.Destroy(ctx, it, order, doc)

	if saveErr := backend.Save(ctx, result.State); saveErr != nil {
		return fmt.Errorf("destroy ran but failed to persist state: %w", saveErr)
	}
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	fmt.Println("\nDestroy complete! All resources have been deleted.")
	return nil
}
