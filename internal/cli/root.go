package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagAutoApprove bool
	flagOut         string
	flagCheck       bool
	flagRecursive   bool
	flagDiff        bool
)

var rootCmd = &cobra.Command{
	Use:   "carina",
	Short: "Infrastructure as code with a typed, referenceable DSL",
	Long: `Carina evaluates .crn configuration into a resource graph, diffs it
against last-applied state, and reconciles the difference through a
pluggable provider interface.

It provides:
  • A typed DSL with module composition and cross-resource references
  • A plan/apply workflow with immutable-attribute replace detection
  • Git-friendly JSON state with optimistic-concurrency locking
  • A canonical formatter for .crn source files`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagAutoApprove, "auto-approve", false, "skip interactive approval before apply/destroy")
	rootCmd.PersistentFlags().StringVarP(&flagOut, "out", "o", "", "also write the plan as JSON to this file")
	rootCmd.PersistentFlags().BoolVar(&flagCheck, "check", false, "check only, exit non-zero without writing changes")
	rootCmd.PersistentFlags().BoolVarP(&flagRecursive, "r", "r", false, "recurse into subdirectories (fmt)")
	rootCmd.PersistentFlags().BoolVar(&flagDiff, "diff", false, "with --check, print the original and formatted text of each unformatted file (fmt)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(moduleCmd)
}
