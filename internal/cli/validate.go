package cli

import (
	"fmt"

	"github.com/carina-lang/carina/internal/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate .crn configuration",
	Long:  `Parses, resolves and schema-validates a .crn configuration without touching state or providers.`,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir, entryFile, err := entryPointFor(args)
	if err != nil {
		return err
	}

	fmt.Print("Parsing and resolving configuration... ")
	reg := buildProviderRegistry(nil)
	result, err := loadAndResolve(dir, entryFile, reg)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	schemas := reg.Schemas()
	fmt.Print("Validating resource schemas... ")
	var allDiags []string
	for _, res := range result.Resources {
		sch, ok := schemas[res.QualifiedType]
		if !ok {
			continue
		}
		for _, d := range schema.Validate(res.Attrs, nil, sch) {
			allDiags = append(allDiags, fmt.Sprintf("%s: %s", res.Key(), d.Error()))
		}
	}
	if len(allDiags) > 0 {
		fmt.Println("FAILED")
		for _, d := range allDiags {
			fmt.Println("  " + d)
		}
		return fmt.Errorf("%d validation error(s)", len(allDiags))
	}
	fmt.Println("OK")

	fmt.Printf("\nConfiguration is valid: %d resource(s).\n", len(result.Resources))
	return nil
}
