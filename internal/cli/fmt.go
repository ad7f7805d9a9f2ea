package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carina-lang/carina/internal/formatter"
	"github.com/spf13/cobra"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [paths...]",
	Short: "Format .crn configuration files",
	Long: `Formats .crn files to the canonical style: four-space indentation,
aligned attribute assignments within a block, one blank line between
top-level blocks, and every comment preserved in place.

Use --check to verify formatting without writing changes (non-zero exit
if any file is not formatted). Use -r to recurse into subdirectories.`,
	RunE: runFmt,
}

func runFmt(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.IsDir() {
			found, err := findCrnFiles(p, flagRecursive)
			if err != nil {
				return err
			}
			files = append(files, found...)
		} else {
			files = append(files, p)
		}
	}

	if len(files) == 0 {
		fmt.Println("No .crn files found.")
		return nil
	}

	cfg := formatter.DefaultConfig()
	unformatted := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		formatted, errs := formatter.Format(file, string(data), cfg)
		if len(errs) > 0 {
			msg := fmt.Sprintf("%s: %d parse error(s):", file, len(errs))
			for _, e := range errs {
				msg += "\n  " + e.Error()
			}
			return errors.New(msg)
		}

		if string(data) != formatted {
			unformatted++
			if flagCheck {
				fmt.Printf("%s: not formatted\n", file)
				if flagDiff {
					fmt.Println(string(data))
					fmt.Println("---")
					fmt.Println(formatted)
				}
				continue
			}
			if err := os.WriteFile(file, []byte(formatted), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", file, err)
			}
			fmt.Printf("%s: formatted\n", file)
		}
	}

	if flagCheck && unformatted > 0 {
		return fmt.Errorf("%d file(s) not formatted", unformatted)
	}
	if unformatted == 0 {
		fmt.Printf("All %d file(s) are properly formatted.\n", len(files))
	} else if !flagCheck {
		fmt.Printf("Formatted %d file(s).\n", unformatted)
	}
	return nil
}

func findCrnFiles(dir string, recursive bool) ([]string, error) {
	var files []string
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".crn") {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
		return files, nil
	}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".crn") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
