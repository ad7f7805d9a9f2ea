package formatter

import (
	"github.com/carina-lang/carina/internal/ast"
	"github.com/carina-lang/carina/internal/parser"
)

// Format parses src, reattaches its comment trivia, and returns the
// canonical rendering. The returned slice of parser.Error is non-nil (and
// out is empty) when src does not parse.
func Format(file, src string, cfg Config) (string, []*parser.Error) {
	astFile, errs := parser.Parse(file, src)
	if len(errs) > 0 {
		return "", errs
	}
	return FormatFile(astFile, src, cfg), nil
}

// FormatFile renders an already-parsed file. src must be the exact text
// astFile was parsed from, since trivia is recovered by re-lexing it.
func FormatFile(astFile *ast.File, src string, cfg Config) string {
	t, err := collectTrivia(astFile.Path, src)
	if err != nil {
		// Trivia recovery only fails if src itself fails to lex, which
		// can't happen for text that already parsed successfully.
		t = &trivia{commentsBefore: map[int][]string{}, blankBefore: map[int]bool{}}
	}
	return Print(astFile, cfg, t)
}

// NeedsFormat reports whether formatting src would change it.
func NeedsFormat(file, src string, cfg Config) (bool, []*parser.Error) {
	formatted, errs := Format(file, src, cfg)
	if len(errs) > 0 {
		return false, errs
	}
	return formatted != src, nil
}
