// Package formatter implements `carina fmt`'s canonical printer: parse the
// source into an ast.File, re-lex it to recover the comment and blank-line
// trivia the parser discards, and print a deterministic, idempotent
// rendering that preserves every comment.
//
// Grounded on original_source/carina-core/src/formatter/{config.rs,format.rs}.
package formatter

// Config controls the printer's layout decisions. The zero value is not
// useful; callers should start from DefaultConfig.
type Config struct {
	// IndentSize is the number of spaces per indentation level, used when
	// UseTabs is false.
	IndentSize int

	// UseTabs selects a single tab character per indentation level instead
	// of IndentSize spaces.
	UseTabs bool

	// BlankLinesBetweenBlocks is the number of blank lines the printer
	// inserts between top-level statements.
	BlankLinesBetweenBlocks int

	// AlignAttributes pads every `name =` in a block so the `=` signs line
	// up on the widest attribute name in that block.
	AlignAttributes bool
}

// DefaultConfig matches the original formatter's defaults.
func DefaultConfig() Config {
	return Config{IndentSize: 4, UseTabs: false, BlankLinesBetweenBlocks: 1, AlignAttributes: true}
}

// IndentString returns the text for one level of indentation.
func (c Config) IndentString() string {
	if c.UseTabs {
		return "\t"
	}
	n := c.IndentSize
	if n <= 0 {
		n = 4
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	return string(out)
}
