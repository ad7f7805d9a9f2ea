package formatter

import (
	"github.com/carina-lang/carina/internal/lexer"
)

// trivia is the comment/blank-line information the parser discards but the
// printer needs to reproduce. It is keyed by source line number (1-based)
// rather than carried inside the AST, so the printer stays decoupled from
// ast.File's shape -- a CST built by threading Comment/Newline tokens back
// into the tree, flattened to the one thing the printer actually consults:
// "what trivia precedes line N".
type trivia struct {
	// commentsBefore[line] holds every full-line comment whose source line
	// is < line and > the previous statement's last line, in order.
	commentsBefore map[int][]string

	// blankBefore[line] is true when the original source had at least one
	// blank line immediately before this comment/statement line.
	blankBefore map[int]bool

	// trailingComments holds comments that appear after the last statement,
	// with no following statement to attach to.
	trailingComments []string
	trailingBlank    bool
}

// collectTrivia re-lexes src and buckets every Comment token under the
// source line of the statement or comment that follows it, tracking blank
// runs so the printer can decide whether to preserve a blank line before a
// comment block.
func collectTrivia(file, src string) (*trivia, error) {
	toks, err := lexer.New(file, src).Tokenize()
	if err != nil {
		return nil, err
	}

	t := &trivia{commentsBefore: map[int][]string{}, blankBefore: map[int]bool{}}

	var pendingComments []string
	var pendingLines []int
	blankRun := 0
	sawContentSinceBlank := false

	flush := func(attachLine int, blank bool) {
		if len(pendingComments) == 0 {
			return
		}
		t.commentsBefore[attachLine] = append(t.commentsBefore[attachLine], pendingComments...)
		if blank {
			t.blankBefore[pendingLines[0]] = true
		}
		pendingComments = nil
		pendingLines = nil
	}

	for _, tok := range toks {
		switch tok.Kind {
		case lexer.Newline:
			blankRun++
			continue
		case lexer.Comment:
			if len(pendingComments) == 0 && blankRun > 1 && sawContentSinceBlank {
				t.blankBefore[tok.Span.Line] = true
			}
			pendingComments = append(pendingComments, tok.Value)
			pendingLines = append(pendingLines, tok.Span.Line)
			blankRun = 0
			sawContentSinceBlank = true
			continue
		case lexer.EOF:
			t.trailingComments = pendingComments
			t.trailingBlank = len(pendingComments) > 0 && blankRun > 1
			pendingComments = nil
			continue
		default:
			blank := blankRun > 1 && sawContentSinceBlank
			flush(tok.Span.Line, blank)
			if len(t.commentsBefore[tok.Span.Line]) == 0 && blank {
				t.blankBefore[tok.Span.Line] = true
			}
			blankRun = 0
			sawContentSinceBlank = true
		}
	}
	flush(1<<31 - 1, blankRun > 1 && sawContentSinceBlank)

	return t, nil
}
