// Package parser implements a grammar-driven recursive-descent parser for
// .crn source text, producing an ast.File. Grounded on the token-dispatch
// and block-desugaring structure of
// original_source/carina-core/src/parser/mod.rs, re-expressed over a
// filtered lexer.Token stream instead of a PEG combinator library.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/carina-lang/carina/internal/ast"
	"github.com/carina-lang/carina/internal/lexer"
	"github.com/carina-lang/carina/internal/value"
)

// Error is a recoverable parse failure: it carries a span and is collected
// rather than immediately aborting, up to one per top-level construct,
// matching spec.md §4.2's "recoverable up to one-per-construct" rule. The
// CLI promotes the first one to a fatal diagnostic.
type Error struct {
	Message string
	Span    value.Span
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Span.String(), e.Message) }

// Parser consumes a filtered (comment/newline-free) token stream and
// builds an ast.File.
type Parser struct {
	file   string
	tokens []lexer.Token
	pos    int
	errs   []*Error
}

// Parse lexes and parses one .crn source file. It returns the best-effort
// AST together with any recoverable errors; callers (the CLI) treat a
// non-empty error slice as fatal, promoting errs[0].
func Parse(file, src string) (*ast.File, []*Error) {
	lx := lexer.New(file, src)
	tokens, lexErr := lx.Tokenize()
	if lexErr != nil {
		le := lexErr.(*lexer.Error)
		return nil, []*Error{{Message: le.Message, Span: le.Span}}
	}

	filtered := make([]lexer.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind == lexer.Comment || t.Kind == lexer.Newline {
			continue
		}
		filtered = append(filtered, t)
	}

	p := &Parser{file: file, tokens: filtered}
	f := &ast.File{Path: file}

	for p.cur().Kind != lexer.EOF {
		errsBefore := len(p.errs)
		stmt := p.parseStatement()
		if stmt != nil {
			f.Statements = append(f.Statements, stmt)
		}
		if len(p.errs) > errsBefore && !p.recover() {
			break
		}
	}

	return f, p.errs
}

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(kind lexer.TokenKind) lexer.Token {
	t := p.cur()
	if t.Kind != kind {
		p.fail(fmt.Sprintf("expected %s, got %s %q", kind, t.Kind, t.Text), t.Span)
		return t
	}
	return p.advance()
}

func (p *Parser) fail(msg string, span value.Span) {
	p.errs = append(p.errs, &Error{Message: msg, Span: span})
}

// recover skips tokens up to and including the next closing brace that
// brings the brace depth back to zero, so a single bad construct does not
// abort parsing of the rest of the file.
func (p *Parser) recover() bool {
	depth := 0
	for p.cur().Kind != lexer.EOF {
		switch p.cur().Kind {
		case lexer.LBrace:
			depth++
		case lexer.RBrace:
			depth--
			if depth <= 0 {
				p.advance()
				return true
			}
		}
		p.advance()
	}
	return false
}

func (p *Parser) parseStatement() ast.Statement {
	tok := p.cur()

	if tok.Kind == lexer.Ident {
		switch tok.Text {
		case "import":
			return p.parseImport()
		case "backend":
			return p.parseBackend()
		case "provider":
			return p.parseProvider()
		case "input":
			return p.parseInputBlock()
		case "output":
			return p.parseOutputBlock()
		case "let":
			return p.parseLet()
		}
		// bare identifier followed by '{' with no keyword match: a
		// top-level module invocation not bound to a name.
		if p.peekAt(1).Kind == lexer.LBrace {
			return p.parseModuleCall(tok)
		}
		p.fail(fmt.Sprintf("unexpected identifier %q at top level", tok.Text), tok.Span)
		p.advance()
		return nil
	}

	if tok.Kind == lexer.DottedIdent {
		return p.parseResourceLiteral(tok)
	}

	p.fail(fmt.Sprintf("unexpected token %s %q at top level", tok.Kind, tok.Text), tok.Span)
	p.advance()
	return nil
}

func (p *Parser) parseImport() ast.Statement {
	start := p.advance() // 'import'
	pathTok := p.expect(lexer.String)
	p.expectKeyword("as")
	aliasTok := p.expect(lexer.Ident)
	return &ast.Import{Path: pathTok.Value, Alias: aliasTok.Text, SrcSpan: spanFrom(start, aliasTok)}
}

func (p *Parser) expectKeyword(kw string) lexer.Token {
	t := p.cur()
	if t.Kind != lexer.Ident || t.Text != kw {
		p.fail(fmt.Sprintf("expected keyword %q, got %q", kw, t.Text), t.Span)
		return t
	}
	return p.advance()
}

func (p *Parser) parseBackend() ast.Statement {
	start := p.advance() // 'backend'
	kindTok := p.expect(lexer.Ident)
	lbrace := p.expect(lexer.LBrace)
	attrs := p.parseAttrBody(lexer.RBrace)
	end := p.expect(lexer.RBrace)
	_ = lbrace
	return &ast.Backend{Kind: kindTok.Text, Attrs: attrs, SrcSpan: spanFrom(start, end)}
}

func (p *Parser) parseProvider() ast.Statement {
	start := p.advance() // 'provider'
	nameTok := p.expect(lexer.Ident)
	p.expect(lexer.LBrace)
	attrs := p.parseAttrBody(lexer.RBrace)
	end := p.expect(lexer.RBrace)
	return &ast.Provider{Name: nameTok.Text, Attrs: attrs, SrcSpan: spanFrom(start, end)}
}

func (p *Parser) parseInputBlock() ast.Statement {
	start := p.advance() // 'input'
	p.expect(lexer.LBrace)
	var params []ast.InputParam
	for p.cur().Kind != lexer.RBrace && p.cur().Kind != lexer.EOF {
		nameTok := p.expect(lexer.Ident)
		p.expect(lexer.Colon)
		typ := p.parseTypeExpr()
		var def ast.Expr
		if p.cur().Kind == lexer.Equals {
			p.advance()
			def = p.parseExpr()
		}
		params = append(params, ast.InputParam{Name: nameTok.Text, Type: typ, Default: def, SrcSpan: nameTok.Span})
		if p.cur().Kind == lexer.Comma {
			p.advance()
		}
	}
	end := p.expect(lexer.RBrace)
	return &ast.InputBlock{Params: params, SrcSpan: spanFrom(start, end)}
}

func (p *Parser) parseOutputBlock() ast.Statement {
	start := p.advance() // 'output'
	p.expect(lexer.LBrace)
	var params []ast.OutputParam
	for p.cur().Kind != lexer.RBrace && p.cur().Kind != lexer.EOF {
		nameTok := p.expect(lexer.Ident)
		p.expect(lexer.Colon)
		typ := p.parseTypeExpr()
		p.expect(lexer.Equals)
		val := p.parseExpr()
		params = append(params, ast.OutputParam{Name: nameTok.Text, Type: typ, Value: val, SrcSpan: nameTok.Span})
		if p.cur().Kind == lexer.Comma {
			p.advance()
		}
	}
	end := p.expect(lexer.RBrace)
	return &ast.OutputBlock{Params: params, SrcSpan: spanFrom(start, end)}
}

func (p *Parser) parseLet() ast.Statement {
	start := p.advance() // 'let'
	nameTok := p.expect(lexer.Ident)
	p.expect(lexer.Equals)

	rhs := p.cur()
	var bindable ast.Bindable
	switch rhs.Kind {
	case lexer.DottedIdent:
		bindable = p.parseResourceLiteral(rhs).(ast.Bindable)
	case lexer.Ident:
		bindable = p.parseModuleCall(rhs).(ast.Bindable)
	default:
		p.fail(fmt.Sprintf("expected a resource literal or module call after 'let %s =', got %s", nameTok.Text, rhs.Kind), rhs.Span)
		p.advance()
		return nil
	}
	return &ast.Let{Name: nameTok.Text, Value: bindable, SrcSpan: spanFrom(start, p.tokens[p.pos-1])}
}

func (p *Parser) parseResourceLiteral(typeTok lexer.Token) ast.Statement {
	p.advance() // consume the DottedIdent
	p.expect(lexer.LBrace)
	attrs := p.parseAttrBody(lexer.RBrace)
	end := p.expect(lexer.RBrace)
	return &ast.ResourceLiteral{QualifiedType: typeTok.Text, Attrs: attrs, SrcSpan: spanFrom(typeTok, end)}
}

func (p *Parser) parseModuleCall(aliasTok lexer.Token) ast.Statement {
	p.advance() // consume the alias ident
	p.expect(lexer.LBrace)
	attrs := p.parseAttrBody(lexer.RBrace)
	end := p.expect(lexer.RBrace)
	return &ast.ModuleCall{Alias: aliasTok.Text, Args: attrs, SrcSpan: spanFrom(aliasTok, end)}
}

// parseAttrBody parses `name = expr` and repeated sub-block entries inside
// a brace body, aggregating repeated block labels into a list-typed
// attribute in first-appearance order, per spec.md §4.2.
func (p *Parser) parseAttrBody(closing lexer.TokenKind) []ast.AttrAssign {
	var order []string
	values := map[string]ast.Expr{}
	spans := map[string]value.Span{}

	for p.cur().Kind != closing && p.cur().Kind != lexer.EOF {
		nameTok := p.expect(lexer.Ident)
		name := nameTok.Text

		switch p.cur().Kind {
		case lexer.Equals:
			p.advance()
			expr := p.parseExpr()
			if _, seen := values[name]; !seen {
				order = append(order, name)
				spans[name] = nameTok.Span
			}
			values[name] = expr
		case lexer.LBrace:
			p.advance()
			innerAttrs := p.parseAttrBody(lexer.RBrace)
			end := p.expect(lexer.RBrace)
			obj := &ast.ObjectLit{Attrs: innerAttrs, SrcSpan: spanFrom(nameTok, end)}
			if existing, ok := values[name].(*ast.ListLit); ok {
				existing.Items = append(existing.Items, obj)
			} else {
				if _, seen := values[name]; !seen {
					order = append(order, name)
					spans[name] = nameTok.Span
				}
				values[name] = &ast.ListLit{Items: []ast.Expr{obj}, SrcSpan: obj.SrcSpan}
			}
		default:
			p.fail(fmt.Sprintf("expected '=' or '{' after attribute name %q, got %s", name, p.cur().Kind), p.cur().Span)
			p.advance()
		}

		if p.cur().Kind == lexer.Comma {
			p.advance()
		}
	}

	result := make([]ast.AttrAssign, 0, len(order))
	for _, name := range order {
		result = append(result, ast.AttrAssign{Name: name, Value: values[name], SrcSpan: spans[name]})
	}
	return result
}

func (p *Parser) parseExpr() ast.Expr {
	tok := p.cur()
	switch tok.Kind {
	case lexer.String:
		p.advance()
		return &ast.StringLit{Value: tok.Value, SrcSpan: tok.Span}
	case lexer.Int:
		p.advance()
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			p.fail(fmt.Sprintf("invalid integer literal %q", tok.Text), tok.Span)
		}
		return &ast.IntLit{Value: n, SrcSpan: tok.Span}
	case lexer.True:
		p.advance()
		return &ast.BoolLit{Value: true, SrcSpan: tok.Span}
	case lexer.False:
		p.advance()
		return &ast.BoolLit{Value: false, SrcSpan: tok.Span}
	case lexer.LBracket:
		return p.parseListLit()
	case lexer.LBrace:
		p.advance()
		attrs := p.parseAttrBody(lexer.RBrace)
		end := p.expect(lexer.RBrace)
		return &ast.ObjectLit{Attrs: attrs, SrcSpan: spanFrom(tok, end)}
	case lexer.DottedIdent:
		p.advance()
		return &ast.DottedIdent{Parts: strings.Split(tok.Text, "."), SrcSpan: tok.Span}
	case lexer.Ident:
		p.advance()
		return &ast.DottedIdent{Parts: []string{tok.Text}, SrcSpan: tok.Span}
	default:
		p.fail(fmt.Sprintf("unexpected token %s %q in expression position", tok.Kind, tok.Text), tok.Span)
		p.advance()
		return &ast.StringLit{Value: "", SrcSpan: tok.Span}
	}
}

func (p *Parser) parseListLit() ast.Expr {
	start := p.advance() // '['
	var items []ast.Expr
	for p.cur().Kind != lexer.RBracket && p.cur().Kind != lexer.EOF {
		items = append(items, p.parseExpr())
		if p.cur().Kind == lexer.Comma {
			p.advance()
		}
	}
	end := p.expect(lexer.RBracket)
	return &ast.ListLit{Items: items, SrcSpan: spanFrom(start, end)}
}

// parseTypeExpr parses input/output type annotations: bare names (String,
// Int, Bool, CidrBlock) and parenthesized forms (Enum(a, b), List(T),
// Map(T), Object(field: T, ...), Ref(resource.type), Custom(name)).
func (p *Parser) parseTypeExpr() ast.TypeExpr {
	nameTok := p.expect(lexer.Ident)
	te := ast.TypeExpr{Name: nameTok.Text, SrcSpan: nameTok.Span}

	if p.cur().Kind != lexer.LParen {
		return te
	}
	p.advance() // '('

	for p.cur().Kind != lexer.RParen && p.cur().Kind != lexer.EOF {
		switch te.Name {
		case "Enum":
			vtok := p.advance()
			te.Values = append(te.Values, vtok.Text)
		case "Ref":
			rtok := p.advance()
			te.RefType = rtok.Text
		case "Object":
			fieldTok := p.expect(lexer.Ident)
			p.expect(lexer.Colon)
			fieldType := p.parseTypeExpr()
			te.Fields = append(te.Fields, fieldTok.Text)
			te.Args = append(te.Args, fieldType)
		default: // List, Map, Custom
			te.Args = append(te.Args, p.parseTypeExpr())
		}
		if p.cur().Kind == lexer.Comma {
			p.advance()
		}
	}
	p.expect(lexer.RParen)
	return te
}

func spanFrom(start, end lexer.Token) value.Span {
	return value.Span{
		File:   start.Span.File,
		Line:   start.Span.Line,
		Column: start.Span.Column,
		Offset: start.Span.Offset,
		Length: end.Span.Offset + end.Span.Length - start.Span.Offset,
	}
}
