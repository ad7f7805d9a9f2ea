package formatter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/carina-lang/carina/internal/ast"
)

// printer accumulates the formatted output for one file.
type printer struct {
	cfg    Config
	out    strings.Builder
	indent int
	trivia *trivia
}

func (p *printer) writeIndent() {
	p.out.WriteString(strings.Repeat(p.cfg.IndentString(), p.indent))
}

func (p *printer) writeLine(s string) {
	p.writeIndent()
	p.out.WriteString(s)
	p.out.WriteByte('\n')
}

// writeTriviaBefore emits any comments attached to line (and a preceding
// blank line, if the original had one), at the printer's current indent.
func (p *printer) writeTriviaBefore(line int) {
	comments := p.trivia.commentsBefore[line]
	if len(comments) == 0 {
		return
	}
	if p.trivia.blankBefore[line] {
		p.out.WriteByte('\n')
	}
	for _, c := range comments {
		p.writeIndent()
		p.out.WriteByte('#')
		p.out.WriteString(c)
		p.out.WriteByte('\n')
	}
}

// Print renders file's statements in source order, reattaching comment and
// blank-line trivia, and returns the canonical text.
func Print(file *ast.File, cfg Config, t *trivia) string {
	p := &printer{cfg: cfg, trivia: t}

	for i, stmt := range file.Statements {
		if i > 0 {
			for n := 0; n < cfg.BlankLinesBetweenBlocks; n++ {
				p.out.WriteByte('\n')
			}
		}
		p.writeTriviaBefore(stmt.Span().Line)
		p.printStatement(stmt)
	}

	for _, c := range t.trailingComments {
		if t.trailingBlank {
			p.out.WriteByte('\n')
		}
		t.trailingBlank = false
		p.writeLine("#" + c)
	}

	out := strings.TrimRight(p.out.String(), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

func (p *printer) printStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.Import:
		p.printImport(s)
	case *ast.Backend:
		p.printBlock("backend "+s.Kind, s.Attrs)
	case *ast.Provider:
		p.printBlock("provider "+s.Name, s.Attrs)
	case *ast.InputBlock:
		p.printInputBlock(s)
	case *ast.OutputBlock:
		p.printOutputBlock(s)
	case *ast.Let:
		p.printLet(s)
	case *ast.ResourceLiteral:
		p.printBlock(s.QualifiedType, s.Attrs)
	case *ast.ModuleCall:
		p.printBlock(s.Alias, s.Args)
	default:
		p.writeLine(fmt.Sprintf("# unformattable statement %T", stmt))
	}
}

func (p *printer) printImport(s *ast.Import) {
	if s.Alias != "" {
		p.writeLine(fmt.Sprintf("import %q as %s", s.Path, s.Alias))
		return
	}
	p.writeLine(fmt.Sprintf("import %q", s.Path))
}

// printBlock renders `<header> { attrs }`, the shape shared by backend,
// provider, module call and resource literal blocks.
func (p *printer) printBlock(header string, attrs []ast.AttrAssign) {
	p.writeIndent()
	p.out.WriteString(header)
	p.out.WriteString(" {\n")
	p.indent++
	p.printAttrs(attrs)
	p.indent--
	p.writeLine("}")
}

func (p *printer) printAttrs(attrs []ast.AttrAssign) {
	width := 0
	if p.cfg.AlignAttributes {
		for _, a := range attrs {
			if len(a.Name) > width {
				width = len(a.Name)
			}
		}
	}
	for _, a := range attrs {
		p.writeTriviaBefore(a.SrcSpan.Line)
		p.writeIndent()
		name := a.Name
		if p.cfg.AlignAttributes {
			name = name + strings.Repeat(" ", width-len(a.Name))
		}
		p.out.WriteString(name)
		p.out.WriteString(" = ")
		p.out.WriteString(p.exprString(a.Value))
		p.out.WriteByte('\n')
	}
}

func (p *printer) printLet(l *ast.Let) {
	p.writeIndent()
	p.out.WriteString("let ")
	p.out.WriteString(l.Name)
	p.out.WriteString(" = ")

	switch v := l.Value.(type) {
	case *ast.ResourceLiteral:
		p.out.WriteString(v.QualifiedType)
		p.out.WriteString(" {\n")
		p.indent++
		p.printAttrs(v.Attrs)
		p.indent--
		p.writeLine("}")
	case *ast.ModuleCall:
		p.out.WriteString(v.Alias)
		p.out.WriteString(" {\n")
		p.indent++
		p.printAttrs(v.Args)
		p.indent--
		p.writeLine("}")
	default:
		p.out.WriteString(fmt.Sprintf("# unformattable binding %T\n", v))
	}
}

func (p *printer) printInputBlock(b *ast.InputBlock) {
	p.writeIndent()
	p.out.WriteString("input {\n")
	p.indent++
	for _, param := range b.Params {
		p.writeIndent()
		p.out.WriteString(param.Name)
		p.out.WriteString(": ")
		p.out.WriteString(typeExprString(param.Type))
		if param.Default != nil {
			p.out.WriteString(" = ")
			p.out.WriteString(p.exprString(param.Default))
		}
		p.out.WriteByte('\n')
	}
	p.indent--
	p.writeLine("}")
}

func (p *printer) printOutputBlock(b *ast.OutputBlock) {
	p.writeIndent()
	p.out.WriteString("output {\n")
	p.indent++
	for _, param := range b.Params {
		p.writeIndent()
		p.out.WriteString(param.Name)
		p.out.WriteString(": ")
		p.out.WriteString(typeExprString(param.Type))
		p.out.WriteString(" = ")
		p.out.WriteString(p.exprString(param.Value))
		p.out.WriteByte('\n')
	}
	p.indent--
	p.writeLine("}")
}

func (p *printer) exprString(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.StringLit:
		return strconv.Quote(v.Value)
	case *ast.IntLit:
		return strconv.FormatInt(v.Value, 10)
	case *ast.BoolLit:
		if v.Value {
			return "true"
		}
		return "false"
	case *ast.DottedIdent:
		return strings.Join(v.Parts, ".")
	case *ast.ListLit:
		items := make([]string, len(v.Items))
		for i, item := range v.Items {
			items[i] = p.exprString(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case *ast.ObjectLit:
		return p.objectLitString(v)
	default:
		return fmt.Sprintf("<?%T>", e)
	}
}

func (p *printer) objectLitString(o *ast.ObjectLit) string {
	if len(o.Attrs) == 0 {
		return "{}"
	}
	parts := make([]string, len(o.Attrs))
	for i, a := range o.Attrs {
		parts[i] = fmt.Sprintf("%s = %s", a.Name, p.exprString(a.Value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func typeExprString(t ast.TypeExpr) string {
	switch t.Name {
	case "List", "Map":
		inner := ""
		if len(t.Args) > 0 {
			inner = typeExprString(t.Args[0])
		}
		return fmt.Sprintf("%s(%s)", strings.ToLower(t.Name), inner)
	case "Ref":
		return fmt.Sprintf("ref(%s)", t.RefType)
	case "Enum":
		vals := append([]string{}, t.Values...)
		sort.Strings(vals)
		return fmt.Sprintf("enum(%s)", strings.Join(vals, ", "))
	case "Object":
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = fmt.Sprintf("%s: %s", f, typeExprString(t.Args[i]))
		}
		return fmt.Sprintf("object{%s}", strings.Join(parts, ", "))
	case "Custom":
		return t.RefType
	default:
		return t.Name
	}
}
