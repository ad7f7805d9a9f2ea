package formatter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carina-lang/carina/internal/ast"
	"github.com/carina-lang/carina/internal/parser"
)

func TestFormatIndentsAndAlignsAttributes(t *testing.T) {
	src := `let main = aws.vpc {
  name = "main"
  cidr_block    = "10.0.0.0/16"
}
`
	out, errs := Format("main.crn", src, DefaultConfig())
	require.Empty(t, errs)
	assert.Equal(t, "let main = aws.vpc {\n    name       = \"main\"\n    cidr_block = \"10.0.0.0/16\"\n}\n", out)
}

func TestFormatIsIdempotent(t *testing.T) {
	src := `let main = aws.vpc {
  name = "main"
}
`
	once, errs := Format("main.crn", src, DefaultConfig())
	require.Empty(t, errs)

	twice, errs := Format("main.crn", once, DefaultConfig())
	require.Empty(t, errs)
	assert.Equal(t, once, twice)
}

func TestFormatPreservesLeadingComment(t *testing.T) {
	src := "# the main vpc\nlet main = aws.vpc {\n    name = \"main\"\n}\n"
	out, errs := Format("main.crn", src, DefaultConfig())
	require.Empty(t, errs)
	assert.Contains(t, out, "# the main vpc\n")
}

func TestFormatInsertsBlankLineBetweenBlocks(t *testing.T) {
	src := `backend s3 {
    bucket = "state"
}
let main = aws.vpc {
    name = "main"
}
`
	out, errs := Format("main.crn", src, DefaultConfig())
	require.Empty(t, errs)
	assert.Contains(t, out, "}\n\nlet main")
}

func TestNeedsFormatDetectsUnformattedSource(t *testing.T) {
	src := "let main = aws.vpc {\n  name=\"main\"\n}\n"
	dirty, errs := NeedsFormat("main.crn", src, DefaultConfig())
	require.Empty(t, errs)
	assert.True(t, dirty)
}

// TestFormatPreservesStructureAcrossReparse checks the property spec.md §8
// calls out by name: parse(format(parse(s))) must equal parse(s)
// structurally. A byte-equal comparison of formatted output can't catch a
// formatter bug that reorders or drops syntax while still producing
// something that happens to re-parse cleanly, so this re-parses the
// formatted text and walks both ASTs looking for a structural mismatch.
func TestFormatPreservesStructureAcrossReparse(t *testing.T) {
	src := `provider aws {
region="us-east-1"
}

let main_vpc=aws.vpc{
  name = "main"
    cidr_block = "10.0.0.0/16"
}

let web = aws.security_group {
name = "web"
    ingress = [{port=80}, {  port = 443 }]
vpc_id=main_vpc.id
}
`
	before, errs := parser.Parse("main.crn", src)
	require.Empty(t, errs)

	out, errs := Format("main.crn", src, DefaultConfig())
	require.Empty(t, errs)

	after, errs := parser.Parse("main.crn", out)
	require.Empty(t, errs)

	assertFilesStructurallyEqual(t, before, after)
}

// assertFilesStructurallyEqual compares two ast.File values field by field,
// ignoring the SrcSpan of every statement, attribute and expression
// (formatting is free to move lines/columns/offsets around; it must never
// change what those spans point at). Input parameter types are compared as
// whole ast.TypeExpr values, spans included.
func assertFilesStructurallyEqual(t *testing.T, a, b *ast.File) {
	t.Helper()
	require.Equal(t, len(a.Statements), len(b.Statements), "statement count changed across a format round-trip")
	for i := range a.Statements {
		assertStatementsEqual(t, fmt.Sprintf("statement[%d]", i), a.Statements[i], b.Statements[i])
	}
}

func assertStatementsEqual(t *testing.T, path string, a, b ast.Statement) {
	t.Helper()
	require.IsType(t, a, b, path)
	switch av := a.(type) {
	case *ast.Import:
		bv := b.(*ast.Import)
		assert.Equal(t, av.Path, bv.Path, path+".Path")
		assert.Equal(t, av.Alias, bv.Alias, path+".Alias")
	case *ast.Backend:
		bv := b.(*ast.Backend)
		assert.Equal(t, av.Kind, bv.Kind, path+".Kind")
		assertAttrsEqual(t, path+".Attrs", av.Attrs, bv.Attrs)
	case *ast.Provider:
		bv := b.(*ast.Provider)
		assert.Equal(t, av.Name, bv.Name, path+".Name")
		assertAttrsEqual(t, path+".Attrs", av.Attrs, bv.Attrs)
	case *ast.InputBlock:
		bv := b.(*ast.InputBlock)
		require.Equal(t, len(av.Params), len(bv.Params), path+".Params")
		for i := range av.Params {
			assert.Equal(t, av.Params[i].Name, bv.Params[i].Name, fmt.Sprintf("%s.Params[%d].Name", path, i))
			assert.Equal(t, av.Params[i].Type, bv.Params[i].Type, fmt.Sprintf("%s.Params[%d].Type", path, i))
		}
	case *ast.OutputBlock:
		bv := b.(*ast.OutputBlock)
		require.Equal(t, len(av.Params), len(bv.Params), path+".Params")
		for i := range av.Params {
			assert.Equal(t, av.Params[i].Name, bv.Params[i].Name, fmt.Sprintf("%s.Params[%d].Name", path, i))
			assertExprsEqual(t, fmt.Sprintf("%s.Params[%d].Value", path, i), av.Params[i].Value, bv.Params[i].Value)
		}
	case *ast.Let:
		bv := b.(*ast.Let)
		assert.Equal(t, av.Name, bv.Name, path+".Name")
		assertBindablesEqual(t, path+".Value", av.Value, bv.Value)
	case *ast.ResourceLiteral:
		bv := b.(*ast.ResourceLiteral)
		assertBindablesEqual(t, path, av, bv)
	case *ast.ModuleCall:
		bv := b.(*ast.ModuleCall)
		assertBindablesEqual(t, path, av, bv)
	default:
		t.Fatalf("%s: unhandled statement type %T", path, a)
	}
}

func assertBindablesEqual(t *testing.T, path string, a, b ast.Bindable) {
	t.Helper()
	require.IsType(t, a, b, path)
	switch av := a.(type) {
	case *ast.ResourceLiteral:
		bv := b.(*ast.ResourceLiteral)
		assert.Equal(t, av.QualifiedType, bv.QualifiedType, path+".QualifiedType")
		assertAttrsEqual(t, path+".Attrs", av.Attrs, bv.Attrs)
	case *ast.ModuleCall:
		bv := b.(*ast.ModuleCall)
		assert.Equal(t, av.Alias, bv.Alias, path+".Alias")
		assertAttrsEqual(t, path+".Args", av.Args, bv.Args)
	default:
		t.Fatalf("%s: unhandled bindable type %T", path, a)
	}
}

func assertAttrsEqual(t *testing.T, path string, a, b []ast.AttrAssign) {
	t.Helper()
	require.Equal(t, len(a), len(b), path)
	for i := range a {
		assert.Equal(t, a[i].Name, b[i].Name, fmt.Sprintf("%s[%d].Name", path, i))
		assertExprsEqual(t, fmt.Sprintf("%s[%d].Value", path, i), a[i].Value, b[i].Value)
	}
}

func assertExprsEqual(t *testing.T, path string, a, b ast.Expr) {
	t.Helper()
	require.IsType(t, a, b, path)
	switch av := a.(type) {
	case *ast.StringLit:
		assert.Equal(t, av.Value, b.(*ast.StringLit).Value, path)
	case *ast.IntLit:
		assert.Equal(t, av.Value, b.(*ast.IntLit).Value, path)
	case *ast.BoolLit:
		assert.Equal(t, av.Value, b.(*ast.BoolLit).Value, path)
	case *ast.DottedIdent:
		assert.Equal(t, av.Parts, b.(*ast.DottedIdent).Parts, path)
	case *ast.ListLit:
		bv := b.(*ast.ListLit)
		require.Equal(t, len(av.Items), len(bv.Items), path)
		for i := range av.Items {
			assertExprsEqual(t, fmt.Sprintf("%s[%d]", path, i), av.Items[i], bv.Items[i])
		}
	case *ast.ObjectLit:
		bv := b.(*ast.ObjectLit)
		assertAttrsEqual(t, path, av.Attrs, bv.Attrs)
	default:
		t.Fatalf("%s: unhandled expr type %T", path, a)
	}
}
