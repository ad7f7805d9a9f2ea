package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carina-lang/carina/internal/ast"
)

func TestParseSimpleVPCResource(t *testing.T) {
	src := `
let main_vpc = aws.vpc {
  name       = "main"
  cidr_block = "10.0.0.0/16"
}
`
	f, errs := Parse("test.crn", src)
	require.Empty(t, errs)
	require.Len(t, f.Statements, 1)

	letStmt, ok := f.Statements[0].(*ast.Let)
	require.True(t, ok)
	assert.Equal(t, "main_vpc", letStmt.Name)

	res, ok := letStmt.Value.(*ast.ResourceLiteral)
	require.True(t, ok)
	assert.Equal(t, "aws.vpc", res.QualifiedType)
	require.Len(t, res.Attrs, 2)
	assert.Equal(t, "name", res.Attrs[0].Name)
	assert.Equal(t, "cidr_block", res.Attrs[1].Name)
}

func TestParseDottedReferenceAttribute(t *testing.T) {
	src := `
let main_vpc = aws.vpc { name = "main" cidr_block = "10.0.0.0/16" }
let web_subnet = aws.subnet { vpc_id = main_vpc.id cidr_block = "10.0.1.0/24" }
`
	f, errs := Parse("test.crn", src)
	require.Empty(t, errs)
	require.Len(t, f.Statements, 2)

	subnetLet := f.Statements[1].(*ast.Let)
	res := subnetLet.Value.(*ast.ResourceLiteral)
	ref, ok := res.Attrs[0].Value.(*ast.DottedIdent)
	require.True(t, ok)
	assert.Equal(t, []string{"main_vpc", "id"}, ref.Parts)
}

func TestParseRepeatedBlocksDesugarToList(t *testing.T) {
	src := `
let sg = aws.security_group {
  name = "web"
  ingress {
    from_port = 80
    to_port   = 80
  }
  ingress {
    from_port = 443
    to_port   = 443
  }
}
`
	f, errs := Parse("test.crn", src)
	require.Empty(t, errs)

	res := f.Statements[0].(*ast.Let).Value.(*ast.ResourceLiteral)
	require.Len(t, res.Attrs, 2)
	assert.Equal(t, "ingress", res.Attrs[1].Name)

	list, ok := res.Attrs[1].Value.(*ast.ListLit)
	require.True(t, ok)
	require.Len(t, list.Items, 2)

	first := list.Items[0].(*ast.ObjectLit)
	assert.Equal(t, "from_port", first.Attrs[0].Name)
}

func TestParseImportBackendProvider(t *testing.T) {
	src := `
import "./modules/network" as network

backend local {
  path = "./carina.tfstate.json"
}

provider aws {
  region = "us-east-1"
}
`
	f, errs := Parse("test.crn", src)
	require.Empty(t, errs)
	require.Len(t, f.Statements, 3)

	imp := f.Statements[0].(*ast.Import)
	assert.Equal(t, "./modules/network", imp.Path)
	assert.Equal(t, "network", imp.Alias)

	backend := f.Statements[1].(*ast.Backend)
	assert.Equal(t, "local", backend.Kind)
	assert.Equal(t, "path", backend.Attrs[0].Name)

	provider := f.Statements[2].(*ast.Provider)
	assert.Equal(t, "aws", provider.Name)
}

func TestParseInputOutputBlocks(t *testing.T) {
	src := `
input {
  vpc: Ref(aws.vpc)
  cidr_blocks: List(String) = ["10.0.1.0/24"]
}

output {
  security_group_id: String = sg.id
}
`
	f, errs := Parse("test.crn", src)
	require.Empty(t, errs)
	require.Len(t, f.Statements, 2)

	in := f.Statements[0].(*ast.InputBlock)
	require.Len(t, in.Params, 2)
	assert.Equal(t, "vpc", in.Params[0].Name)
	assert.Equal(t, "Ref", in.Params[0].Type.Name)
	assert.Equal(t, "aws.vpc", in.Params[0].Type.RefType)
	assert.Equal(t, "cidr_blocks", in.Params[1].Name)
	require.NotNil(t, in.Params[1].Default)

	out := f.Statements[1].(*ast.OutputBlock)
	require.Len(t, out.Params, 1)
	assert.Equal(t, "security_group_id", out.Params[0].Name)
}

func TestParseModuleInvocation(t *testing.T) {
	src := `
let main_vpc = aws.vpc { name = "main" cidr_block = "10.0.0.0/16" }

web_tier {
  vpc = main_vpc.id
}
`
	f, errs := Parse("test.crn", src)
	require.Empty(t, errs)
	require.Len(t, f.Statements, 2)

	call, ok := f.Statements[1].(*ast.ModuleCall)
	require.True(t, ok)
	assert.Equal(t, "web_tier", call.Alias)
	require.Len(t, call.Args, 1)
	assert.Equal(t, "vpc", call.Args[0].Name)
}

func TestParseNestedObjectLiteral(t *testing.T) {
	src := `
let main_vpc = aws.vpc {
  name = "main"
  cidr_block = "10.0.0.0/16"
  tags = { Name = "main-vpc" Environment = "prod" }
}
`
	f, errs := Parse("test.crn", src)
	require.Empty(t, errs)

	res := f.Statements[0].(*ast.Let).Value.(*ast.ResourceLiteral)
	tags := res.Attrs[2].Value.(*ast.ObjectLit)
	require.Len(t, tags.Attrs, 2)
	assert.Equal(t, "Name", tags.Attrs[0].Name)
}

func TestParseEnumFormIdentifier(t *testing.T) {
	src := `
provider aws {
  region = aws.Region.us_east_1
}
`
	f, errs := Parse("test.crn", src)
	require.Empty(t, errs)

	provider := f.Statements[0].(*ast.Provider)
	ref := provider.Attrs[0].Value.(*ast.DottedIdent)
	assert.Equal(t, []string{"aws", "Region", "us_east_1"}, ref.Parts)
}
