package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carina-lang/carina/internal/ast"
	"github.com/carina-lang/carina/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendFromASTDefaultsToLocal(t *testing.T) {
	cfg, err := backendFromAST(nil, "/tmp/project")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Kind)
	assert.Equal(t, "/tmp/project/.carina/state.json", cfg.Local.Path)
}

func TestBackendFromASTObjectStore(t *testing.T) {
	b := &ast.Backend{Kind: "object_store", Attrs: []ast.AttrAssign{
		{Name: "bucket", Value: &ast.StringLit{Value: "my-state"}},
		{Name: "key", Value: &ast.StringLit{Value: "prod/state.json"}},
		{Name: "region", Value: &ast.StringLit{Value: "us-west-2"}},
		{Name: "encrypt", Value: &ast.BoolLit{Value: true}},
	}}
	cfg, err := backendFromAST(b, "/tmp/project")
	require.NoError(t, err)
	assert.Equal(t, "object_store", cfg.Kind)
	assert.Equal(t, "my-state", cfg.ObjectStore.Bucket)
	assert.Equal(t, "prod/state.json", cfg.ObjectStore.Key)
	assert.Equal(t, "us-west-2", cfg.ObjectStore.Region)
	assert.True(t, cfg.ObjectStore.Encrypt)
}

func TestBuildProviderRegistryReadsAWSRegion(t *testing.T) {
	providers := []*ast.Provider{{Name: "aws", Attrs: []ast.AttrAssign{
		{Name: "region", Value: &ast.StringLit{Value: "eu-west-1"}},
	}}}
	reg := buildProviderRegistry(providers)
	_, ok := reg.Schemas()["aws.vpc"]
	assert.True(t, ok)
}

func TestSymbolForEveryEffect(t *testing.T) {
	for _, e := range []plan.Effect{plan.Create, plan.Update, plan.Delete, plan.Replace, plan.Read, plan.NoOp} {
		symbol, color := symbolFor(e)
		assert.NotEmpty(t, symbol)
		assert.NotEmpty(t, color)
	}
}

func TestEntryPointForDefaultsToMainCrnInCwd(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	gotDir, file, err := entryPointFor(nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(gotDir, "main.crn"), file)
}

func TestEntryPointForExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "infra.crn")
	require.NoError(t, os.WriteFile(path, []byte("backend local {\n}\n"), 0644))

	gotDir, file, err := entryPointFor([]string{path})
	require.NoError(t, err)
	assert.Equal(t, dir, gotDir)
	assert.Equal(t, path, file)
}

func TestConfirmAcceptsYes(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, _ = w.WriteString("y\n")
	w.Close()

	old := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = old }()

	assert.True(t, confirm("proceed?"))
}
