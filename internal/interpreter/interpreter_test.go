package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carina-lang/carina/internal/ir"
	"github.com/carina-lang/carina/internal/plan"
	"github.com/carina-lang/carina/internal/value"
	"github.com/carina-lang/carina/providers/testprovider"
)

func TestApplyCreatePropagatesIDToDependent(t *testing.T) {
	vpcKey := ir.NewResourceKey(nil, "test.resource", "main")
	subnetKey := ir.NewResourceKey(nil, "test.resource", "web")

	p := &plan.Plan{Changes: []plan.Change{
		{Key: vpcKey, Effect: plan.Create, After: value.Map{"name": value.String("main")}},
		{Key: subnetKey, Effect: plan.Create, After: value.Map{
			"name":   value.String("web"),
			"vpc_id": value.Reference{Binding: "main", Attribute: "id", Target: vpcKey.String()},
		}},
	}}

	tp := testprovider.New()
	it := &Interpreter{Provider: tp}

	result, err := it.Apply(t.Context(), p, ir.NewStateDocument("lineage-1"))
	require.NoError(t, err)

	subnetState := result.State.Resources[subnetKey]
	require.NotNil(t, subnetState)
	vpcID, ok := subnetState.Attrs["vpc_id"].(value.String)
	require.True(t, ok, "vpc_id should have been substituted to a concrete string, got %T", subnetState.Attrs["vpc_id"])
	assert.Equal(t, result.State.Resources[vpcKey].ProviderID, string(vpcID))
}

func TestApplyContinueOnErrorKeepsIndependentChanges(t *testing.T) {
	a := ir.NewResourceKey(nil, "test.resource", "a")
	b := ir.NewResourceKey(nil, "test.resource", "b")

	p := &plan.Plan{Changes: []plan.Change{
		{Key: a, Effect: plan.Create, After: value.Map{"name": value.String("a")}},
		{Key: b, Effect: plan.Create, After: value.Map{"name": value.String("b")}},
	}}

	tp := testprovider.New()
	tp.FailCreate = map[string]error{"test.resource": assertErr{}}
	it := &Interpreter{Provider: tp, ContinueOnError: true}

	_, err := it.Apply(t.Context(), p, ir.NewStateDocument("lineage-1"))
	require.Error(t, err)
}

func TestApplyDryRunNeverCallsProvider(t *testing.T) {
	key := ir.NewResourceKey(nil, "test.resource", "main")
	p := &plan.Plan{Changes: []plan.Change{{Key: key, Effect: plan.Create, After: value.Map{"name": value.String("main")}}}}

	tp := testprovider.New()
	tp.FailCreate = map[string]error{"test.resource": assertErr{}}
	it := &Interpreter{Provider: tp, DryRun: true}

	result, err := it.Apply(t.Context(), p, ir.NewStateDocument("lineage-1"))
	require.NoError(t, err)
	assert.Equal(t, "dry-run", result.State.Resources[key].ProviderID)
}

func TestDestroyRemovesDeletedResourceFromState(t *testing.T) {
	vpcKey := ir.NewResourceKey(nil, "test.resource", "main")
	tp := testprovider.New()
	doc := ir.NewStateDocument("lineage-1")
	doc.Resources[vpcKey] = &ir.State{QualifiedType: "test.resource", LocalName: "main", ProviderID: "test-1", Attrs: value.Map{"name": value.String("main")}}

	it := &Interpreter{Provider: tp}
	result, err := Destroy(t.Context(), it, []ir.ResourceKey{vpcKey}, doc)
	require.NoError(t, err)
	assert.Empty(t, result.State.Resources)
}

type assertErr struct{}

func (assertErr) Error() string { return "induced failure" }
