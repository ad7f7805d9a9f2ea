package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carina-lang/carina/internal/ir"
)

func key(typ, name string) ir.ResourceKey { return ir.NewResourceKey(nil, typ, name) }

func TestTopoSortOrdersReferentsBeforeReferrers(t *testing.T) {
	vpc := key("aws.vpc", "main")
	subnet := key("aws.subnet", "web")

	g := New()
	g.AddEdge(subnet, vpc) // subnet depends on vpc

	order, err := g.TopoSort()
	require.NoError(t, err)
	require.Equal(t, []ir.ResourceKey{vpc, subnet}, order)
}

func TestReverseTopoSortForDeletes(t *testing.T) {
	vpc := key("aws.vpc", "main")
	subnet := key("aws.subnet", "web")

	g := New()
	g.AddEdge(subnet, vpc)

	order, err := g.ReverseTopoSort()
	require.NoError(t, err)
	assert.Equal(t, []ir.ResourceKey{subnet, vpc}, order)
}

func TestTopoSortDetectsCycle(t *testing.T) {
	a := key("aws.vpc", "a")
	b := key("aws.vpc", "b")

	g := New()
	g.AddEdge(a, b)
	g.AddEdge(b, a)

	_, err := g.TopoSort()
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestFromResourcesBuildsGraphFromDependsOn(t *testing.T) {
	vpc := &ir.Resource{QualifiedType: "aws.vpc", LocalName: "main"}
	subnet := &ir.Resource{QualifiedType: "aws.subnet", LocalName: "web"}
	subnet.AddDependency(vpc.Key())

	g := FromResources([]*ir.Resource{vpc, subnet})
	order, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, []ir.ResourceKey{vpc.Key(), subnet.Key()}, order)
}
