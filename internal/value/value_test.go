package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualAcrossVariants(t *testing.T) {
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(String("b")))
	assert.False(t, String("a").Equal(Int(1)))

	assert.True(t, List{String("a"), Int(1)}.Equal(List{String("a"), Int(1)}))
	assert.False(t, List{String("a")}.Equal(List{String("a"), Int(1)}))

	assert.True(t, Map{"x": Int(1)}.Equal(Map{"x": Int(1)}))
	assert.False(t, Map{"x": Int(1)}.Equal(Map{"x": Int(2)}))
	assert.False(t, Map{"x": Int(1)}.Equal(Map{"y": Int(1)}))
}

func TestReferenceEqualIgnoresBindingAndSpan(t *testing.T) {
	a := Reference{Binding: "main_vpc", Attribute: "id", Target: "aws.vpc.main"}
	b := Reference{Binding: "other_name", Attribute: "id", Target: "aws.vpc.main", Span: Span{Line: 5}}
	assert.True(t, a.Equal(b), "Equal is keyed on Target+Attribute, not Binding or Span")

	c := Reference{Binding: "main_vpc", Attribute: "id", Target: "aws.vpc.other"}
	assert.False(t, a.Equal(c))
}

func TestMapSortedKeysIsDeterministic(t *testing.T) {
	m := Map{"c": Int(1), "a": Int(2), "b": Int(3)}
	assert.Equal(t, []string{"a", "b", "c"}, m.SortedKeys())
}

func TestWalkRebuildsNestedStructure(t *testing.T) {
	in := Map{"list": List{Int(1), Int(2)}}
	out := Walk(in, func(v Value) Value {
		if i, ok := v.(Int); ok {
			return Int(i + 1)
		}
		return v
	})
	assert.Equal(t, Map{"list": List{Int(2), Int(3)}}, out)
}

func TestCollectReferencesFindsNestedReferences(t *testing.T) {
	ref := Reference{Binding: "main_vpc", Attribute: "id", Target: "aws.vpc.main"}
	in := Map{
		"direct": ref,
		"nested": List{Map{"inner": ref}},
		"plain":  String("x"),
	}
	refs := CollectReferences(in)
	assert.Len(t, refs, 2)
	for _, r := range refs {
		assert.Equal(t, ref, r)
	}
}

func TestCollectReferencesReturnsNilWhenNoneFound(t *testing.T) {
	refs := CollectReferences(Map{"a": String("x"), "b": List{Int(1)}})
	assert.Empty(t, refs)
}

func TestSpanStringWithAndWithoutFile(t *testing.T) {
	assert.Equal(t, "3:4", Span{Line: 3, Column: 4}.String())
	assert.Equal(t, "main.crn:3:4", Span{File: "main.crn", Line: 3, Column: 4}.String())
}

func TestToJSONRoundTripsThroughFromJSON(t *testing.T) {
	in := Map{
		"name": String("main"),
		"port": Int(443),
		"ok":   Bool(true),
		"tags": List{String("a"), String("b")},
		"nested": Map{
			"k": Null{},
		},
	}
	raw := ToJSON(in)
	out := FromJSON(raw)
	assert.True(t, in.Equal(out))
}

func TestToJSONPanicsOnUnresolvedReference(t *testing.T) {
	assert.Panics(t, func() {
		ToJSON(Reference{Binding: "main_vpc", Attribute: "id"})
	})
}

