package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carina-lang/carina/internal/value"
)

func TestResourceKeyStringRoundTripsThroughParse(t *testing.T) {
	key := NewResourceKey([]string{"network", "prod"}, "aws.subnet", "web")
	assert.Equal(t, "network/prod/aws.subnet.web", key.String())

	parsed, err := ParseResourceKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
	assert.Equal(t, []string{"network", "prod"}, parsed.Segments())
}

func TestResourceKeyAtRootHasNoNamespaceSegments(t *testing.T) {
	key := NewResourceKey(nil, "aws.vpc", "main")
	assert.Equal(t, "aws.vpc.main", key.String())
	assert.Nil(t, key.Segments())
}

func TestParseResourceKeyRejectsMissingDot(t *testing.T) {
	_, err := ParseResourceKey("aws-vpc-main")
	assert.Error(t, err)
}

func TestResourceKeyIsUsableAsMapKey(t *testing.T) {
	a := NewResourceKey([]string{"network"}, "aws.vpc", "main")
	b := NewResourceKey([]string{"network"}, "aws.vpc", "main")

	m := map[ResourceKey]int{a: 1}
	m[b]++
	assert.Equal(t, 2, m[a], "two ResourceKeys built from identical components must be equal map keys")
}

func TestResourceAndStateKeyAgreeOnIdentity(t *testing.T) {
	r := &Resource{NamespacePath: []string{"network"}, QualifiedType: "aws.vpc", LocalName: "main"}
	s := &State{NamespacePath: []string{"network"}, QualifiedType: "aws.vpc", LocalName: "main"}
	assert.Equal(t, r.Key(), s.Key())
}

func TestStateDocumentCloneIsIndependent(t *testing.T) {
	doc := NewStateDocument("lineage-1")
	key := NewResourceKey(nil, "aws.vpc", "main")
	doc.Resources[key] = &State{QualifiedType: "aws.vpc", LocalName: "main", ProviderID: "vpc-1"}

	clone := doc.Clone()
	clone.Resources[key].ProviderID = "vpc-2"
	assert.Equal(t, "vpc-1", doc.Resources[key].ProviderID, "mutating the clone's State must not affect the original")
}

func TestStateDocumentJSONRoundTrip(t *testing.T) {
	doc := NewStateDocument("lineage-1")
	doc.Serial = 3
	key := NewResourceKey([]string{"network"}, "aws.vpc", "main")
	doc.Resources[key] = &State{
		QualifiedType: "aws.vpc",
		LocalName:     "main",
		NamespacePath: []string{"network"},
		ProviderID:    "vpc-1",
		Attrs:         value.Map{"name": value.String("main")},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var out StateDocument
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, doc.Serial, out.Serial)
	assert.Equal(t, doc.Lineage, out.Lineage)
	require.Contains(t, out.Resources, key)
	assert.Equal(t, "vpc-1", out.Resources[key].ProviderID)
	assert.Equal(t, []string{"network"}, out.Resources[key].NamespacePath)
	assert.True(t, value.String("main").Equal(out.Resources[key].Attrs["name"]))
}

func TestUnmarshalRejectsNewerStateVersion(t *testing.T) {
	data := []byte(`{"version":99,"lineage":"x","serial":0,"resources":{}}`)
	var out StateDocument
	err := out.UnmarshalJSON(data)
	assert.Error(t, err)
}
