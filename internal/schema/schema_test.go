package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carina-lang/carina/internal/value"
)

func vpcSchema() *ResourceSchema {
	return NewResourceSchema("aws.vpc").
		WithAttribute("name", AttributeSchema{Type: String(), Required: true}).
		WithAttribute("cidr_block", AttributeSchema{Type: CidrBlock(), Required: true, Immutable: true}).
		WithAttribute("id", AttributeSchema{Type: String(), Computed: true})
}

func TestValidateRejectsMissingRequiredAttribute(t *testing.T) {
	diags := Validate(value.Map{"cidr_block": value.String("10.0.0.0/16")}, nil, vpcSchema())
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, `"name"`)
}

func TestValidateRejectsUnknownAttribute(t *testing.T) {
	diags := Validate(value.Map{
		"name":       value.String("main"),
		"cidr_block": value.String("10.0.0.0/16"),
		"bogus":      value.String("x"),
	}, nil, vpcSchema())
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, `"bogus"`)
}

func TestValidateRejectsTypeMismatch(t *testing.T) {
	diags := Validate(value.Map{
		"name":       value.Int(5),
		"cidr_block": value.String("10.0.0.0/16"),
	}, nil, vpcSchema())
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "String")
}

func TestValidateRejectsMalformedCIDR(t *testing.T) {
	diags := Validate(value.Map{
		"name":       value.String("main"),
		"cidr_block": value.String("not-a-cidr"),
	}, nil, vpcSchema())
	require.Len(t, diags, 1)
}

func TestValidateRejectsCIDRWithHostBitsSet(t *testing.T) {
	diags := Validate(value.Map{
		"name":       value.String("main"),
		"cidr_block": value.String("10.0.0.5/16"),
	}, nil, vpcSchema())
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "host bits set")
}

func TestValidateAcceptsReferenceForAnyType(t *testing.T) {
	diags := Validate(value.Map{
		"name":       value.Reference{Binding: "other", Attribute: "name"},
		"cidr_block": value.String("10.0.0.0/16"),
	}, nil, vpcSchema())
	assert.Empty(t, diags)
}

func TestValidateAcceptsNoViolations(t *testing.T) {
	diags := Validate(value.Map{
		"name":       value.String("main"),
		"cidr_block": value.String("10.0.0.0/16"),
	}, nil, vpcSchema())
	assert.Empty(t, diags)
}

func TestEnumValidateAcceptsBareAndNamespacedForms(t *testing.T) {
	e := Enum("us_east_1", "us_west_2")
	assert.NoError(t, e.validate(value.String("us_east_1")))
	assert.NoError(t, e.validate(value.String("aws.Region.us_east_1")))
	assert.Error(t, e.validate(value.String("eu_west_1")))
}

func TestNormalizeEnumStripsNamespace(t *testing.T) {
	assert.Equal(t, "us_east_1", NormalizeEnum("aws.Region.us_east_1"))
	assert.Equal(t, "us_east_1", NormalizeEnum("us_east_1"))
}

func TestCustomValidatorSatisfiesAttributeType(t *testing.T) {
	var typ AttributeType = PositiveInt()
	assert.NoError(t, typ.validate(value.Int(5)))
	assert.Error(t, typ.validate(value.Int(-1)))
	assert.Error(t, typ.validate(value.String("nope")))
}

func TestDiffAttrsClassifiesImmutableVsInPlace(t *testing.T) {
	before := value.Map{"name": value.String("old"), "cidr_block": value.String("10.0.0.0/16"), "id": value.String("vpc-1")}
	after := value.Map{"name": value.String("new"), "cidr_block": value.String("10.1.0.0/16"), "id": value.String("vpc-1")}

	result := DiffAttrs(before, after, vpcSchema())
	assert.Equal(t, []string{"cidr_block"}, result.ImmutableChanges)
	assert.Equal(t, []string{"name"}, result.InPlaceChanges)
	assert.True(t, result.HasImmutableChange())
	assert.True(t, result.HasChange())
}

func TestDiffAttrsIgnoresComputedAttributeChanges(t *testing.T) {
	before := value.Map{"name": value.String("main"), "cidr_block": value.String("10.0.0.0/16"), "id": value.String("vpc-1")}
	after := value.Map{"name": value.String("main"), "cidr_block": value.String("10.0.0.0/16"), "id": value.String("vpc-2")}

	result := DiffAttrs(before, after, vpcSchema())
	assert.False(t, result.HasChange())
}

func TestCoerceNormalizesEnumRegionForm(t *testing.T) {
	out, err := Coerce(value.String("aws.Region.ap_northeast_1"), Enum("ap-northeast-1"))
	require.NoError(t, err)
	assert.Equal(t, value.String("ap-northeast-1"), out)
}

func TestCoerceRejectsIntStringCrossing(t *testing.T) {
	_, err := Coerce(value.Int(5), String())
	assert.Error(t, err)
	_, err = Coerce(value.String("5"), Int())
	assert.Error(t, err)
}
