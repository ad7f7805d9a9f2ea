package aws

import (
	"github.com/carina-lang/carina/internal/schema"
	"github.com/carina-lang/carina/internal/value"
)

// schemas holds this provider's ResourceSchema for every type it handles,
// grounded on the attribute shapes the teacher's Config/State structs
// (VpcConfig, SubnetConfig, SecurityGroupConfig, BucketConfig) already
// capture, re-expressed declaratively for internal/schema's
// Validate/DiffAttrs/Coerce passes instead of ad hoc JSON structs.
var schemas = map[string]*schema.ResourceSchema{
	TypeVPC: schema.NewResourceSchema(TypeVPC).
		WithAttribute("name", schema.AttributeSchema{Type: schema.String(), Required: true}).
		WithAttribute("cidr_block", schema.AttributeSchema{Type: schema.CidrBlock(), Required: true, Immutable: true}).
		WithAttribute("id", schema.AttributeSchema{Type: schema.String(), Computed: true}),

	TypeSubnet: schema.NewResourceSchema(TypeSubnet).
		WithAttribute("name", schema.AttributeSchema{Type: schema.String(), Required: true}).
		WithAttribute("vpc_id", schema.AttributeSchema{Type: schema.Ref(TypeVPC), Required: true, Immutable: true}).
		WithAttribute("cidr_block", schema.AttributeSchema{Type: schema.CidrBlock(), Required: true, Immutable: true}).
		WithAttribute("availability_zone", schema.AttributeSchema{Type: schema.String(), Immutable: true}).
		WithAttribute("map_public_ip_on_launch", schema.AttributeSchema{Type: schema.Bool(), Default: value.Bool(false)}).
		WithAttribute("id", schema.AttributeSchema{Type: schema.String(), Computed: true}),

	TypeSecurityGroup: schema.NewResourceSchema(TypeSecurityGroup).
		WithAttribute("name", schema.AttributeSchema{Type: schema.String(), Required: true, Immutable: true}).
		WithAttribute("description", schema.AttributeSchema{Type: schema.String(), Required: true, Immutable: true}).
		WithAttribute("vpc_id", schema.AttributeSchema{Type: schema.Ref(TypeVPC), Immutable: true}).
		WithAttribute("ingress", schema.AttributeSchema{Type: schema.List(ingressRuleType())}).
		WithAttribute("id", schema.AttributeSchema{Type: schema.String(), Computed: true}),

	TypeInternetGateway: schema.NewResourceSchema(TypeInternetGateway).
		WithAttribute("vpc_id", schema.AttributeSchema{Type: schema.Ref(TypeVPC), Immutable: true}).
		WithAttribute("id", schema.AttributeSchema{Type: schema.String(), Computed: true}),

	TypeS3Bucket: schema.NewResourceSchema(TypeS3Bucket).
		WithAttribute("name", schema.AttributeSchema{Type: schema.String(), Required: true, Immutable: true}).
		WithAttribute("force_destroy", schema.AttributeSchema{Type: schema.Bool(), Default: value.Bool(false)}).
		WithAttribute("arn", schema.AttributeSchema{Type: schema.String(), Computed: true}).
		WithAttribute("id", schema.AttributeSchema{Type: schema.String(), Computed: true}),
}

func ingressRuleType() schema.AttributeType {
	return schema.Object("ingress_rule", map[string]schema.AttributeType{
		"protocol":    schema.String(),
		"from_port":   schema.Int(),
		"to_port":     schema.Int(),
		"cidr_blocks": schema.List(schema.CidrBlock()),
	})
}

