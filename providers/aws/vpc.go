package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/carina-lang/carina/internal/provider"
	"github.com/carina-lang/carina/internal/value"
)

func tagsFor(resourceID string, tags map[string]string) *ec2.CreateTagsInput {
	var t []types.Tag
	for k, v := range tags {
		k, v := k, v
		t = append(t, types.Tag{Key: &k, Value: &v})
	}
	return &ec2.CreateTagsInput{Resources: []string{resourceID}, Tags: t}
}

func (p *Provider) createVPC(ctx context.Context, attrs value.Map) (provider.Observation, error) {
	cidr, _ := getString(attrs, "cidr_block")
	resp, err := p.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: &cidr})
	if err != nil {
		return provider.Observation{}, classify(err)
	}
	id := *resp.Vpc.VpcId
	if name, ok := getString(attrs, "name"); ok {
		p.ec2Client.CreateTags(ctx, tagsFor(id, map[string]string{"Name": name}))
	}
	return provider.Observation{ProviderID: id, Observed: value.Map{
		"id":         value.String(id),
		"cidr_block": value.String(*resp.Vpc.CidrBlock),
	}}, nil
}

func (p *Provider) readVPC(ctx context.Context, id string) (provider.Observation, error) {
	resp, err := p.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{id}})
	if err != nil {
		if isNotFoundCode(err, "InvalidVpcID.NotFound") {
			return provider.Observation{}, provider.NotFound
		}
		return provider.Observation{}, classify(err)
	}
	if len(resp.Vpcs) == 0 {
		return provider.Observation{}, provider.NotFound
	}
	v := resp.Vpcs[0]
	return provider.Observation{ProviderID: id, Observed: value.Map{
		"id":         value.String(id),
		"cidr_block": value.String(*v.CidrBlock),
	}}, nil
}

func (p *Provider) deleteVPC(ctx context.Context, id string) error {
	_, err := p.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: &id})
	if err != nil && !isNotFoundCode(err, "InvalidVpcID.NotFound") {
		return classify(err)
	}
	return nil
}

func (p *Provider) createSubnet(ctx context.Context, attrs value.Map) (provider.Observation, error) {
	vpcID, _ := getString(attrs, "vpc_id")
	cidr, _ := getString(attrs, "cidr_block")
	input := &ec2.CreateSubnetInput{VpcId: &vpcID, CidrBlock: &cidr}
	if az, ok := getString(attrs, "availability_zone"); ok && az != "" {
		input.AvailabilityZone = &az
	}
	resp, err := p.ec2Client.CreateSubnet(ctx, input)
	if err != nil {
		return provider.Observation{}, classify(err)
	}
	id := *resp.Subnet.SubnetId
	if getBool(attrs, "map_public_ip_on_launch") {
		enable := true
		p.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            &id,
			MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: &enable},
		})
	}
	return provider.Observation{ProviderID: id, Observed: value.Map{
		"id":         value.String(id),
		"vpc_id":     value.String(*resp.Subnet.VpcId),
		"cidr_block": value.String(*resp.Subnet.CidrBlock),
	}}, nil
}

func (p *Provider) readSubnet(ctx context.Context, id string) (provider.Observation, error) {
	resp, err := p.ec2Client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{id}})
	if err != nil {
		if isNotFoundCode(err, "InvalidSubnetID.NotFound") {
			return provider.Observation{}, provider.NotFound
		}
		return provider.Observation{}, classify(err)
	}
	if len(resp.Subnets) == 0 {
		return provider.Observation{}, provider.NotFound
	}
	sn := resp.Subnets[0]
	return provider.Observation{ProviderID: id, Observed: value.Map{
		"id":         value.String(id),
		"vpc_id":     value.String(*sn.VpcId),
		"cidr_block": value.String(*sn.CidrBlock),
	}}, nil
}

func (p *Provider) deleteSubnet(ctx context.Context, id string) error {
	_, err := p.ec2Client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: &id})
	if err != nil && !isNotFoundCode(err, "InvalidSubnetID.NotFound") {
		return classify(err)
	}
	return nil
}

func ingressPermissions(attrs value.Map) []types.IpPermission {
	raw, ok := attrs["ingress"]
	if !ok {
		return nil
	}
	list, ok := raw.(value.List)
	if !ok {
		return nil
	}
	var perms []types.IpPermission
	for _, item := range list {
		obj, ok := item.(value.Map)
		if !ok {
			continue
		}
		proto, _ := getString(obj, "protocol")
		var fromPort, toPort int32
		if v, ok := obj["from_port"].(value.Int); ok {
			fromPort = int32(v)
		}
		if v, ok := obj["to_port"].(value.Int); ok {
			toPort = int32(v)
		}
		var ranges []types.IpRange
		if cidrs, ok := obj["cidr_blocks"].(value.List); ok {
			for _, c := range cidrs {
				if s, ok := c.(value.String); ok {
					cidr := string(s)
					ranges = append(ranges, types.IpRange{CidrIp: &cidr})
				}
			}
		}
		perms = append(perms, types.IpPermission{IpProtocol: &proto, FromPort: &fromPort, ToPort: &toPort, IpRanges: ranges})
	}
	return perms
}

func (p *Provider) createSecurityGroup(ctx context.Context, attrs value.Map) (provider.Observation, error) {
	name, _ := getString(attrs, "name")
	desc, _ := getString(attrs, "description")
	input := &ec2.CreateSecurityGroupInput{GroupName: &name, Description: &desc}
	if vpcID, ok := getString(attrs, "vpc_id"); ok && vpcID != "" {
		input.VpcId = &vpcID
	}
	resp, err := p.ec2Client.CreateSecurityGroup(ctx, input)
	if err != nil {
		return provider.Observation{}, classify(err)
	}
	id := *resp.GroupId

	if perms := ingressPermissions(attrs); len(perms) > 0 {
		if _, err := p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       &id,
			IpPermissions: perms,
		}); err != nil {
			return provider.Observation{}, classify(err)
		}
	}

	return provider.Observation{ProviderID: id, Observed: value.Map{
		"id":   value.String(id),
		"name": value.String(name),
	}}, nil
}

func (p *Provider) readSecurityGroup(ctx context.Context, id string) (provider.Observation, error) {
	resp, err := p.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: []string{id}})
	if err != nil {
		if isNotFoundCode(err, "InvalidGroup.NotFound") {
			return provider.Observation{}, provider.NotFound
		}
		return provider.Observation{}, classify(err)
	}
	if len(resp.SecurityGroups) == 0 {
		return provider.Observation{}, provider.NotFound
	}
	sg := resp.SecurityGroups[0]
	return provider.Observation{ProviderID: id, Observed: value.Map{
		"id":   value.String(id),
		"name": value.String(*sg.GroupName),
	}}, nil
}

// updateSecurityGroup re-authorizes the ingress rule set named by attrs,
// revoking nothing: spec.md §9 scopes security-group rule drift out, so
// an Update only ever adds rules that weren't there before.
func (p *Provider) updateSecurityGroup(ctx context.Context, id string, attrs value.Map) (provider.Observation, error) {
	if perms := ingressPermissions(attrs); len(perms) > 0 {
		p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       &id,
			IpPermissions: perms,
		})
	}
	name, _ := getString(attrs, "name")
	return provider.Observation{ProviderID: id, Observed: value.Map{"id": value.String(id), "name": value.String(name)}}, nil
}

func (p *Provider) deleteSecurityGroup(ctx context.Context, id string) error {
	_, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: &id})
	if err != nil && !isNotFoundCode(err, "InvalidGroup.NotFound") {
		return classify(err)
	}
	return nil
}

func (p *Provider) createInternetGateway(ctx context.Context, attrs value.Map) (provider.Observation, error) {
	resp, err := p.ec2Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return provider.Observation{}, classify(err)
	}
	id := *resp.InternetGateway.InternetGatewayId

	vpcID, hasVPC := getString(attrs, "vpc_id")
	if hasVPC && vpcID != "" {
		if _, err := p.ec2Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{InternetGatewayId: &id, VpcId: &vpcID}); err != nil {
			return provider.Observation{}, classify(err)
		}
	}

	return provider.Observation{ProviderID: id, Observed: value.Map{
		"id":     value.String(id),
		"vpc_id": value.String(vpcID),
	}}, nil
}

func (p *Provider) readInternetGateway(ctx context.Context, id string) (provider.Observation, error) {
	resp, err := p.ec2Client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{InternetGatewayIds: []string{id}})
	if err != nil {
		if isNotFoundCode(err, "InvalidInternetGatewayID.NotFound") {
			return provider.Observation{}, provider.NotFound
		}
		return provider.Observation{}, classify(err)
	}
	if len(resp.InternetGateways) == 0 {
		return provider.Observation{}, provider.NotFound
	}
	igw := resp.InternetGateways[0]
	vpcID := ""
	if len(igw.Attachments) > 0 && igw.Attachments[0].VpcId != nil {
		vpcID = *igw.Attachments[0].VpcId
	}
	return provider.Observation{ProviderID: id, Observed: value.Map{
		"id":     value.String(id),
		"vpc_id": value.String(vpcID),
	}}, nil
}

func (p *Provider) deleteInternetGateway(ctx context.Context, id string) error {
	resp, err := p.ec2Client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{InternetGatewayIds: []string{id}})
	if err == nil && len(resp.InternetGateways) > 0 {
		for _, att := range resp.InternetGateways[0].Attachments {
			p.ec2Client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{InternetGatewayId: &id, VpcId: att.VpcId})
		}
	}
	_, err = p.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: &id})
	if err != nil && !isNotFoundCode(err, "InvalidInternetGatewayID.NotFound") {
		return classify(err)
	}
	return nil
}
