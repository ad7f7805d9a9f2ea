// Package aws implements provider.Provider against the AWS EC2 and S3
// APIs: VPCs, subnets, security groups, internet gateways and S3 buckets.
//
// Grounded on the teacher's providers/aws package (client setup via
// aws-sdk-go-v2's config.LoadDefaultConfig, one *ec2.Client/*s3.Client per
// Provider, CreateTags-after-create for tagging), re-expressed against
// internal/provider's plain Create/Read/Update/Delete contract instead of
// the teacher's grpc-plugin Plan/Apply RPCs (SPEC_FULL.md §2: no process
// boundary to cross in a single binary).
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/carina-lang/carina/internal/diag"
	"github.com/carina-lang/carina/internal/provider"
	"github.com/carina-lang/carina/internal/schema"
	"github.com/carina-lang/carina/internal/value"
)

const (
	TypeVPC              = "aws.vpc"
	TypeSubnet            = "aws.subnet"
	TypeSecurityGroup     = "aws.security_group"
	TypeInternetGateway   = "aws.internet_gateway"
	TypeS3Bucket          = "aws.s3_bucket"
)

// Provider holds one AWS SDK config's worth of service clients, lazily
// initialized on first use against the region named in the `provider
// aws { region = ... }` block.
type Provider struct {
	region    string
	ec2Client *ec2.Client
	s3Client  *s3.Client
}

func New(region string) *Provider {
	if region == "" {
		region = "us-east-1"
	}
	return &Provider{region: region}
}

func (p *Provider) ensureClients(ctx context.Context) error {
	if p.ec2Client != nil && p.s3Client != nil {
		return nil
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
	if err != nil {
		return fmt.Errorf("loading AWS SDK config: %w", err)
	}
	p.ec2Client = ec2.NewFromConfig(cfg)
	p.s3Client = s3.NewFromConfig(cfg)
	return nil
}

func (p *Provider) Types() []string {
	return []string{TypeVPC, TypeSubnet, TypeSecurityGroup, TypeInternetGateway, TypeS3Bucket}
}

func (p *Provider) Schema(qualifiedType string) (*schema.ResourceSchema, bool) {
	s, ok := schemas[qualifiedType]
	return s, ok
}

func (p *Provider) Create(ctx context.Context, qualifiedType string, attrs value.Map) (provider.Observation, error) {
	if err := p.ensureClients(ctx); err != nil {
		return provider.Observation{}, classify(err)
	}
	switch qualifiedType {
	case TypeVPC:
		return p.createVPC(ctx, attrs)
	case TypeSubnet:
		return p.createSubnet(ctx, attrs)
	case TypeSecurityGroup:
		return p.createSecurityGroup(ctx, attrs)
	case TypeInternetGateway:
		return p.createInternetGateway(ctx, attrs)
	case TypeS3Bucket:
		return p.createBucket(ctx, attrs)
	}
	return provider.Observation{}, diag.UnsupportedType(qualifiedType)
}

func (p *Provider) Read(ctx context.Context, qualifiedType, providerID string) (provider.Observation, error) {
	if err := p.ensureClients(ctx); err != nil {
		return provider.Observation{}, classify(err)
	}
	switch qualifiedType {
	case TypeVPC:
		return p.readVPC(ctx, providerID)
	case TypeSubnet:
		return p.readSubnet(ctx, providerID)
	case TypeSecurityGroup:
		return p.readSecurityGroup(ctx, providerID)
	case TypeInternetGateway:
		return p.readInternetGateway(ctx, providerID)
	case TypeS3Bucket:
		return p.readBucket(ctx, providerID)
	}
	return provider.Observation{}, diag.UnsupportedType(qualifiedType)
}

func (p *Provider) Update(ctx context.Context, qualifiedType, providerID string, attrs value.Map) (provider.Observation, error) {
	if err := p.ensureClients(ctx); err != nil {
		return provider.Observation{}, classify(err)
	}
	switch qualifiedType {
	case TypeSecurityGroup:
		return p.updateSecurityGroup(ctx, providerID, attrs)
	case TypeS3Bucket:
		return p.updateBucket(ctx, providerID, attrs)
	}
	return provider.Observation{}, diag.UnsupportedType(qualifiedType)
}

func (p *Provider) Delete(ctx context.Context, qualifiedType, providerID string) error {
	if err := p.ensureClients(ctx); err != nil {
		return classify(err)
	}
	switch qualifiedType {
	case TypeVPC:
		return p.deleteVPC(ctx, providerID)
	case TypeSubnet:
		return p.deleteSubnet(ctx, providerID)
	case TypeSecurityGroup:
		return p.deleteSecurityGroup(ctx, providerID)
	case TypeInternetGateway:
		return p.deleteInternetGateway(ctx, providerID)
	case TypeS3Bucket:
		return p.deleteBucket(ctx, providerID)
	}
	return diag.UnsupportedType(qualifiedType)
}

// classify turns an AWS SDK error into a *diag.ProviderError, using
// smithy-go's APIError to tell throttling/5xx (transient, worth retrying)
// from client errors like malformed input (permanent).
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "Throttling", "RequestLimitExceeded", "InternalError", "ServiceUnavailable":
			return &diag.ProviderError{Kind: diag.Transient, Message: ae.ErrorMessage(), Retryable: true, Cause: err}
		}
	}
	return &diag.ProviderError{Kind: diag.Permanent, Message: err.Error(), Retryable: false, Cause: err}
}

func isNotFoundCode(err error, codes ...string) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	for _, c := range codes {
		if ae.ErrorCode() == c {
			return true
		}
	}
	return false
}

func getString(attrs value.Map, name string) (string, bool) {
	v, ok := attrs[name]
	if !ok {
		return "", false
	}
	s, ok := v.(value.String)
	return string(s), ok
}

func getBool(attrs value.Map, name string) bool {
	v, ok := attrs[name]
	if !ok {
		return false
	}
	b, _ := v.(value.Bool)
	return bool(b)
}
