package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/carina-lang/carina/internal/provider"
	"github.com/carina-lang/carina/internal/value"
)

func (p *Provider) createBucket(ctx context.Context, attrs value.Map) (provider.Observation, error) {
	name, _ := getString(attrs, "name")
	_, err := p.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &name})
	if err != nil && !isNotFoundCode(err, "BucketAlreadyOwnedByYou") {
		return provider.Observation{}, classify(err)
	}
	return provider.Observation{ProviderID: name, Observed: value.Map{
		"id":   value.String(name),
		"name": value.String(name),
		"arn":  value.String(fmt.Sprintf("arn:aws:s3:::%s", name)),
	}}, nil
}

func (p *Provider) readBucket(ctx context.Context, name string) (provider.Observation, error) {
	_, err := p.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &name})
	if err != nil {
		if isNotFoundCode(err, "NotFound", "NoSuchBucket") {
			return provider.Observation{}, provider.NotFound
		}
		return provider.Observation{}, classify(err)
	}
	return provider.Observation{ProviderID: name, Observed: value.Map{
		"id":   value.String(name),
		"name": value.String(name),
		"arn":  value.String(fmt.Sprintf("arn:aws:s3:::%s", name)),
	}}, nil
}

// updateBucket handles the only attribute the S3 bucket schema allows to
// change in place, force_destroy. It makes no S3 API call; the new value
// is kept in state only, and deleteBucket does not read it.
func (p *Provider) updateBucket(ctx context.Context, name string, attrs value.Map) (provider.Observation, error) {
	return provider.Observation{ProviderID: name, Observed: value.Map{
		"id":   value.String(name),
		"name": value.String(name),
		"arn":  value.String(fmt.Sprintf("arn:aws:s3:::%s", name)),
	}}, nil
}

func (p *Provider) deleteBucket(ctx context.Context, name string) error {
	_, err := p.s3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: &name})
	if err != nil && !isNotFoundCode(err, "NoSuchBucket") {
		return classify(err)
	}
	return nil
}
