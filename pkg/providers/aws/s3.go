package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

// collectBuckets lists the buckets and probes per-bucket configuration.
// Several of the probe calls return an API error when the configuration was
// never set; those read as empty, not as failures.
func (c *Client) collectBuckets(ctx context.Context) ([]resource.Record, error) {
	listing, err := c.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	var out []resource.Record
	for _, bucket := range listing.Buckets {
		name := aws.ToString(bucket.Name)

		fields := map[string]resource.Value{
			"versioning":          resource.String(c.bucketVersioning(ctx, name)),
			"encryption":          resource.String(c.bucketEncryption(ctx, name)),
			"public_access_block": resource.String(c.bucketPublicAccessBlock(ctx, name)),
			"policy":              resource.String(c.bucketPolicy(ctx, name)),
			"lifecycle_rules":     resource.String(c.bucketLifecycle(ctx, name)),
			"tags":                resource.Map(c.bucketTags(ctx, name)),
		}
		if bucket.CreationDate != nil {
			fields["create_time"] = resource.Time(*bucket.CreationDate)
		}

		out = append(out, resource.Record{
			Type:       resource.TypeS3Bucket,
			AccountID:  c.accountID,
			Region:     c.region,
			NaturalKey: name,
			Fields:     fields,
			ObservedAt: time.Now(),
		})
	}
	return out, nil
}

func (c *Client) bucketVersioning(ctx context.Context, name string) string {
	out, err := c.s3.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(name)})
	if err != nil {
		return ""
	}
	return string(out.Status)
}

func (c *Client) bucketEncryption(ctx context.Context, name string) string {
	out, err := c.s3.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(name)})
	if err != nil || out.ServerSideEncryptionConfiguration == nil {
		return ""
	}
	b, err := json.Marshal(out.ServerSideEncryptionConfiguration.Rules)
	if err != nil {
		return ""
	}
	return string(b)
}

func (c *Client) bucketPublicAccessBlock(ctx context.Context, name string) string {
	out, err := c.s3.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(name)})
	if err != nil || out.PublicAccessBlockConfiguration == nil {
		return ""
	}
	b, err := json.Marshal(out.PublicAccessBlockConfiguration)
	if err != nil {
		return ""
	}
	return string(b)
}

func (c *Client) bucketPolicy(ctx context.Context, name string) string {
	out, err := c.s3.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(name)})
	if err != nil {
		return ""
	}
	return aws.ToString(out.Policy)
}

func (c *Client) bucketLifecycle(ctx context.Context, name string) string {
	out, err := c.s3.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{Bucket: aws.String(name)})
	if err != nil || len(out.Rules) == 0 {
		return ""
	}
	b, err := json.Marshal(out.Rules)
	if err != nil {
		return ""
	}
	return string(b)
}

func (c *Client) bucketTags(ctx context.Context, name string) map[string]string {
	out, err := c.s3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(name)})
	if err != nil {
		return map[string]string{}
	}
	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}
