// Package aws implements the collector boundary: thin read-only fetches per
// resource type plus the activity-log pull. No decisions live here.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// NewConfig builds an SDK config for one scope. A non-empty accountID with a
// role name assumes arn:aws:iam::<account>:role/<role>; otherwise the
// caller's own credentials are used as-is.
func NewConfig(ctx context.Context, region, accountID, roleName string) (aws.Config, string, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, "", fmt.Errorf("unable to load SDK config: %w", err)
	}

	if accountID != "" && roleName != "" {
		roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), roleARN)
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	stsClient := sts.NewFromConfig(cfg)
	ident, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return aws.Config{}, "", fmt.Errorf("failed to get caller identity: %w", err)
	}

	return cfg, aws.ToString(ident.Account), nil
}
