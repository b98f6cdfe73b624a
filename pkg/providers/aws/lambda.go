package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

func (c *Client) collectFunctions(ctx context.Context) ([]resource.Record, error) {
	var out []resource.Record
	paginator := lambda.NewListFunctionsPaginator(c.fn, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list functions: %w", err)
		}
		for _, fn := range page.Functions {
			var layers []string
			for _, layer := range fn.Layers {
				layers = append(layers, aws.ToString(layer.Arn))
			}
			env := map[string]string{}
			if fn.Environment != nil {
				env = fn.Environment.Variables
			}

			fields := map[string]resource.Value{
				"runtime":       resource.String(string(fn.Runtime)),
				"handler":       resource.String(aws.ToString(fn.Handler)),
				"memory_mb":     resource.Int(int64(aws.ToInt32(fn.MemorySize))),
				"timeout_sec":   resource.Int(int64(aws.ToInt32(fn.Timeout))),
				"role_arn":      resource.String(aws.ToString(fn.Role)),
				"environment":   resource.Map(env),
				"code_sha":      resource.String(aws.ToString(fn.CodeSha256)),
				"layers":        resource.Set(layers),
				"last_modified": resource.String(aws.ToString(fn.LastModified)),
				"tags":          resource.Map(c.functionTags(ctx, aws.ToString(fn.FunctionArn))),
			}

			out = append(out, resource.Record{
				Type:       resource.TypeLambda,
				AccountID:  c.accountID,
				Region:     c.region,
				NaturalKey: aws.ToString(fn.FunctionName),
				Fields:     fields,
				ObservedAt: time.Now(),
			})
		}
	}
	return out, nil
}

func (c *Client) functionTags(ctx context.Context, arn string) map[string]string {
	out, err := c.fn.ListTags(ctx, &lambda.ListTagsInput{Resource: aws.String(arn)})
	if err != nil {
		return map[string]string{}
	}
	return out.Tags
}
