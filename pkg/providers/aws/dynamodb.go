package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

func (c *Client) collectTables(ctx context.Context) ([]resource.Record, error) {
	var out []resource.Record
	paginator := dynamodb.NewListTablesPaginator(c.ddb, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		for _, name := range page.TableNames {
			rec, err := c.tableRecord(ctx, name)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (c *Client) tableRecord(ctx context.Context, name string) (resource.Record, error) {
	desc, err := c.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return resource.Record{}, fmt.Errorf("failed to describe table %s: %w", name, err)
	}
	table := desc.Table

	billingMode := "PROVISIONED"
	if table.BillingModeSummary != nil {
		billingMode = string(table.BillingModeSummary.BillingMode)
	}
	var readCap, writeCap int64
	if table.ProvisionedThroughput != nil {
		readCap = aws.ToInt64(table.ProvisionedThroughput.ReadCapacityUnits)
		writeCap = aws.ToInt64(table.ProvisionedThroughput.WriteCapacityUnits)
	}
	streamEnabled := false
	if table.StreamSpecification != nil {
		streamEnabled = aws.ToBool(table.StreamSpecification.StreamEnabled)
	}

	fields := map[string]resource.Value{
		"status":         resource.String(string(table.TableStatus)),
		"billing_mode":   resource.String(billingMode),
		"read_capacity":  resource.Int(readCap),
		"write_capacity": resource.Int(writeCap),
		"stream_enabled": resource.Bool(streamEnabled),
		"item_count":     resource.Int(aws.ToInt64(table.ItemCount)),
		"tags":           resource.Map(c.tableTags(ctx, aws.ToString(table.TableArn))),
	}
	if table.CreationDateTime != nil {
		fields["create_time"] = resource.Time(*table.CreationDateTime)
	}

	return resource.Record{
		Type:       resource.TypeDynamoTable,
		AccountID:  c.accountID,
		Region:     c.region,
		NaturalKey: name,
		Fields:     fields,
		ObservedAt: time.Now(),
	}, nil
}

func (c *Client) tableTags(ctx context.Context, arn string) map[string]string {
	out, err := c.ddb.ListTagsOfResource(ctx, &dynamodb.ListTagsOfResourceInput{ResourceArn: aws.String(arn)})
	if err != nil {
		return map[string]string{}
	}
	tags := make(map[string]string, len(out.Tags))
	for _, t := range out.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}
