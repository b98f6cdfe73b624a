package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

func (c *Client) collectDBInstances(ctx context.Context) ([]resource.Record, error) {
	var out []resource.Record
	paginator := rds.NewDescribeDBInstancesPaginator(c.rds, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe db instances: %w", err)
		}
		for _, db := range page.DBInstances {
			var sgIDs []string
			for _, sg := range db.VpcSecurityGroups {
				sgIDs = append(sgIDs, aws.ToString(sg.VpcSecurityGroupId))
			}
			tags := make(map[string]string, len(db.TagList))
			for _, t := range db.TagList {
				tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
			}

			fields := map[string]resource.Value{
				"status":              resource.String(aws.ToString(db.DBInstanceStatus)),
				"engine":              resource.String(aws.ToString(db.Engine)),
				"engine_version":      resource.String(aws.ToString(db.EngineVersion)),
				"instance_class":      resource.String(aws.ToString(db.DBInstanceClass)),
				"allocated_storage":   resource.Int(int64(aws.ToInt32(db.AllocatedStorage))),
				"multi_az":            resource.Bool(aws.ToBool(db.MultiAZ)),
				"publicly_accessible": resource.Bool(aws.ToBool(db.PubliclyAccessible)),
				"security_group_ids":  resource.Set(sgIDs),
				"backup_retention":    resource.Int(int64(aws.ToInt32(db.BackupRetentionPeriod))),
				"tags":                resource.Map(tags),
			}
			if db.InstanceCreateTime != nil {
				fields["create_time"] = resource.Time(*db.InstanceCreateTime)
			}

			out = append(out, resource.Record{
				Type:       resource.TypeRDSInstance,
				AccountID:  c.accountID,
				Region:     c.region,
				NaturalKey: aws.ToString(db.DBInstanceIdentifier),
				Fields:     fields,
				ObservedAt: time.Now(),
			})
		}
	}
	return out, nil
}
