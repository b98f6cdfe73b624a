package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

func (c *Client) collectInstances(ctx context.Context) ([]resource.Record, error) {
	var out []resource.Record
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				out = append(out, c.instanceRecord(inst))
			}
		}
	}
	return out, nil
}

func (c *Client) instanceRecord(inst ec2types.Instance) resource.Record {
	var sgIDs []string
	for _, sg := range inst.SecurityGroups {
		sgIDs = append(sgIDs, aws.ToString(sg.GroupId))
	}

	fields := map[string]resource.Value{
		"instance_type":      resource.String(string(inst.InstanceType)),
		"image_id":           resource.String(aws.ToString(inst.ImageId)),
		"vpc_id":             resource.String(aws.ToString(inst.VpcId)),
		"subnet_id":          resource.String(aws.ToString(inst.SubnetId)),
		"security_group_ids": resource.Set(sgIDs),
		"private_ip":         resource.String(aws.ToString(inst.PrivateIpAddress)),
		"public_ip":          resource.String(aws.ToString(inst.PublicIpAddress)),
		"tags":               resource.Map(tagMap(inst.Tags)),
	}
	if inst.State != nil {
		fields["state"] = resource.String(string(inst.State.Name))
	}
	if inst.IamInstanceProfile != nil {
		fields["iam_profile"] = resource.String(aws.ToString(inst.IamInstanceProfile.Arn))
	}
	if inst.Monitoring != nil {
		fields["monitoring"] = resource.String(string(inst.Monitoring.State))
	}
	if inst.LaunchTime != nil {
		fields["launch_time"] = resource.Time(*inst.LaunchTime)
	}

	return resource.Record{
		Type:       resource.TypeEC2Instance,
		AccountID:  c.accountID,
		Region:     c.region,
		NaturalKey: aws.ToString(inst.InstanceId),
		Fields:     fields,
		ObservedAt: time.Now(),
	}
}

func (c *Client) collectSecurityGroups(ctx context.Context) ([]resource.Record, error) {
	var out []resource.Record
	paginator := ec2.NewDescribeSecurityGroupsPaginator(c.ec2, &ec2.DescribeSecurityGroupsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}
		for _, sg := range page.SecurityGroups {
			out = append(out, resource.Record{
				Type:       resource.TypeSecurityGroup,
				AccountID:  c.accountID,
				Region:     c.region,
				NaturalKey: aws.ToString(sg.GroupId),
				Fields: map[string]resource.Value{
					"group_name":    resource.String(aws.ToString(sg.GroupName)),
					"description":   resource.String(aws.ToString(sg.Description)),
					"vpc_id":        resource.String(aws.ToString(sg.VpcId)),
					"ingress_rules": resource.String(marshalRules(sg.IpPermissions)),
					"egress_rules":  resource.String(marshalRules(sg.IpPermissionsEgress)),
					"tags":          resource.Map(tagMap(sg.Tags)),
				},
				ObservedAt: time.Now(),
			})
		}
	}
	return out, nil
}

func (c *Client) collectVolumes(ctx context.Context) ([]resource.Record, error) {
	var out []resource.Record
	paginator := ec2.NewDescribeVolumesPaginator(c.ec2, &ec2.DescribeVolumesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe volumes: %w", err)
		}
		for _, vol := range page.Volumes {
			fields := map[string]resource.Value{
				"state":       resource.String(string(vol.State)),
				"size_gb":     resource.Int(int64(aws.ToInt32(vol.Size))),
				"volume_type": resource.String(string(vol.VolumeType)),
				"iops":        resource.Int(int64(aws.ToInt32(vol.Iops))),
				"encrypted":   resource.Bool(aws.ToBool(vol.Encrypted)),
				"tags":        resource.Map(tagMap(vol.Tags)),
			}
			if len(vol.Attachments) > 0 {
				fields["attached_instance"] = resource.String(aws.ToString(vol.Attachments[0].InstanceId))
			}
			if vol.CreateTime != nil {
				fields["create_time"] = resource.Time(*vol.CreateTime)
			}
			out = append(out, resource.Record{
				Type:       resource.TypeEBSVolume,
				AccountID:  c.accountID,
				Region:     c.region,
				NaturalKey: aws.ToString(vol.VolumeId),
				Fields:     fields,
				ObservedAt: time.Now(),
			})
		}
	}
	return out, nil
}

func marshalRules(perms []ec2types.IpPermission) string {
	if len(perms) == 0 {
		return "[]"
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func tagMap(tags []ec2types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}
