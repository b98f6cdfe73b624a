package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

func (c *Client) collectLoadBalancers(ctx context.Context) ([]resource.Record, error) {
	var out []resource.Record
	paginator := elasticloadbalancingv2.NewDescribeLoadBalancersPaginator(c.elb, &elasticloadbalancingv2.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe load balancers: %w", err)
		}

		var arns []string
		for _, lb := range page.LoadBalancers {
			arns = append(arns, aws.ToString(lb.LoadBalancerArn))
		}
		tagsByARN := c.loadBalancerTags(ctx, arns)

		for _, lb := range page.LoadBalancers {
			arn := aws.ToString(lb.LoadBalancerArn)
			out = append(out, c.loadBalancerRecord(lb, tagsByARN[arn]))
		}
	}
	return out, nil
}

func (c *Client) loadBalancerRecord(lb elbtypes.LoadBalancer, tags map[string]string) resource.Record {
	var subnets []string
	for _, az := range lb.AvailabilityZones {
		subnets = append(subnets, aws.ToString(az.SubnetId))
	}

	fields := map[string]resource.Value{
		"scheme":             resource.String(string(lb.Scheme)),
		"lb_type":            resource.String(string(lb.Type)),
		"vpc_id":             resource.String(aws.ToString(lb.VpcId)),
		"subnet_ids":         resource.Set(subnets),
		"security_group_ids": resource.Set(lb.SecurityGroups),
		"dns_name":           resource.String(aws.ToString(lb.DNSName)),
		"tags":               resource.Map(tags),
	}
	if lb.State != nil {
		fields["state"] = resource.String(string(lb.State.Code))
	}
	if lb.CreatedTime != nil {
		fields["create_time"] = resource.Time(*lb.CreatedTime)
	}

	return resource.Record{
		Type:       resource.TypeLoadBalancer,
		AccountID:  c.accountID,
		Region:     c.region,
		NaturalKey: aws.ToString(lb.LoadBalancerArn),
		Fields:     fields,
		ObservedAt: time.Now(),
	}
}

func (c *Client) loadBalancerTags(ctx context.Context, arns []string) map[string]map[string]string {
	out := map[string]map[string]string{}
	if len(arns) == 0 {
		return out
	}
	resp, err := c.elb.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{ResourceArns: arns})
	if err != nil {
		return out
	}
	for _, desc := range resp.TagDescriptions {
		tags := make(map[string]string, len(desc.Tags))
		for _, t := range desc.Tags {
			tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
		out[aws.ToString(desc.ResourceArn)] = tags
	}
	return out
}
