// Package trail turns raw platform audit records into canonical
// ActivityEvents. Only actions on the tracked allow-list survive; everything
// else is discarded before it reaches storage, which bounds log growth.
package trail

import (
	"strings"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

// actorMaxLen bounds stored actor strings. Truncation keeps the suffix:
// role/session descriptors end in the session name, which is the part an
// operator actually recognizes.
const actorMaxLen = 64

// trackedActions is the allow-list: action name -> the resource type it
// operates on. Events for any other action are dropped, not stored.
var trackedActions = map[string]resource.Type{
	// EC2 instances
	"RunInstances":                         resource.TypeEC2Instance,
	"StartInstances":                       resource.TypeEC2Instance,
	"StopInstances":                        resource.TypeEC2Instance,
	"RebootInstances":                      resource.TypeEC2Instance,
	"TerminateInstances":                   resource.TypeEC2Instance,
	"ModifyInstanceAttribute":              resource.TypeEC2Instance,
	"AssociateIamInstanceProfile":          resource.TypeEC2Instance,
	"ReplaceIamInstanceProfileAssociation": resource.TypeEC2Instance,
	"DisassociateIamInstanceProfile":       resource.TypeEC2Instance,
	"MonitorInstances":                     resource.TypeEC2Instance,
	"UnmonitorInstances":                   resource.TypeEC2Instance,
	"CreateTags":                           resource.TypeEC2Instance,
	"DeleteTags":                           resource.TypeEC2Instance,

	// Security groups
	"CreateSecurityGroup":           resource.TypeSecurityGroup,
	"DeleteSecurityGroup":           resource.TypeSecurityGroup,
	"AuthorizeSecurityGroupIngress": resource.TypeSecurityGroup,
	"RevokeSecurityGroupIngress":    resource.TypeSecurityGroup,
	"AuthorizeSecurityGroupEgress":  resource.TypeSecurityGroup,
	"RevokeSecurityGroupEgress":     resource.TypeSecurityGroup,
	"ModifySecurityGroupRules":      resource.TypeSecurityGroup,

	// EBS volumes
	"CreateVolume": resource.TypeEBSVolume,
	"DeleteVolume": resource.TypeEBSVolume,
	"ModifyVolume": resource.TypeEBSVolume,
	"AttachVolume": resource.TypeEBSVolume,
	"DetachVolume": resource.TypeEBSVolume,

	// RDS
	"CreateDBInstance":       resource.TypeRDSInstance,
	"DeleteDBInstance":       resource.TypeRDSInstance,
	"ModifyDBInstance":       resource.TypeRDSInstance,
	"StartDBInstance":        resource.TypeRDSInstance,
	"StopDBInstance":         resource.TypeRDSInstance,
	"RebootDBInstance":       resource.TypeRDSInstance,
	"AddTagsToResource":      resource.TypeRDSInstance,
	"RemoveTagsFromResource": resource.TypeRDSInstance,

	// S3
	"CreateBucket":                    resource.TypeS3Bucket,
	"DeleteBucket":                    resource.TypeS3Bucket,
	"PutBucketVersioning":             resource.TypeS3Bucket,
	"PutBucketEncryption":             resource.TypeS3Bucket,
	"DeleteBucketEncryption":          resource.TypeS3Bucket,
	"PutPublicAccessBlock":            resource.TypeS3Bucket,
	"DeletePublicAccessBlock":         resource.TypeS3Bucket,
	"PutBucketPolicy":                 resource.TypeS3Bucket,
	"DeleteBucketPolicy":              resource.TypeS3Bucket,
	"PutBucketLifecycleConfiguration": resource.TypeS3Bucket,
	"DeleteBucketLifecycle":           resource.TypeS3Bucket,
	"PutBucketTagging":                resource.TypeS3Bucket,
	"DeleteBucketTagging":             resource.TypeS3Bucket,

	// Lambda
	"CreateFunction20150331":                resource.TypeLambda,
	"DeleteFunction20150331":                resource.TypeLambda,
	"UpdateFunctionConfiguration20150331v2": resource.TypeLambda,
	"UpdateFunctionCode20150331v2":          resource.TypeLambda,
	"TagResource20170331v2":                 resource.TypeLambda,
	"UntagResource20170331v2":               resource.TypeLambda,

	// ELBv2
	"CreateLoadBalancer": resource.TypeLoadBalancer,
	"DeleteLoadBalancer": resource.TypeLoadBalancer,
	"SetSubnets":         resource.TypeLoadBalancer,
	"SetSecurityGroups":  resource.TypeLoadBalancer,
	"AddTags":            resource.TypeLoadBalancer,
	"RemoveTags":         resource.TypeLoadBalancer,

	// DynamoDB
	"CreateTable":   resource.TypeDynamoTable,
	"DeleteTable":   resource.TypeDynamoTable,
	"UpdateTable":   resource.TypeDynamoTable,
	"TagResource":   resource.TypeDynamoTable,
	"UntagResource": resource.TypeDynamoTable,
}

// sourceTypes resolves ambiguous actions by event source when the action
// itself is shared across services.
var sourceTypes = map[string]resource.Type{
	"ec2.amazonaws.com":                  resource.TypeEC2Instance,
	"rds.amazonaws.com":                  resource.TypeRDSInstance,
	"s3.amazonaws.com":                   resource.TypeS3Bucket,
	"lambda.amazonaws.com":               resource.TypeLambda,
	"elasticloadbalancing.amazonaws.com": resource.TypeLoadBalancer,
	"dynamodb.amazonaws.com":             resource.TypeDynamoTable,
}

// primaryIDFields lists the well-known singular identifier parameters per
// resource type, checked first in the request and then in the response.
var primaryIDFields = map[resource.Type][]string{
	resource.TypeEC2Instance:   {"instanceId"},
	resource.TypeSecurityGroup: {"groupId"},
	resource.TypeEBSVolume:     {"volumeId"},
	resource.TypeRDSInstance:   {"dBInstanceIdentifier", "dbInstanceIdentifier"},
	resource.TypeS3Bucket:      {"bucketName"},
	resource.TypeLambda:        {"functionName"},
	resource.TypeLoadBalancer:  {"loadBalancerArn", "loadBalancerName"},
	resource.TypeDynamoTable:   {"tableName"},
}

// nonResourceKeys are id-shaped parameter names that never identify the
// target resource. Excluded from the generic fallback scan.
var nonResourceKeys = map[string]bool{
	"requestId":     true,
	"eventId":       true,
	"principalId":   true,
	"clientToken":   true,
	"ownerId":       true,
	"accountId":     true,
	"reservationId": true,
}

// Normalize applies the allow-list and extraction heuristics to one raw
// record. The second return is false when the event is untracked and must be
// discarded.
func Normalize(raw RawEvent) (ActivityEvent, bool) {
	rtype, ok := trackedActions[raw.EventName]
	if !ok {
		return ActivityEvent{}, false
	}
	// Shared action names (TagResource and friends) trust the source over
	// the static table.
	if src, known := sourceTypes[raw.EventSource]; known && src != rtype {
		if actionIsShared(raw.EventName) {
			rtype = src
		}
	}

	ev := ActivityEvent{
		ID:           raw.EventID,
		Time:         raw.EventTime.UTC(),
		Action:       raw.EventName,
		Source:       raw.EventSource,
		Actor:        extractActor(raw.UserIdentity),
		ResourceType: rtype,
		ResourceID:   extractResourceID(rtype, raw),
		Summary:      summarize(raw),
		AccountID:    raw.RecipientAccount,
		Region:       raw.AwsRegion,
	}
	return ev, true
}

func actionIsShared(name string) bool {
	switch name {
	case "TagResource", "UntagResource", "AddTags", "RemoveTags", "CreateTags", "DeleteTags":
		return true
	}
	return false
}

// extractResourceID runs the prioritized identifier search. Different action
// shapes expose the target id in different places, so precision degrades
// gracefully down the chain instead of failing outright.
func extractResourceID(rtype resource.Type, raw RawEvent) string {
	fields := primaryIDFields[rtype]

	// 1. Well-known singular fields in the request parameters.
	if id := lookupString(raw.RequestParameters, fields); id != "" {
		return id
	}

	// 2. Same fields in the response payload.
	if id := lookupString(raw.ResponseElements, fields); id != "" {
		return id
	}

	// 3. First-class affected-resource sets (instancesSet, resourcesSet,
	// the top-level resources list).
	if id := scanItemSets(raw.RequestParameters, fields); id != "" {
		return id
	}
	if id := scanItemSets(raw.ResponseElements, fields); id != "" {
		return id
	}
	for _, res := range raw.Resources {
		if res.ResourceName != "" {
			return res.ResourceName
		}
	}

	// 4. Generic fallback: any id-shaped string key that is not a known
	// non-resource key.
	if id := scanIDShapedKeys(raw.RequestParameters); id != "" {
		return id
	}
	if id := scanIDShapedKeys(raw.ResponseElements); id != "" {
		return id
	}

	// 5. Give up explicitly.
	return ResourceUnknown
}

func lookupString(params map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := params[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// scanItemSets walks one level of nested set structures ({"items": [...]})
// and returns the first entry's primary id.
func scanItemSets(params map[string]any, fields []string) string {
	for _, v := range params {
		nested, ok := v.(map[string]any)
		if !ok {
			continue
		}
		items, ok := nested["items"].([]any)
		if !ok || len(items) == 0 {
			continue
		}
		first, ok := items[0].(map[string]any)
		if !ok {
			continue
		}
		if id := lookupString(first, fields); id != "" {
			return id
		}
	}
	return ""
}

func scanIDShapedKeys(params map[string]any) string {
	for key, v := range params {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if nonResourceKeys[key] {
			continue
		}
		if strings.HasSuffix(key, "Id") || strings.HasSuffix(key, "Name") ||
			strings.Contains(key, "Identifier") {
			return s
		}
	}
	return ""
}

// extractActor resolves a human-recognizable actor string from the identity
// block. Fallback chain: explicit user name, last path segment of the ARN,
// session segment of the principal id, identity type, "system".
func extractActor(identity map[string]any) string {
	if identity == nil {
		return ActorUnknown
	}
	if name, ok := identity["userName"].(string); ok && name != "" {
		return truncateActor(name)
	}
	if arn, ok := identity["arn"].(string); ok && arn != "" {
		if idx := strings.LastIndex(arn, "/"); idx >= 0 && idx+1 < len(arn) {
			return truncateActor(arn[idx+1:])
		}
		return truncateActor(arn)
	}
	if pid, ok := identity["principalId"].(string); ok && pid != "" {
		parts := strings.Split(pid, ":")
		return truncateActor(parts[len(parts)-1])
	}
	if typ, ok := identity["type"].(string); ok && typ != "" {
		return truncateActor(typ)
	}
	return ActorUnknown
}

// truncateActor keeps the right-hand end of over-long identity strings.
func truncateActor(s string) string {
	if len(s) <= actorMaxLen {
		return s
	}
	return s[len(s)-actorMaxLen:]
}
