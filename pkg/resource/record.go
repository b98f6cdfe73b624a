package resource

import (
	"fmt"
	"time"
)

// Type identifies a tracked resource category. One table per type.
type Type string

const (
	TypeEC2Instance   Type = "ec2_instance"
	TypeSecurityGroup Type = "security_group"
	TypeEBSVolume     Type = "ebs_volume"
	TypeRDSInstance   Type = "rds_instance"
	TypeS3Bucket      Type = "s3_bucket"
	TypeLambda        Type = "lambda_function"
	TypeLoadBalancer  Type = "load_balancer"
	TypeDynamoTable   Type = "dynamodb_table"
)

// Record is one observed snapshot of a tracked cloud resource.
type Record struct {
	Type       Type
	AccountID  string
	Region     string
	NaturalKey string // instance id, bucket name, function name, ...
	Fields     map[string]Value
	ObservedAt time.Time
}

// Identity returns the composite key a record is stored under. A change of
// account id or natural key always produces a different identity, never an
// in-place mutation.
func (r Record) Identity() string {
	return fmt.Sprintf("%s|%s|%s", r.Type, r.AccountID, r.NaturalKey)
}
