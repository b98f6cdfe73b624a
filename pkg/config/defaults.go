package config

import "github.com/DrSkyle/cloudledger/pkg/resource"

// Defaults.
const (
	DefaultRegion        = "us-east-1"
	DefaultLookbackHours = 24
	DefaultRetentionDays = 7
	DefaultConcurrency   = 8
)

// DefaultTypes returns the resource types processed when none are named on
// the command line.
func DefaultTypes() []resource.Type {
	return []resource.Type{
		resource.TypeEC2Instance,
		resource.TypeSecurityGroup,
		resource.TypeRDSInstance,
		resource.TypeS3Bucket,
	}
}
