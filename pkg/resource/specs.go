package resource

// Spec is the per-type schema descriptor driving the generic reconciliation
// engine: which fields are tracked, which are identity, which compare
// order-free, which are tag maps or formatted numerics, and which activity
// actions plausibly cause a given field to change.
type Spec struct {
	Type Type

	// Fields lists every tracked field name, identity fields excluded.
	Fields []string

	// OrderInsensitive marks adjacency-list fields (security group ids,
	// subnet ids, route targets) compared as sets.
	OrderInsensitive map[string]bool

	// TagFields compare as key/value maps after stripping platform-injected
	// provenance keys.
	TagFields map[string]bool

	// NumericFields carry formatting noise (percent signs, padding) and
	// compare as floats.
	NumericFields map[string]bool

	// FieldActions maps a field to the activity-log action names that
	// plausibly change it. Fields without an entry fall back to any event on
	// the resource.
	FieldActions map[string][]string
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

var registry = map[Type]Spec{
	TypeEC2Instance: {
		Type: TypeEC2Instance,
		Fields: []string{
			"state", "instance_type", "image_id", "vpc_id", "subnet_id",
			"security_group_ids", "private_ip", "public_ip", "iam_profile",
			"monitoring", "tags", "launch_time",
		},
		OrderInsensitive: set("security_group_ids"),
		TagFields:        set("tags"),
		FieldActions: map[string][]string{
			"state":              {"StartInstances", "StopInstances", "RebootInstances", "TerminateInstances"},
			"instance_type":      {"ModifyInstanceAttribute"},
			"security_group_ids": {"ModifyInstanceAttribute", "ModifyNetworkInterfaceAttribute"},
			"tags":               {"CreateTags", "DeleteTags"},
			"iam_profile":        {"AssociateIamInstanceProfile", "ReplaceIamInstanceProfileAssociation", "DisassociateIamInstanceProfile"},
			"monitoring":         {"MonitorInstances", "UnmonitorInstances"},
		},
	},
	TypeSecurityGroup: {
		Type: TypeSecurityGroup,
		Fields: []string{
			"group_name", "description", "vpc_id", "ingress_rules",
			"egress_rules", "tags",
		},
		TagFields: set("tags"),
		FieldActions: map[string][]string{
			"ingress_rules": {"AuthorizeSecurityGroupIngress", "RevokeSecurityGroupIngress", "ModifySecurityGroupRules"},
			"egress_rules":  {"AuthorizeSecurityGroupEgress", "RevokeSecurityGroupEgress", "ModifySecurityGroupRules"},
			"tags":          {"CreateTags", "DeleteTags"},
		},
	},
	TypeEBSVolume: {
		Type: TypeEBSVolume,
		Fields: []string{
			"state", "size_gb", "volume_type", "iops", "encrypted",
			"attached_instance", "tags", "create_time",
		},
		TagFields:     set("tags"),
		NumericFields: set("size_gb", "iops"),
		FieldActions: map[string][]string{
			"size_gb":           {"ModifyVolume"},
			"volume_type":       {"ModifyVolume"},
			"iops":              {"ModifyVolume"},
			"attached_instance": {"AttachVolume", "DetachVolume"},
			"tags":              {"CreateTags", "DeleteTags"},
		},
	},
	TypeRDSInstance: {
		Type: TypeRDSInstance,
		Fields: []string{
			"status", "engine", "engine_version", "instance_class",
			"allocated_storage", "multi_az", "publicly_accessible",
			"security_group_ids", "backup_retention", "tags", "create_time",
		},
		OrderInsensitive: set("security_group_ids"),
		TagFields:        set("tags"),
		NumericFields:    set("allocated_storage", "backup_retention"),
		FieldActions: map[string][]string{
			"status":             {"StartDBInstance", "StopDBInstance", "RebootDBInstance", "DeleteDBInstance"},
			"instance_class":     {"ModifyDBInstance"},
			"engine_version":     {"ModifyDBInstance"},
			"allocated_storage":  {"ModifyDBInstance"},
			"multi_az":           {"ModifyDBInstance"},
			"security_group_ids": {"ModifyDBInstance"},
			"backup_retention":   {"ModifyDBInstance"},
			"tags":               {"AddTagsToResource", "RemoveTagsFromResource"},
		},
	},
	TypeS3Bucket: {
		Type: TypeS3Bucket,
		Fields: []string{
			"versioning", "encryption", "public_access_block", "policy",
			"lifecycle_rules", "tags", "create_time",
		},
		TagFields: set("tags"),
		FieldActions: map[string][]string{
			"versioning":          {"PutBucketVersioning"},
			"encryption":          {"PutBucketEncryption", "DeleteBucketEncryption"},
			"public_access_block": {"PutPublicAccessBlock", "DeletePublicAccessBlock"},
			"policy":              {"PutBucketPolicy", "DeleteBucketPolicy"},
			"lifecycle_rules":     {"PutBucketLifecycleConfiguration", "DeleteBucketLifecycle"},
			"tags":                {"PutBucketTagging", "DeleteBucketTagging"},
		},
	},
	TypeLambda: {
		Type: TypeLambda,
		Fields: []string{
			"runtime", "handler", "memory_mb", "timeout_sec", "role_arn",
			"environment", "code_sha", "layers", "tags", "last_modified",
		},
		OrderInsensitive: set("layers"),
		TagFields:        set("tags"),
		NumericFields:    set("memory_mb", "timeout_sec"),
		FieldActions: map[string][]string{
			"runtime":     {"UpdateFunctionConfiguration20150331v2"},
			"handler":     {"UpdateFunctionConfiguration20150331v2"},
			"memory_mb":   {"UpdateFunctionConfiguration20150331v2"},
			"timeout_sec": {"UpdateFunctionConfiguration20150331v2"},
			"role_arn":    {"UpdateFunctionConfiguration20150331v2"},
			"environment": {"UpdateFunctionConfiguration20150331v2"},
			"code_sha":    {"UpdateFunctionCode20150331v2"},
			"layers":      {"UpdateFunctionConfiguration20150331v2"},
			"tags":        {"TagResource20170331v2", "UntagResource20170331v2"},
		},
	},
	TypeLoadBalancer: {
		Type: TypeLoadBalancer,
		Fields: []string{
			"state", "scheme", "lb_type", "vpc_id", "subnet_ids",
			"security_group_ids", "dns_name", "tags", "create_time",
		},
		OrderInsensitive: set("subnet_ids", "security_group_ids"),
		TagFields:        set("tags"),
		FieldActions: map[string][]string{
			"subnet_ids":         {"SetSubnets"},
			"security_group_ids": {"SetSecurityGroups"},
			"tags":               {"AddTags", "RemoveTags"},
		},
	},
	TypeDynamoTable: {
		Type: TypeDynamoTable,
		Fields: []string{
			"status", "billing_mode", "read_capacity", "write_capacity",
			"stream_enabled", "item_count", "tags", "create_time",
		},
		TagFields:     set("tags"),
		NumericFields: set("read_capacity", "write_capacity", "item_count"),
		FieldActions: map[string][]string{
			"billing_mode":   {"UpdateTable"},
			"read_capacity":  {"UpdateTable"},
			"write_capacity": {"UpdateTable"},
			"stream_enabled": {"UpdateTable"},
			"tags":           {"TagResource", "UntagResource"},
		},
	},
}

// SpecFor returns the schema descriptor for a resource type.
func SpecFor(t Type) (Spec, bool) {
	s, ok := registry[t]
	return s, ok
}

// AllTypes returns every registered resource type in stable order.
func AllTypes() []Type {
	return []Type{
		TypeEC2Instance, TypeSecurityGroup, TypeEBSVolume, TypeRDSInstance,
		TypeS3Bucket, TypeLambda, TypeLoadBalancer, TypeDynamoTable,
	}
}

// ParseType resolves a CLI type name, returning false for unknown names.
func ParseType(name string) (Type, bool) {
	t := Type(name)
	_, ok := registry[t]
	return t, ok
}
