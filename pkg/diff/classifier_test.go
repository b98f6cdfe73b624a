package diff

import (
	"testing"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

func ec2Spec(t *testing.T) resource.Spec {
	t.Helper()
	spec, ok := resource.SpecFor(resource.TypeEC2Instance)
	if !ok {
		t.Fatal("missing ec2_instance spec")
	}
	return spec
}

func TestSignificant_Reflexivity(t *testing.T) {
	spec := ec2Spec(t)

	values := []string{"running", "", "42", "true", `["a","b"]`, `{"k":"v"}`}
	for _, v := range values {
		if Significant(spec, "state", v, v) {
			t.Errorf("identical value %q classified as significant", v)
		}
	}

	// Whitespace drift counts as identical.
	if Significant(spec, "state", "running", "  running  ") {
		t.Error("trimmed-equal values classified as significant")
	}
}

func TestSignificant_EmptyRepresentations(t *testing.T) {
	spec := ec2Spec(t)

	cases := []struct{ old, new string }{
		{"[]", "{}"},
		{"", "null"},
		{"none", "None"},
		{"{}", ""},
	}
	for _, c := range cases {
		if Significant(spec, "policy", c.old, c.new) {
			t.Errorf("empty-ish pair (%q, %q) classified as significant", c.old, c.new)
		}
	}

	// Empty to non-empty is real.
	if !Significant(spec, "policy", "[]", `["sg-1"]`) {
		t.Error("empty -> populated not classified as significant")
	}
}

func TestSignificant_BooleanCasing(t *testing.T) {
	spec := ec2Spec(t)

	if Significant(spec, "monitoring", "True", "true") {
		t.Error("boolean casing drift classified as significant")
	}
	if Significant(spec, "monitoring", "TRUE", "1") {
		t.Error("equivalent truth values classified as significant")
	}
	if !Significant(spec, "monitoring", "true", "false") {
		t.Error("boolean flip not classified as significant")
	}
}

func TestSignificant_IgnoredFields(t *testing.T) {
	spec := ec2Spec(t)

	for _, field := range []string{"updated_at", "account_id", "region", "request_id"} {
		if Significant(spec, field, "a", "b") {
			t.Errorf("bookkeeping field %q classified as significant", field)
		}
	}
}

func TestSignificant_TagMaps(t *testing.T) {
	spec := ec2Spec(t)

	// 1. Platform-injected keys are stripped before comparing.
	old := `{"k":"v","aws:cloudformation:stack-id":"x"}`
	updated := `{"k":"v"}`
	if Significant(spec, "tags", old, updated) {
		t.Error("auto-key removal classified as significant")
	}

	// 2. A real tag edit survives the stripping.
	if !Significant(spec, "tags", `{"env":"dev"}`, `{"env":"prod"}`) {
		t.Error("tag value change not classified as significant")
	}

	// 3. Legacy k=v serialization on one side.
	if Significant(spec, "tags", "env=dev,team=core", `{"env":"dev","team":"core"}`) {
		t.Error("legacy tag serialization drift classified as significant")
	}
}

func TestSignificant_JSONObjects(t *testing.T) {
	spec := ec2Spec(t)

	// Key order and whitespace are noise.
	if Significant(spec, "policy", `{"a":1,"b":2}`, `{ "b": 2, "a": 1 }`) {
		t.Error("reordered JSON object classified as significant")
	}
	if !Significant(spec, "policy", `{"a":1}`, `{"a":2}`) {
		t.Error("changed JSON object not classified as significant")
	}
}

func TestSignificant_OrderInsensitiveLists(t *testing.T) {
	spec := ec2Spec(t)

	// 1. Permutation invariance.
	if Significant(spec, "security_group_ids", `["a","b"]`, `["b","a"]`) {
		t.Error("permuted list classified as significant")
	}

	// 2. Representation drift: JSON array vs set literal vs CSV.
	if Significant(spec, "security_group_ids", `["sg-1","sg-2"]`, "{sg-2, sg-1}") {
		t.Error("set-literal spelling classified as significant")
	}
	if Significant(spec, "security_group_ids", "sg-1,sg-2", `["sg-2","sg-1"]`) {
		t.Error("csv spelling classified as significant")
	}

	// 3. Membership change is real.
	if !Significant(spec, "security_group_ids", `["sg-1"]`, `["sg-1","sg-2"]`) {
		t.Error("added list member not classified as significant")
	}
}

func TestSignificant_Timestamps(t *testing.T) {
	spec := ec2Spec(t)

	if Significant(spec, "launch_time", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00.000000+00:00") {
		t.Error("sub-second representation drift classified as significant")
	}
	if !Significant(spec, "launch_time", "2024-01-01T00:00:00Z", "2024-01-01T00:00:05Z") {
		t.Error("5-second timestamp shift not classified as significant")
	}

	// No zone defaults to UTC.
	if Significant(spec, "create_time", "2024-01-01T00:00:00", "2024-01-01T00:00:00Z") {
		t.Error("zoneless timestamp drift classified as significant")
	}
}

func TestSignificant_NumericFormatting(t *testing.T) {
	spec, ok := resource.SpecFor(resource.TypeEBSVolume)
	if !ok {
		t.Fatal("missing ebs_volume spec")
	}

	if Significant(spec, "size_gb", "100", "100.0") {
		t.Error("numeric formatting drift classified as significant")
	}
	if !Significant(spec, "size_gb", "100", "200") {
		t.Error("doubled volume size not classified as significant")
	}
}

func TestSignificant_DefaultStringCompare(t *testing.T) {
	spec := ec2Spec(t)

	if !Significant(spec, "state", "running", "stopped") {
		t.Error("state transition not classified as significant")
	}
	if !Significant(spec, "instance_type", "t3.medium", "t3.large") {
		t.Error("instance type change not classified as significant")
	}
}
