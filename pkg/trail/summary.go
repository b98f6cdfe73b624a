package trail

import (
	"fmt"
	"strings"
)

// summaryVerbs maps action-name prefixes to a change category. Stored for
// human inspection only; the classifier never reads it.
var summaryVerbs = []struct {
	prefix   string
	category string
}{
	{"Create", "create"},
	{"Run", "create"},
	{"Delete", "delete"},
	{"Terminate", "delete"},
	{"Modify", "modify"},
	{"Update", "modify"},
	{"Put", "modify"},
	{"Set", "modify"},
	{"Start", "state"},
	{"Stop", "state"},
	{"Reboot", "state"},
	{"Attach", "attach"},
	{"Detach", "attach"},
	{"Authorize", "rules"},
	{"Revoke", "rules"},
	{"Tag", "tags"},
	{"Untag", "tags"},
	{"AddTags", "tags"},
	{"RemoveTags", "tags"},
}

// salientParams are request parameters worth surfacing per action.
var salientParams = map[string][]string{
	"RunInstances":            {"instanceType", "imageId"},
	"ModifyInstanceAttribute": {"attribute", "instanceType"},
	"ModifyVolume":            {"size", "volumeType", "iops"},
	"ModifyDBInstance":        {"dBInstanceClass", "allocatedStorage", "multiAZ"},
	"UpdateTable":             {"billingMode"},
	"PutBucketVersioning":     {"versioningConfiguration"},
	"SetSubnets":              {"subnets"},
	"SetSecurityGroups":       {"securityGroups"},
}

// summarize builds the small structured description stored alongside the
// event. Unmatched actions fall back to {"action": <lowercased name>}.
func summarize(raw RawEvent) map[string]string {
	out := map[string]string{"action": strings.ToLower(raw.EventName)}

	for _, verb := range summaryVerbs {
		if strings.HasPrefix(raw.EventName, verb.prefix) {
			out["category"] = verb.category
			break
		}
	}
	if raw.ErrorCode != "" {
		out["error"] = raw.ErrorCode
	}

	for _, key := range salientParams[raw.EventName] {
		if v, ok := raw.RequestParameters[key]; ok {
			out[key] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
