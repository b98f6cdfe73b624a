package trail

import (
	"time"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

// ActorUnknown is recorded when no identity could be extracted at all.
const ActorUnknown = "system"

// ResourceUnknown marks events whose target resource could not be resolved.
const ResourceUnknown = "unknown"

// ActivityEvent is one normalized platform audit-log entry. Immutable once
// ingested; idempotent by ID.
type ActivityEvent struct {
	ID           string
	Time         time.Time
	Action       string
	Source       string
	Actor        string
	ResourceType resource.Type
	ResourceID   string
	Summary      map[string]string
	AccountID    string
	Region       string
}

// RawEvent is the decoded wire form of a single audit record, before the
// allow-list and extraction heuristics run.
type RawEvent struct {
	EventID           string         `json:"eventID"`
	EventName         string         `json:"eventName"`
	EventSource       string         `json:"eventSource"`
	EventTime         time.Time      `json:"eventTime"`
	AwsRegion         string         `json:"awsRegion"`
	RecipientAccount  string         `json:"recipientAccountId"`
	UserIdentity      map[string]any `json:"userIdentity"`
	RequestParameters map[string]any `json:"requestParameters"`
	ResponseElements  map[string]any `json:"responseElements"`
	Resources         []RawResource  `json:"resources"`
	ErrorCode         string         `json:"errorCode,omitempty"`
}

// RawResource is an entry of the event's first-class affected-resources set.
type RawResource struct {
	ResourceType string `json:"resourceType"`
	ResourceName string `json:"resourceName"`
}
