package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"

	"github.com/DrSkyle/cloudledger/pkg/trail"
)

// FetchEvents pulls raw management events for this scope over the lookback
// window. Write-only filtering happens server-side; the action allow-list is
// the normalizer's job.
func (c *Client) FetchEvents(ctx context.Context, since time.Time) ([]trail.RawEvent, error) {
	endTime := time.Now()
	input := &cloudtrail.LookupEventsInput{
		LookupAttributes: []types.LookupAttribute{
			{
				AttributeKey:   types.LookupAttributeKeyReadOnly,
				AttributeValue: aws.String("false"),
			},
		},
		StartTime:  &since,
		EndTime:    &endTime,
		MaxResults: aws.Int32(50),
	}

	var out []trail.RawEvent
	paginator := cloudtrail.NewLookupEventsPaginator(c.trail, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to look up events: %w", err)
		}
		for _, ev := range page.Events {
			raw, err := decodeRawEvent(ev)
			if err != nil {
				// Malformed single records are skipped, never fatal.
				slog.Warn("Skipping malformed audit record",
					"event_id", aws.ToString(ev.EventId), "error", err)
				continue
			}
			out = append(out, raw)
		}
	}
	return out, nil
}

// decodeRawEvent parses the embedded CloudTrail JSON payload, falling back
// to the envelope fields when the payload is absent.
func decodeRawEvent(ev types.Event) (trail.RawEvent, error) {
	var raw trail.RawEvent
	payload := aws.ToString(ev.CloudTrailEvent)
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return trail.RawEvent{}, fmt.Errorf("failed to parse event payload: %w", err)
		}
	}

	if raw.EventID == "" {
		raw.EventID = aws.ToString(ev.EventId)
	}
	if raw.EventName == "" {
		raw.EventName = aws.ToString(ev.EventName)
	}
	if raw.EventSource == "" {
		raw.EventSource = aws.ToString(ev.EventSource)
	}
	if raw.EventTime.IsZero() && ev.EventTime != nil {
		raw.EventTime = *ev.EventTime
	}
	for _, res := range ev.Resources {
		raw.Resources = append(raw.Resources, trail.RawResource{
			ResourceType: aws.ToString(res.ResourceType),
			ResourceName: aws.ToString(res.ResourceName),
		})
	}
	return raw, nil
}
