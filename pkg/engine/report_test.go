package engine

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/DrSkyle/cloudledger/pkg/reconcile"
	"github.com/DrSkyle/cloudledger/pkg/resource"
)

func TestReport_PlainGolden(t *testing.T) {
	report := &Report{
		RunID:          "run-fixed",
		EventsIngested: 3,
		PerType: map[resource.Type]reconcile.Result{
			resource.TypeS3Bucket:    {Processed: 5, Updated: 2, Changes: 3},
			resource.TypeEC2Instance: {Processed: 2, Inserted: 1, Updated: 1, Changes: 2},
		},
		FailedScopes: []string{"222222222222:us-west-2"},
	}

	g := goldie.New(t)
	g.Assert(t, "run_report", []byte(report.Plain()))
}

func TestReport_Partial(t *testing.T) {
	clean := &Report{}
	if clean.Partial() {
		t.Error("empty report marked partial")
	}

	failed := &Report{FailedScopes: []string{"caller:us-east-1"}}
	if !failed.Partial() {
		t.Error("failed scope not marked partial")
	}
	failedType := &Report{FailedTypes: []string{"s3_bucket"}}
	if !failedType.Partial() {
		t.Error("failed type not marked partial")
	}
}

func TestReport_RenderMentionsPartial(t *testing.T) {
	report := &Report{
		RunID:        "run-1",
		FailedScopes: []string{"caller:us-east-1"},
	}
	out := report.Render()
	if !strings.Contains(out, "partial run") {
		t.Error("styled render does not flag the partial run")
	}
}
