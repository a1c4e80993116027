package mongodb

import (
	"fmt"
	"testing"
	"time"

	"jobtrack_worker/core/domain"
)

func TestReportDocumentRoundTrip(t *testing.T) {
	started := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	var results []domain.MessageResult
	for i := 0; i < 20; i++ {
		results = append(results, domain.MessageResult{
			MessageID: fmt.Sprintf("m%d@x", i),
			Outcome:   domain.OutcomeStaged,
			Type:      domain.TypeInterview,
			Source:    domain.SourceRule,
		})
	}
	summary := domain.Summarize("run-1", started, 20, results)

	doc, err := toDocument(&summary)
	if err != nil {
		t.Fatalf("toDocument: %v", err)
	}
	if !doc.IsCompressed {
		t.Errorf("results above threshold should be compressed")
	}

	got, err := fromDocument(doc, true)
	if err != nil {
		t.Fatalf("fromDocument: %v", err)
	}
	if got.Staged != 20 || got.ByType[domain.TypeInterview] != 20 {
		t.Errorf("counts lost: %+v", got)
	}
	if len(got.Results) != 20 || got.Results[19].MessageID != "m19@x" {
		t.Errorf("results lost: %d", len(got.Results))
	}

	light, err := fromDocument(doc, false)
	if err != nil {
		t.Fatalf("fromDocument: %v", err)
	}
	if light.Results != nil {
		t.Errorf("list view should not decode results")
	}
}

func TestReportDocumentSmallResultsUncompressed(t *testing.T) {
	summary := domain.Summarize("run-2", time.Now(), 1, []domain.MessageResult{{MessageID: "a", Outcome: domain.OutcomeFiltered}})
	doc, err := toDocument(&summary)
	if err != nil {
		t.Fatalf("toDocument: %v", err)
	}
	if doc.IsCompressed {
		t.Errorf("small results should stay plain")
	}
}
