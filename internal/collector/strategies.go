package collector

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/leasedesk/reconcile/internal/model"
)

// TableStrategy reads labeled cell pairs from the structured regions of a
// capture.
type TableStrategy struct{}

func (TableStrategy) Name() string { return "table" }

func (TableStrategy) Extract(_ context.Context, in CaptureInput) ([]model.CandidateFact, error) {
	observed := in.ObservedAt
	if observed.IsZero() {
		observed = time.Now().UTC()
	}
	var facts []model.CandidateFact
	for _, row := range in.Tables {
		label := strings.TrimSpace(row.Label)
		value := strings.TrimSpace(row.Value)
		if label == "" || value == "" {
			continue
		}
		facts = append(facts, model.CandidateFact{
			TenantID:     in.TenantID,
			SourceMethod: model.SourceTable,
			RawFieldName: label,
			RawValue:     value,
			PageID:       in.PageID,
			ObservedAt:   observed,
		})
	}
	return facts, nil
}

// labeledLine matches "Some Label: value" lines in free text. The label is
// capped at a few words so prose sentences with colons are skipped.
var labeledLine = regexp.MustCompile(`(?m)^\s*([A-Za-z][A-Za-z0-9 /_.-]{1,40}?)\s*[:=]\s*(\S.*?)\s*$`)

// LabeledTextStrategy pulls "label: value" pairs out of the capture's free
// text.
type LabeledTextStrategy struct{}

func (LabeledTextStrategy) Name() string { return "labeled_text" }

func (LabeledTextStrategy) Extract(_ context.Context, in CaptureInput) ([]model.CandidateFact, error) {
	observed := in.ObservedAt
	if observed.IsZero() {
		observed = time.Now().UTC()
	}
	var facts []model.CandidateFact
	for _, m := range labeledLine.FindAllStringSubmatch(in.Text, -1) {
		facts = append(facts, model.CandidateFact{
			TenantID:     in.TenantID,
			SourceMethod: model.SourceLabeled,
			RawFieldName: strings.TrimSpace(m[1]),
			RawValue:     strings.TrimSpace(m[2]),
			PageID:       in.PageID,
			ObservedAt:   observed,
		})
	}
	return facts, nil
}
