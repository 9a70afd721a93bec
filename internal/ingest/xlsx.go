package ingest

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/leasedesk/reconcile/internal/collector"
)

// loadXLSX reads a workbook where each sheet is one page capture. The
// sheet name is the page id; a "tenant" cell pair in the sheet overrides
// the workbook-level tenant taken from a sheet named "meta".
//
// Row layout: column A is the field label, column B the value. Blank
// labels are skipped.
func loadXLSX(path string) ([]collector.CaptureInput, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}

	tenant := metaTenant(f)
	now := time.Now().UTC()

	var captures []collector.CaptureInput
	for _, sheet := range f.Sheets {
		if strings.EqualFold(sheet.Name, "meta") {
			continue
		}

		in := collector.CaptureInput{
			TenantID:   tenant,
			PageID:     sheet.Name,
			ObservedAt: now,
		}
		for _, row := range sheet.Rows {
			label, value := rowPair(row)
			if label == "" {
				continue
			}
			if strings.EqualFold(label, "tenant") {
				in.TenantID = value
				continue
			}
			in.Tables = append(in.Tables, collector.TableRow{Label: label, Value: value})
		}
		if len(in.Tables) == 0 {
			continue
		}
		if in.TenantID == "" {
			return nil, eris.Errorf("ingest: sheet %q has no tenant", sheet.Name)
		}
		captures = append(captures, in)
	}

	if len(captures) == 0 {
		return nil, eris.Errorf("ingest: no captures in %s", path)
	}
	return captures, nil
}

func metaTenant(f *xlsx.File) string {
	sheet, ok := f.Sheet["meta"]
	if !ok {
		return ""
	}
	for _, row := range sheet.Rows {
		label, value := rowPair(row)
		if strings.EqualFold(label, "tenant") {
			return value
		}
	}
	return ""
}

func rowPair(row *xlsx.Row) (string, string) {
	if len(row.Cells) < 2 {
		return "", ""
	}
	return strings.TrimSpace(row.Cells[0].String()), strings.TrimSpace(row.Cells[1].String())
}
