package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_JSONSingleCapture(t *testing.T) {
	path := writeCapture(t, "capture.json", `{
		"tenant_id": "t1",
		"page_id": "page-1",
		"tables": [{"label": "Monthly Rent", "value": "$12,500.00"}],
		"text": "Term: 36 months"
	}`)

	captures, err := Load(path)
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, "t1", captures[0].TenantID)
	assert.Equal(t, "page-1", captures[0].PageID)
	require.Len(t, captures[0].Tables, 1)
	assert.Equal(t, "Monthly Rent", captures[0].Tables[0].Label)
	assert.Equal(t, "Term: 36 months", captures[0].Text)
	assert.False(t, captures[0].ObservedAt.IsZero())
}

func TestLoad_JSONCaptureList(t *testing.T) {
	path := writeCapture(t, "captures.json", `{
		"captures": [
			{"tenant_id": "t1", "page_id": "page-1", "tables": [{"label": "Rent", "value": "$1"}]},
			{"tenant_id": "t1", "page_id": "page-2", "text": "Rent: $2"}
		]
	}`)

	captures, err := Load(path)
	require.NoError(t, err)
	require.Len(t, captures, 2)
	assert.Equal(t, "page-1", captures[0].PageID)
	assert.Equal(t, "page-2", captures[1].PageID)
}

func TestLoad_YAMLCaptureList(t *testing.T) {
	path := writeCapture(t, "captures.yaml", `
captures:
  - tenant_id: t1
    page_id: page-1
    observed_at: 2026-03-01T12:00:00Z
    tables:
      - label: Monthly Rent
        value: $12,500.00
`)

	captures, err := Load(path)
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, "page-1", captures[0].PageID)
	assert.Equal(t, 2026, captures[0].ObservedAt.Year())
	require.Len(t, captures[0].Tables, 1)
	assert.Equal(t, "$12,500.00", captures[0].Tables[0].Value)
}

func TestLoad_YAMLSingleCapture(t *testing.T) {
	path := writeCapture(t, "capture.yml", `
tenant_id: t1
page_id: page-1
text: "Monthly Rent: $12,500.00"
`)

	captures, err := Load(path)
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, "Monthly Rent: $12,500.00", captures[0].Text)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeCapture(t, "broken.json", `{"tenant_id": `)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeCapture(t, "capture.csv", "a,b\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported capture format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
