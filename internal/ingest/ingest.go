// Package ingest loads capture files from disk. A capture file holds one
// or more page captures in JSON, YAML, or XLSX form.
package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/leasedesk/reconcile/internal/collector"
)

// captureFile is the on-disk shape: either a single capture object or a
// list under "captures".
type captureFile struct {
	Captures []collector.CaptureInput `json:"captures" yaml:"captures"`
}

// Load reads capture inputs from path, dispatching on the file extension.
// Supported: .json, .yaml, .yml, .xlsx.
func Load(path string) ([]collector.CaptureInput, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, eris.Errorf("ingest: unsupported capture format %q", filepath.Ext(path))
	}
}

func loadJSON(path string) ([]collector.CaptureInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}

	var file captureFile
	if err := json.Unmarshal(data, &file); err == nil && len(file.Captures) > 0 {
		return stamp(file.Captures), nil
	}

	var single collector.CaptureInput
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}
	return stamp([]collector.CaptureInput{single}), nil
}

func loadYAML(path string) ([]collector.CaptureInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}

	var file captureFile
	if err := yaml.Unmarshal(data, &file); err == nil && len(file.Captures) > 0 {
		return stamp(file.Captures), nil
	}

	var single collector.CaptureInput
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}
	return stamp([]collector.CaptureInput{single}), nil
}

// stamp fills ObservedAt on captures that omit it.
func stamp(captures []collector.CaptureInput) []collector.CaptureInput {
	now := time.Now().UTC()
	for i := range captures {
		if captures[i].ObservedAt.IsZero() {
			captures[i].ObservedAt = now
		}
	}
	return captures
}
