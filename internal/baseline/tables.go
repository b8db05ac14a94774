// Package baseline loads the static reference tables (per-model metric
// baselines and per-metric alert thresholds) and compares live metric values
// against them.
package baseline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// BaselineTable maps model_id -> metric name -> reference value. Cells that
// do not parse as numbers (descriptive columns such as model_name) are kept
// as labels but never used for comparison.
type BaselineTable struct {
	rows   map[string]map[string]float64
	labels map[string]map[string]string
}

// Threshold is one per-metric alert threshold row.
type Threshold struct {
	Type        string
	Warning     float64
	Critical    float64
	Unit        string
	Description string
}

// ThresholdTable maps metric name -> threshold configuration.
type ThresholdTable struct {
	rows map[string]Threshold
}

// LoadBaselines reads a baseline CSV from disk. The caller decides whether a
// missing file is fatal; sessions treat it as a warning and proceed empty.
func LoadBaselines(path string) (*BaselineTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return EmptyBaselines(), err
	}
	defer f.Close()
	return ParseBaselines(f)
}

// ParseBaselines parses baseline CSV content. The first column set must
// include model_id; every other column becomes a metric entry for that model.
func ParseBaselines(r io.Reader) (*BaselineTable, error) {
	records, header, err := readCSV(r)
	if err != nil {
		return EmptyBaselines(), err
	}
	t := EmptyBaselines()
	for _, rec := range records {
		row := asRow(header, rec)
		modelID := row["model_id"]
		if modelID == "" {
			modelID = "default"
		}
		t.rows[modelID] = make(map[string]float64)
		t.labels[modelID] = make(map[string]string)
		for key, cell := range row {
			if key == "model_id" || cell == "" {
				continue
			}
			if v, err := strconv.ParseFloat(cell, 64); err == nil {
				t.rows[modelID][key] = v
			} else {
				t.labels[modelID][key] = cell
			}
		}
	}
	return t, nil
}

// EmptyBaselines returns a table with no rows.
func EmptyBaselines() *BaselineTable {
	return &BaselineTable{
		rows:   make(map[string]map[string]float64),
		labels: make(map[string]map[string]string),
	}
}

// Len reports the number of model rows.
func (t *BaselineTable) Len() int { return len(t.rows) }

// AddMetric inserts a numeric baseline cell, creating the model row when
// needed. Used by loaders that do not go through CSV.
func (t *BaselineTable) AddMetric(modelID, metric string, value float64) {
	if modelID == "" {
		modelID = "default"
	}
	if t.rows[modelID] == nil {
		t.rows[modelID] = make(map[string]float64)
		t.labels[modelID] = make(map[string]string)
	}
	t.rows[modelID][metric] = value
}

// Value returns the raw numeric cell for a model/metric pair.
func (t *BaselineTable) Value(modelID, metric string) (float64, bool) {
	row, ok := t.rows[modelID]
	if !ok {
		return 0, false
	}
	v, ok := row[metric]
	return v, ok
}

// Lookup resolves the baseline for a metric field, falling back to the
// "default" model row when the model has none. Field-name prefixes
// current_/avg_ are stripped and the avg_-prefixed column is preferred, so a
// field named current_response_time matches an avg_response_time column.
func (t *BaselineTable) Lookup(modelID, metric string) (float64, bool) {
	row, ok := t.rows[modelID]
	if !ok {
		row, ok = t.rows["default"]
	}
	if !ok {
		return 0, false
	}
	key := strings.TrimPrefix(strings.TrimPrefix(metric, "current_"), "avg_")
	if v, ok := row["avg_"+key]; ok {
		return v, true
	}
	v, ok := row[key]
	return v, ok
}

// LoadThresholds reads a threshold CSV from disk.
func LoadThresholds(path string) (*ThresholdTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return EmptyThresholds(), err
	}
	defer f.Close()
	return ParseThresholds(f)
}

// ParseThresholds parses threshold CSV content keyed by metric_name. Rows
// without a metric_name are skipped; threshold_type defaults to "upper".
func ParseThresholds(r io.Reader) (*ThresholdTable, error) {
	records, header, err := readCSV(r)
	if err != nil {
		return EmptyThresholds(), err
	}
	t := EmptyThresholds()
	for _, rec := range records {
		row := asRow(header, rec)
		name := row["metric_name"]
		if name == "" {
			continue
		}
		th := Threshold{
			Type:        row["threshold_type"],
			Unit:        row["unit"],
			Description: row["description"],
		}
		if th.Type == "" {
			th.Type = "upper"
		}
		th.Warning, _ = strconv.ParseFloat(row["warning_threshold"], 64)
		th.Critical, _ = strconv.ParseFloat(row["critical_threshold"], 64)
		t.rows[name] = th
	}
	return t, nil
}

// EmptyThresholds returns a table with no rows.
func EmptyThresholds() *ThresholdTable {
	return &ThresholdTable{rows: make(map[string]Threshold)}
}

// Len reports the number of threshold rows.
func (t *ThresholdTable) Len() int { return len(t.rows) }

// Add inserts or replaces the threshold row for a metric.
func (t *ThresholdTable) Add(metric string, th Threshold) {
	if metric == "" {
		return
	}
	if th.Type == "" {
		th.Type = "upper"
	}
	t.rows[metric] = th
}

// Get returns the threshold row for a metric.
func (t *ThresholdTable) Get(metric string) (Threshold, bool) {
	th, ok := t.rows[metric]
	return th, ok
}

func readCSV(r io.Reader) ([][]string, []string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[1:], all[0], nil
}

func asRow(header, rec []string) map[string]string {
	row := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(rec) {
			row[col] = rec[i]
		}
	}
	return row
}
