// Package golden compares a backtest run's summary against a baseline
// snapshot (built in-process, or loaded from a JSON file with
// LoadSnapshot), flagging any field whose value differs: the same config
// and ticks must always reproduce the same RunSummary, so any diff here
// points at a non-determinism regression.
package golden

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
)

// CompareResult is the outcome of comparing two snapshots.
type CompareResult struct {
	Match       bool     `json:"match"`
	Differences []string `json:"differences,omitempty"`
}

// Snapshot is a captured backtest run result, keyed by run name so a single
// baseline file can hold more than one scenario.
type Snapshot struct {
	RunName string                 `json:"run_name"`
	Summary map[string]interface{} `json:"summary"`
}

// LoadSnapshot loads a snapshot from a JSON file.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(f).Decode(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// CompareSnapshots compares two snapshots and returns their differences.
func CompareSnapshots(expected, actual *Snapshot) *CompareResult {
	result := &CompareResult{Match: true, Differences: []string{}}

	if expected.RunName != actual.RunName {
		result.Match = false
		result.Differences = append(result.Differences,
			fmt.Sprintf("run_name mismatch: expected %s, got %s", expected.RunName, actual.RunName))
	}

	diffs := findDifferences(expected.Summary, actual.Summary, "summary")
	if len(diffs) > 0 {
		result.Match = false
		result.Differences = append(result.Differences, diffs...)
	}
	return result
}

// findDifferences recursively finds differences between two decoded JSON
// values, ignoring fields listed in ShouldIgnoreField (run IDs, timestamps).
func findDifferences(expected, actual interface{}, path string) []string {
	var differences []string

	switch expVal := expected.(type) {
	case map[string]interface{}:
		actMap, ok := actual.(map[string]interface{})
		if !ok {
			return append(differences, fmt.Sprintf("%s: type mismatch (expected map, got %T)", path, actual))
		}
		for key, expValue := range expVal {
			if ShouldIgnoreField(key) {
				continue
			}
			actValue, exists := actMap[key]
			if !exists {
				differences = append(differences, fmt.Sprintf("%s.%s: key missing in actual", path, key))
				continue
			}
			differences = append(differences, findDifferences(expValue, actValue, fmt.Sprintf("%s.%s", path, key))...)
		}
		for key := range actMap {
			if ShouldIgnoreField(key) {
				continue
			}
			if _, exists := expVal[key]; !exists {
				differences = append(differences, fmt.Sprintf("%s.%s: unexpected key in actual", path, key))
			}
		}

	case []interface{}:
		actSlice, ok := actual.([]interface{})
		if !ok {
			return append(differences, fmt.Sprintf("%s: type mismatch (expected slice, got %T)", path, actual))
		}
		if len(expVal) != len(actSlice) {
			differences = append(differences, fmt.Sprintf("%s: length mismatch (expected %d, got %d)", path, len(expVal), len(actSlice)))
		}
		minLen := len(expVal)
		if len(actSlice) < minLen {
			minLen = len(actSlice)
		}
		for i := 0; i < minLen; i++ {
			differences = append(differences, findDifferences(expVal[i], actSlice[i], fmt.Sprintf("%s[%d]", path, i))...)
		}

	default:
		if !reflect.DeepEqual(expected, actual) {
			differences = append(differences, fmt.Sprintf("%s: value mismatch (expected %v, got %v)", path, expected, actual))
		}
	}

	return differences
}

// ShouldIgnoreField reports whether a field name should be skipped during
// comparison because it legitimately varies run to run. Both the snake_case
// names and the Go field names that json.Marshal emits for an
// engine.RunSummary (which has no json tags) are listed.
func ShouldIgnoreField(fieldName string) bool {
	ignored := map[string]bool{
		"run_id":      true,
		"run_at":      true,
		"duration_ms": true,
		"RunID":       true,
		"RunAt":       true,
		"DurationMs":  true,
	}
	return ignored[fieldName]
}
