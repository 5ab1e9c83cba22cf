// Package snapshot stores response bodies on disk and compares later runs
// against them. JSON snapshots are compared structurally, so formatting
// differences never fail a test.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/edouardp/ApiTest/packages/jsonmatch"
)

const (
	// Dir is the directory name snapshots are stored under.
	Dir = "__snapshots__"
	// Ext is the file extension for snapshot files.
	Ext = ".snap.json"
)

// Manager handles snapshot storage and comparison.
type Manager struct {
	baseDir    string
	updateMode bool
	cache      map[string]map[string]string // file -> {key -> stored body}
}

// NewManager creates a snapshot manager rooted at baseDir. When updateMode
// is true, mismatched or missing snapshots are written instead of failing.
func NewManager(baseDir string, updateMode bool) *Manager {
	return &Manager{
		baseDir:    baseDir,
		updateMode: updateMode,
		cache:      make(map[string]map[string]string),
	}
}

// Result is the outcome of a snapshot comparison.
type Result struct {
	Passed     bool
	Message    string
	Expected   string
	Actual     string
	IsNew      bool
	WasUpdated bool
}

// Compare checks an actual value against the stored snapshot for
// testFile/requestName/snapshotName, creating or updating it in update mode.
func (m *Manager) Compare(testFile, requestName, snapshotName, actual string) *Result {
	result := &Result{Actual: actual}

	snapshotFile := m.snapshotFilePath(testFile)
	key := snapshotKey(requestName, snapshotName)

	snapshots, err := m.load(snapshotFile)
	if err != nil {
		result.Message = fmt.Sprintf("failed to load snapshots: %v", err)
		return result
	}

	expected, exists := snapshots[key]
	if !exists {
		if m.updateMode {
			snapshots[key] = actual
			if err := m.save(snapshotFile, snapshots); err != nil {
				result.Message = fmt.Sprintf("failed to save snapshot: %v", err)
				return result
			}
			result.Passed = true
			result.IsNew = true
			result.Expected = actual
			result.Message = "new snapshot created"
			return result
		}

		result.Message = "snapshot does not exist (run with --update-snapshots to create)"
		return result
	}

	result.Expected = expected

	if matched, detail := snapshotsEqual(expected, actual); matched {
		result.Passed = true
		return result
	} else if m.updateMode {
		snapshots[key] = actual
		if err := m.save(snapshotFile, snapshots); err != nil {
			result.Message = fmt.Sprintf("failed to update snapshot: %v", err)
			return result
		}
		result.Passed = true
		result.WasUpdated = true
		result.Message = "snapshot updated"
		return result
	} else {
		result.Message = detail
		return result
	}
}

// snapshotsEqual compares two stored bodies, structurally when both are
// valid JSON and byte for byte otherwise.
func snapshotsEqual(expected, actual string) (bool, string) {
	if gjson.Valid(expected) && gjson.Valid(actual) {
		res, err := jsonmatch.ExactMatch(expected, actual)
		if err != nil {
			return false, fmt.Sprintf("snapshot comparison failed: %v", err)
		}
		if res.Matched {
			return true, ""
		}
		lines := make([]string, 0, len(res.Mismatches)+1)
		lines = append(lines, "snapshot mismatch:")
		for _, mm := range res.Mismatches {
			lines = append(lines, "  "+mm.String())
		}
		return false, strings.Join(lines, "\n")
	}

	if expected == actual {
		return true, ""
	}
	return false, "snapshot mismatch"
}

func (m *Manager) snapshotFilePath(testFile string) string {
	dir := filepath.Dir(testFile)
	base := filepath.Base(testFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	if m.baseDir != "" {
		dir = m.baseDir
	}
	return filepath.Join(dir, Dir, name+Ext)
}

func snapshotKey(requestName, snapshotName string) string {
	if snapshotName != "" {
		return requestName + "::" + snapshotName
	}
	return requestName
}

func (m *Manager) load(path string) (map[string]string, error) {
	if cached, ok := m.cache[path]; ok {
		return cached, nil
	}

	snapshots := make(map[string]string)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.cache[path] = snapshots
			return snapshots, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("corrupt snapshot file %s: %w", path, err)
	}

	m.cache[path] = snapshots
	return snapshots, nil
}

func (m *Manager) save(path string, snapshots map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return err
	}

	m.cache[path] = snapshots
	return os.WriteFile(path, data, 0o644)
}
