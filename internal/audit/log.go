// Package audit keeps an append-only JSON Lines history of scans so a
// repository's findings can be tracked across runs.
package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/emircanakalin/PSA/internal/pipeline"
	"github.com/emircanakalin/PSA/internal/report"
)

const logName = "psa_audit.jsonl"

type ScanRecord struct {
	Timestamp      time.Time        `json:"timestamp"`
	ScanID         string           `json:"scan_id"`
	Root           string           `json:"root"`
	ConfigPath     string           `json:"config_path,omitempty"`
	Failed         bool             `json:"failed"`
	TotalFindings  int              `json:"total_findings"`
	NewFindings    int              `json:"new_findings"`
	BaselinedCount int              `json:"baselined_count"`
	CheckCounts    map[string]int   `json:"check_counts"`
	FilesScanned   int              `json:"files_scanned"`
	Duration       string           `json:"duration"`
	BaselineFile   string           `json:"baseline_file,omitempty"`
	TopFindings    []FindingSummary `json:"top_findings,omitempty"`
}

// FindingSummary identifies a finding without any file content.
type FindingSummary struct {
	Check    string `json:"check"`
	Location string `json:"location"`
	Rule     string `json:"rule"`
}

type AuditLog struct {
	logPath string
}

// NewAuditLog stores the history under .git when root is a work tree so it
// is never committed by accident.
func NewAuditLog(root string) *AuditLog {
	gitDir := filepath.Join(root, ".git")
	logPath := filepath.Join(root, "."+logName)
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		logPath = filepath.Join(gitDir, logName)
	}
	return &AuditLog{logPath: logPath}
}

// Path returns the file records are appended to.
func (a *AuditLog) Path() string { return a.logPath }

// LoadHistory returns all records, newest first. Corrupt lines are skipped.
func (a *AuditLog) LoadHistory() ([]ScanRecord, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []ScanRecord
	sc := bufio.NewScanner(f)
	// Records list every finding; allow lines well past the 64 KiB default.
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var record ScanRecord
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (a *AuditLog) LogScan(record ScanRecord) error {
	if record.ScanID == "" {
		record.ScanID = uuid.NewString()
	}

	// Owner-only: records name files and rules that matched.
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// CreateScanRecord summarises a run. all is the unfiltered report and shown
// the one left after the baseline was applied.
func CreateScanRecord(all, shown pipeline.Report, baselineFile string) ScanRecord {
	counts := make(map[string]int)
	files := 0
	for _, cr := range all.Checks {
		counts[string(cr.Check)] = cr.Count()
		files += cr.FilesScanned
	}

	top := make([]FindingSummary, 0, 10)
	for _, r := range report.Rows(shown) {
		if len(top) == 10 {
			break
		}
		top = append(top, FindingSummary{Check: string(r.Check), Location: r.Location, Rule: r.Rule})
	}

	return ScanRecord{
		Timestamp:      time.Now().UTC(),
		Root:           all.Root,
		ConfigPath:     all.ConfigPath,
		Failed:         shown.Failed(),
		TotalFindings:  all.Total(),
		NewFindings:    shown.Total(),
		BaselinedCount: all.Total() - shown.Total(),
		CheckCounts:    counts,
		FilesScanned:   files,
		Duration:       all.Duration.String(),
		BaselineFile:   baselineFile,
		TopFindings:    top,
	}
}
