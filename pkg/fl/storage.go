package fl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	pkgerrors "github.com/absmach/fedguard/pkg/errors"
)

// ReportStore keeps round reports as JSON files, one directory per job.
type ReportStore struct {
	dir string
	mu  sync.RWMutex
}

func NewReportStore(dir string) (*ReportStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}

	return &ReportStore{dir: dir}, nil
}

func (rs *ReportStore) Save(jobID string, r Report) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	jobDir, err := rs.jobDir(jobID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(reportFile(jobDir, r.Round), data, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	return nil
}

func (rs *ReportStore) Load(jobID string, round uint64) (Report, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	jobDir, err := rs.jobDir(jobID)
	if err != nil {
		return Report{}, err
	}

	data, err := os.ReadFile(reportFile(jobDir, round))
	if errors.Is(err, fs.ErrNotExist) {
		return Report{}, fmt.Errorf("%w: round %d of job %s", pkgerrors.ErrNotFound, round, jobID)
	}
	if err != nil {
		return Report{}, fmt.Errorf("failed to read report file: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return r, nil
}

// List returns the stored rounds of a job in ascending order.
func (rs *ReportStore) List(jobID string) ([]uint64, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	jobDir, err := rs.jobDir(jobID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(jobDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rounds []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var round uint64
		if _, err := fmt.Sscanf(entry.Name(), "round_%d.json", &round); err == nil {
			rounds = append(rounds, round)
		}
	}
	slices.Sort(rounds)

	return rounds, nil
}

func (rs *ReportStore) jobDir(jobID string) (string, error) {
	if jobID == "" {
		return "", pkgerrors.ErrEmptyKey
	}
	if !validJobID(jobID) {
		return "", fmt.Errorf("%w: job id %q", pkgerrors.ErrInvalidData, jobID)
	}

	return filepath.Join(rs.dir, jobID), nil
}

func reportFile(jobDir string, round uint64) string {
	return filepath.Join(jobDir, fmt.Sprintf("round_%d.json", round))
}

// validJobID accepts only ASCII letters, digits, '-' and '_' so a job id
// maps to exactly one directory inside the reports directory.
func validJobID(jobID string) bool {
	for _, r := range jobID {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}

	return true
}
