package aggregator

import (
	"fmt"
	"slices"
	"sync"

	"github.com/absmach/fedguard/pkg/errors"
	"github.com/absmach/fedguard/pkg/fl"
)

var _ Reports = (*memoryReports)(nil)

type memoryReports struct {
	sync.Mutex

	data map[string]map[uint64]fl.Report
}

func NewMemoryReports() Reports {
	return &memoryReports{
		data: make(map[string]map[uint64]fl.Report),
	}
}

func (s *memoryReports) Save(jobID string, r fl.Report) error {
	if jobID == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[jobID]; !ok {
		s.data[jobID] = make(map[uint64]fl.Report)
	}
	s.data[jobID][r.Round] = r

	return nil
}

func (s *memoryReports) Load(jobID string, round uint64) (fl.Report, error) {
	if jobID == "" {
		return fl.Report{}, errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	r, ok := s.data[jobID][round]
	if !ok {
		return fl.Report{}, fmt.Errorf("%w: round %d of job %s", errors.ErrNotFound, round, jobID)
	}

	return r, nil
}

func (s *memoryReports) List(jobID string) ([]uint64, error) {
	if jobID == "" {
		return nil, errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	rounds := make([]uint64, 0, len(s.data[jobID]))
	for round := range s.data[jobID] {
		rounds = append(rounds, round)
	}
	slices.Sort(rounds)

	return rounds, nil
}
