package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepo is a thread-safe Repository for tests and development.
type InMemoryRepo struct {
	mu      sync.RWMutex
	reports []*PatientReport
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{}
}

func (m *InMemoryRepo) Save(_ context.Context, r *PatientReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = uuid.New()
	now := time.Now().UTC()
	if r.UploadedAt.IsZero() {
		r.UploadedAt = now
	}
	r.CreatedAt = now

	stored := *r
	m.reports = append(m.reports, &stored)
	return nil
}

func (m *InMemoryRepo) FindByPatient(_ context.Context, patientID string) ([]*PatientReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := []*PatientReport{}
	for _, r := range m.reports {
		if r.PatientID == patientID {
			copied := *r
			matched = append(matched, &copied)
		}
	}
	sortNewestFirst(matched)
	return matched, nil
}

func (m *InMemoryRepo) List(_ context.Context, limit, offset int) ([]*PatientReport, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*PatientReport, 0, len(m.reports))
	for _, r := range m.reports {
		copied := *r
		all = append(all, &copied)
	}
	sortNewestFirst(all)

	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func sortNewestFirst(reports []*PatientReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].UploadedAt.After(reports[j].UploadedAt)
	})
}
