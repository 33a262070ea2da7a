package jobs

import (
	"context"
	"sort"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps jobs in process memory. Used when no database is configured.
type MemoryStore struct {
	items *cache.Cache
}

// NewMemoryStore creates an empty store whose entries never expire
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: cache.New(cache.NoExpiration, 0)}
}

// Put implements Store
func (m *MemoryStore) Put(_ context.Context, job *Job) error {
	stored := *job
	m.items.Set(job.JobID, &stored, cache.NoExpiration)
	return nil
}

// Get implements Store
func (m *MemoryStore) Get(_ context.Context, jobID string) (*Job, error) {
	v, ok := m.items.Get(jobID)
	if !ok {
		return nil, ErrNotFound
	}
	job := *v.(*Job)
	return &job, nil
}

// List implements Store
func (m *MemoryStore) List(_ context.Context, limit int) ([]*Job, error) {
	items := m.items.Items()
	jobs := make([]*Job, 0, len(items))
	for _, item := range items {
		job := *item.Object.(*Job)
		jobs = append(jobs, &job)
	}
	sortNewestFirst(jobs)

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Count implements Store
func (m *MemoryStore) Count(context.Context) (int64, error) {
	return int64(m.items.ItemCount()), nil
}

func sortNewestFirst(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].JobID > jobs[j].JobID
	})
}
