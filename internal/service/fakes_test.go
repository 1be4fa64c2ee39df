package service

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/arturoeanton/docgraph/internal/domain"
	"github.com/arturoeanton/docgraph/internal/port"
)

type memoryStore struct {
	mu    sync.Mutex
	jobs  map[string]domain.ImportJob
	repos map[string]domain.Repository

	failCreateRepo error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		jobs:  make(map[string]domain.ImportJob),
		repos: make(map[string]domain.Repository),
	}
}

func (m *memoryStore) CreateImportJob(_ context.Context, j *domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = *j
	return nil
}

func (m *memoryStore) GetImportJob(_ context.Context, id string) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, port.ErrImportJobNotFound
	}
	return &j, nil
}

func (m *memoryStore) UpdateImportJob(_ context.Context, id string, p port.ImportJobPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return port.ErrImportJobNotFound
	}
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Progress != nil {
		j.Progress = *p.Progress
	}
	if p.Message != nil {
		j.Message = *p.Message
	}
	if p.ErrorMessage != nil {
		j.ErrorMessage = *p.ErrorMessage
	}
	if p.Completed {
		now := time.Now()
		j.CompletedAt = &now
	}
	m.jobs[id] = j
	return nil
}

func (m *memoryStore) CreateRepository(_ context.Context, r *domain.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateRepo != nil {
		return m.failCreateRepo
	}
	m.repos[r.ID] = *r
	return nil
}

func (m *memoryStore) GetRepository(_ context.Context, id string) (*domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[id]
	if !ok {
		return nil, port.ErrRepositoryNotFound
	}
	return &r, nil
}

func (m *memoryStore) ListRepositories(_ context.Context, limit, offset int) ([]domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Repository, 0, len(m.repos))
	for _, r := range m.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImportedAt.After(out[j].ImportedAt) })
	if offset >= len(out) {
		return []domain.Repository{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) UpdateRepositoryStatus(_ context.Context, id string, status domain.RepositoryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[id]
	if !ok {
		return port.ErrRepositoryNotFound
	}
	r.Status = status
	m.repos[id] = r
	return nil
}

func (m *memoryStore) UpdateRepositorySnapshot(_ context.Context, id string, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[id]
	if !ok {
		return port.ErrRepositoryNotFound
	}
	now := time.Now()
	r.CommitHash = snap.CommitHash
	r.FileCount = snap.FileCount
	r.TotalSize = snap.TotalSize
	r.Description = snap.Description
	r.Status = domain.RepositoryStatusActive
	r.LastSyncedAt = &now
	m.repos[id] = r
	return nil
}

func (m *memoryStore) DeleteRepository(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.repos[id]; !ok {
		return port.ErrRepositoryNotFound
	}
	delete(m.repos, id)
	for jid, j := range m.jobs {
		if j.RepositoryID == id {
			delete(m.jobs, jid)
		}
	}
	return nil
}

func (m *memoryStore) job(id string) domain.ImportJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

func (m *memoryStore) repo(id string) (domain.Repository, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[id]
	return r, ok
}

var errCloneFailed = errors.New("authentication required")

type fakeVCS struct {
	cloneErr error
	pullErr  error
	// release, when set, blocks Clone until closed.
	release chan struct{}
}

func (f *fakeVCS) Clone(ctx context.Context, url, dest string, progress port.ProgressFunc) (*domain.Snapshot, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.cloneErr != nil {
		return nil, f.cloneErr
	}
	for _, p := range []int{10, 30, 70, 90, 100} {
		progress(p, "step")
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	desc := "Widgets for everyone"
	return &domain.Snapshot{
		Name:        "ignored",
		URL:         url,
		Branch:      "main",
		CommitHash:  "abc123",
		Description: &desc,
		FileCount:   12,
		TotalSize:   4096,
	}, nil
}

func (f *fakeVCS) Pull(_ context.Context, _ string) (*domain.Snapshot, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return &domain.Snapshot{CommitHash: "def456", FileCount: 13, TotalSize: 5000}, nil
}
