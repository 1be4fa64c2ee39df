package importer

import (
	"sync"
	"time"

	"github.com/arturoeanton/docgraph/internal/domain"
)

// JobPatch is a shallow update to an ImportJob. Nil fields are preserved.
type JobPatch struct {
	Status      *domain.ImportStatus
	Progress    *int
	Message     *string
	CompletedAt *time.Time
}

// Snapshot is a consistent copy of the registry contents.
type Snapshot struct {
	Jobs         []domain.ImportJob
	Repositories []domain.Repository
}

// Registry owns the active import jobs and the imported repositories of a
// session. Jobs keep insertion order, which is also display order.
//
// Subscribers are called in mutation order with a snapshot taken in the
// same critical section as the mutation. They must not call back into the
// registry.
type Registry struct {
	mu    sync.Mutex
	order []string
	jobs  map[string]*domain.ImportJob
	repos []domain.Repository

	notifyMu sync.Mutex
	subs     map[int]func(Snapshot)
	nextSub  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*domain.ImportJob),
		subs: make(map[int]func(Snapshot)),
	}
}

// Add appends job to the active jobs.
func (r *Registry) Add(job domain.ImportJob) error {
	r.mu.Lock()
	if _, ok := r.jobs[job.ID]; ok {
		r.mu.Unlock()
		return ErrDuplicateJob
	}
	r.jobs[job.ID] = &job
	r.order = append(r.order, job.ID)
	r.publishLocked()
	return nil
}

// Update merges patch into the active job id.
func (r *Registry) Update(id string, patch JobPatch) error {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownJob
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.Progress != nil {
		job.Progress = *patch.Progress
	}
	if patch.Message != nil {
		job.Message = *patch.Message
	}
	if patch.CompletedAt != nil {
		t := *patch.CompletedAt
		job.CompletedAt = &t
	}
	r.publishLocked()
	return nil
}

// Promote removes job id from the active jobs and appends repo to the
// repositories in one step.
func (r *Registry) Promote(id string, repo domain.Repository) error {
	r.mu.Lock()
	if _, ok := r.jobs[id]; !ok {
		r.mu.Unlock()
		return ErrUnknownJob
	}
	delete(r.jobs, id)
	for i, jid := range r.order {
		if jid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.repos = append(r.repos, repo)
	r.publishLocked()
	return nil
}

// ReplaceRepositories swaps in a freshly listed set of repositories.
func (r *Registry) ReplaceRepositories(repos []domain.Repository) {
	r.mu.Lock()
	r.repos = append([]domain.Repository(nil), repos...)
	r.publishLocked()
}

// Job returns a copy of the active job id.
func (r *Registry) Job(id string) (domain.ImportJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ImportJob{}, false
	}
	return copyJob(job), true
}

// Snapshot returns a copy of both collections.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (r *Registry) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.notifyMu.Lock()
			defer r.notifyMu.Unlock()
			delete(r.subs, id)
		})
	}
}

func (r *Registry) snapshotLocked() Snapshot {
	snap := Snapshot{
		Jobs:         make([]domain.ImportJob, 0, len(r.order)),
		Repositories: append([]domain.Repository(nil), r.repos...),
	}
	for _, id := range r.order {
		snap.Jobs = append(snap.Jobs, copyJob(r.jobs[id]))
	}
	return snap
}

// publishLocked must be called with r.mu held; it releases r.mu. notifyMu
// is taken before r.mu is released so subscribers see mutations in order.
func (r *Registry) publishLocked() {
	snap := r.snapshotLocked()
	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()

	for _, fn := range r.subs {
		fn(snap)
	}
}

func copyJob(j *domain.ImportJob) domain.ImportJob {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
