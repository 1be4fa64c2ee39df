package importer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/docgraph/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestRegistry_AddRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(pendingJob("a")))
	assert.ErrorIs(t, r.Add(pendingJob("a")), ErrDuplicateJob)
	assert.Len(t, r.Snapshot().Jobs, 1)
}

func TestRegistry_KeepsInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Add(pendingJob(id)))
	}
	var ids []string
	for _, j := range r.Snapshot().Jobs {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestRegistry_UpdateMergesSetFields(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(pendingJob("a")))

	require.NoError(t, r.Update("a", JobPatch{Progress: ptr(30)}))
	job, ok := r.Job("a")
	require.True(t, ok)
	assert.Equal(t, 30, job.Progress)
	assert.Equal(t, domain.ImportStatusPending, job.Status)
	assert.Equal(t, MsgImportStarting, job.Message)
	assert.Nil(t, job.CompletedAt)

	done := time.Now()
	require.NoError(t, r.Update("a", JobPatch{
		Status:      ptr(domain.ImportStatusFailed),
		Message:     ptr("boom"),
		CompletedAt: &done,
	}))
	job, _ = r.Job("a")
	assert.Equal(t, domain.ImportStatusFailed, job.Status)
	assert.Equal(t, 30, job.Progress)
	assert.Equal(t, "boom", job.Message)
	require.NotNil(t, job.CompletedAt)
	assert.True(t, done.Equal(*job.CompletedAt))
}

func TestRegistry_UpdateUnknown(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Update("missing", JobPatch{Progress: ptr(1)}), ErrUnknownJob)
}

func TestRegistry_PromoteIsSingleTransition(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(pendingJob("a")))
	require.NoError(t, r.Add(pendingJob("b")))

	var seen []Snapshot
	unsubscribe := r.Subscribe(func(s Snapshot) { seen = append(seen, s) })
	defer unsubscribe()

	require.NoError(t, r.Promote("a", domain.Repository{ID: "repo-1", Name: "widgets"}))

	require.Len(t, seen, 1)
	require.Len(t, seen[0].Jobs, 1)
	assert.Equal(t, "b", seen[0].Jobs[0].ID)
	require.Len(t, seen[0].Repositories, 1)
	assert.Equal(t, "repo-1", seen[0].Repositories[0].ID)

	_, ok := r.Job("a")
	assert.False(t, ok)
}

func TestRegistry_PromoteUnknownLeavesRepositories(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Promote("missing", domain.Repository{ID: "x"}), ErrUnknownJob)
	assert.Empty(t, r.Snapshot().Repositories)
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(pendingJob("a")))
	r.ReplaceRepositories([]domain.Repository{{ID: "r1"}})

	snap := r.Snapshot()
	snap.Jobs[0].Message = "changed"
	snap.Repositories[0].ID = "changed"

	job, _ := r.Job("a")
	assert.Equal(t, MsgImportStarting, job.Message)
	assert.Equal(t, "r1", r.Snapshot().Repositories[0].ID)
}

func TestRegistry_ReplaceRepositories(t *testing.T) {
	r := NewRegistry()
	r.ReplaceRepositories([]domain.Repository{{ID: "r1"}, {ID: "r2"}})
	r.ReplaceRepositories([]domain.Repository{{ID: "r3"}})

	repos := r.Snapshot().Repositories
	require.Len(t, repos, 1)
	assert.Equal(t, "r3", repos[0].ID)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry()
	calls := 0
	unsubscribe := r.Subscribe(func(Snapshot) { calls++ })

	require.NoError(t, r.Add(pendingJob("a")))
	unsubscribe()
	unsubscribe()
	require.NoError(t, r.Add(pendingJob("b")))

	assert.Equal(t, 1, calls)
}

func TestRegistry_ConcurrentUpdatesAreSerialized(t *testing.T) {
	r := NewRegistry()
	const jobs = 8
	for i := 0; i < jobs; i++ {
		require.NoError(t, r.Add(pendingJob(fmt.Sprintf("job-%d", i))))
	}

	var mu sync.Mutex
	notifications := 0
	r.Subscribe(func(s Snapshot) {
		mu.Lock()
		notifications++
		mu.Unlock()
		assert.Len(t, s.Jobs, jobs)
	})

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for p := 1; p <= 50; p++ {
				assert.NoError(t, r.Update(id, JobPatch{Progress: ptr(p)}))
			}
		}(fmt.Sprintf("job-%d", i))
	}
	wg.Wait()

	for _, j := range r.Snapshot().Jobs {
		assert.Equal(t, 50, j.Progress)
	}
	assert.Equal(t, jobs*50, notifications)
}
