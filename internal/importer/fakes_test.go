package importer

import (
	"context"
	"sync"
	"time"

	"github.com/arturoeanton/docgraph/internal/domain"
)

type statusResult struct {
	report *domain.ImportStatusReport
	err    error
}

// fakeAPI scripts backend responses. Status results are consumed in order
// and the last one repeats.
type fakeAPI struct {
	mu sync.Mutex

	startID    string
	startErr   error
	startCalls []string
	onStart    func()

	statuses    []statusResult
	statusCalls int
	statusDelay time.Duration
	inFlight    int
	maxInFlight int

	repos     []domain.Repository
	listErr   error
	listCalls int

	syncErr     error
	deleteErr   error
	syncCalls   []string
	deleteCalls []string
}

func (f *fakeAPI) StartImport(_ context.Context, repoURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, repoURL)
	if f.onStart != nil {
		f.onStart()
	}
	return f.startID, f.startErr
}

func (f *fakeAPI) ImportStatus(ctx context.Context, _ string) (*domain.ImportStatusReport, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	var res statusResult
	if n := len(f.statuses); n > 0 {
		i := f.statusCalls
		if i >= n {
			i = n - 1
		}
		res = f.statuses[i]
	}
	f.statusCalls++
	delay := f.statusDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if res.report == nil && res.err == nil {
		return &domain.ImportStatusReport{Status: domain.ImportStatusPending}, nil
	}
	if res.report != nil {
		r := *res.report
		return &r, res.err
	}
	return nil, res.err
}

func (f *fakeAPI) ListRepositories(context.Context) ([]domain.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Repository(nil), f.repos...), nil
}

func (f *fakeAPI) SyncRepository(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls = append(f.syncCalls, id)
	return f.syncErr
}

func (f *fakeAPI) DeleteRepository(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	return f.deleteErr
}

func (f *fakeAPI) calls() (status, list int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.listCalls
}

func report(status domain.ImportStatus, progress int, msg string) statusResult {
	return statusResult{report: &domain.ImportStatusReport{Status: status, Progress: progress, Message: msg}}
}

func completedWith(repo domain.Repository) statusResult {
	return statusResult{report: &domain.ImportStatusReport{
		Status:     domain.ImportStatusCompleted,
		Progress:   100,
		Message:    "Repository imported successfully!",
		Repository: &repo,
	}}
}

func pendingJob(id string) domain.ImportJob {
	return domain.ImportJob{
		ID:        id,
		SourceURL: "https://github.com/acme/widgets",
		Status:    domain.ImportStatusPending,
		Message:   MsgImportStarting,
		StartedAt: time.Now(),
	}
}
