package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/docgraph/internal/domain"
	"github.com/arturoeanton/docgraph/internal/port"
	"github.com/arturoeanton/docgraph/internal/repourl"
)

// Messages recorded on import jobs as they move through the pipeline.
const (
	MsgImportReceived  = "Import request received"
	MsgCloneStarting   = "Starting clone operation..."
	MsgProcessing      = "Processing repository data..."
	MsgImportSucceeded = "Repository imported successfully!"
	MsgImportFailed    = "Import failed"
	MsgImportCrashed   = "Unexpected error during import"
)

// RepositoryService runs repository imports in the background and serves
// the list, sync and delete operations on imported repositories.
type RepositoryService struct {
	store    port.RepositoryStore
	vcs      port.VCSProvider
	tracker  *ProgressTracker
	basePath string

	// ctx bounds background work; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now   func() time.Time
	newID func() string
}

// NewRepositoryService creates a new repository service storing working
// copies under basePath.
func NewRepositoryService(store port.RepositoryStore, vcs port.VCSProvider, tracker *ProgressTracker, basePath string) *RepositoryService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RepositoryService{
		store:    store,
		vcs:      vcs,
		tracker:  tracker,
		basePath: basePath,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Shutdown cancels background imports and syncs and waits for them to exit.
func (s *RepositoryService) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every background task started so far has finished.
func (s *RepositoryService) Wait() {
	s.wg.Wait()
}

// StoragePath returns the working copy directory of a repository.
func (s *RepositoryService) StoragePath(repositoryID string) string {
	return filepath.Join(s.basePath, repositoryID)
}

// StartImport validates url, records a pending import job and starts the
// import in the background.
func (s *RepositoryService) StartImport(ctx context.Context, url string) (*domain.ImportJob, error) {
	valid, err := repourl.Validate(url)
	if err != nil {
		return nil, err
	}

	job := &domain.ImportJob{
		ID:           s.newID(),
		RepositoryID: s.newID(),
		SourceURL:    valid.String(),
		Status:       domain.ImportStatusPending,
		Progress:     0,
		Message:      MsgImportReceived,
		StartedAt:    s.now().UTC(),
	}
	if err := s.store.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("start import: %w", err)
	}

	importsStarted.Inc()
	importsRunning.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer importsRunning.Dec()
		s.runImport(*job, valid)
	}()

	slog.Info("import started", "import_id", job.ID, "repository_id", job.RepositoryID, "url", job.SourceURL)
	return job, nil
}

func (s *RepositoryService) runImport(job domain.ImportJob, url repourl.ValidURL) {
	ctx := s.ctx
	started := s.now()

	s.setStage(ctx, job.ID, domain.ImportStatusCloning, 0, MsgCloneStarting)

	onProgress := func(p int, msg string) {
		s.tracker.Set(Progress{ImportID: job.ID, Status: domain.ImportStatusCloning, Progress: p, Message: msg})
		if err := s.store.UpdateImportJob(ctx, job.ID, port.ImportJobPatch{Progress: &p, Message: &msg}); err != nil {
			slog.Warn("failed to persist import progress", "import_id", job.ID, "error", err)
		}
	}

	snap, err := s.vcs.Clone(ctx, url.String(), s.StoragePath(job.RepositoryID), onProgress)
	if err != nil {
		s.fail(job.ID, MsgImportFailed, err, started)
		return
	}

	s.setStage(ctx, job.ID, domain.ImportStatusProcessing, 100, MsgProcessing)

	repo := &domain.Repository{
		ID:          job.RepositoryID,
		Name:        snap.Name,
		Owner:       snap.Owner,
		URL:         job.SourceURL,
		Description: snap.Description,
		Branch:      snap.Branch,
		CommitHash:  snap.CommitHash,
		FileCount:   snap.FileCount,
		TotalSize:   snap.TotalSize,
		Status:      domain.RepositoryStatusActive,
		ImportedAt:  s.now().UTC(),
	}
	if info, err := repourl.Parse(url); err == nil {
		repo.Name, repo.Owner = info.Name, info.Owner
	}

	if err := s.store.CreateRepository(ctx, repo); err != nil {
		s.fail(job.ID, MsgImportCrashed, err, started)
		return
	}

	status, progress, msg := domain.ImportStatusCompleted, 100, MsgImportSucceeded
	if err := s.store.UpdateImportJob(ctx, job.ID, port.ImportJobPatch{
		Status: &status, Progress: &progress, Message: &msg, Completed: true,
	}); err != nil {
		s.fail(job.ID, MsgImportCrashed, err, started)
		return
	}

	s.finish(Progress{ImportID: job.ID, Status: status, Progress: progress, Message: msg}, started)
	slog.Info("import complete", "import_id", job.ID, "repository_id", repo.ID, "files", repo.FileCount)
}

func (s *RepositoryService) setStage(ctx context.Context, importID string, status domain.ImportStatus, progress int, msg string) {
	s.tracker.Set(Progress{ImportID: importID, Status: status, Progress: progress, Message: msg})
	if err := s.store.UpdateImportJob(ctx, importID, port.ImportJobPatch{Status: &status, Message: &msg}); err != nil {
		slog.Warn("failed to persist import stage", "import_id", importID, "status", status, "error", err)
	}
}

// fail records the terminal failure. It uses a fresh context so the failure
// is persisted even when shutdown cancelled the import.
func (s *RepositoryService) fail(importID, msg string, cause error, started time.Time) {
	slog.Error("import failed", "import_id", importID, "error", cause)

	status, errMsg := domain.ImportStatusFailed, cause.Error()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.UpdateImportJob(ctx, importID, port.ImportJobPatch{
		Status: &status, Message: &msg, ErrorMessage: &errMsg, Completed: true,
	}); err != nil {
		slog.Error("failed to persist import failure", "import_id", importID, "error", err)
	}

	last, _ := s.tracker.Get(importID)
	s.finish(Progress{ImportID: importID, Status: status, Progress: last.Progress, Message: msg}, started)
}

func (s *RepositoryService) finish(final Progress, started time.Time) {
	s.tracker.Set(final)
	s.tracker.Forget(final.ImportID)
	importsFinished.WithLabelValues(string(final.Status)).Inc()
	importDuration.Observe(s.now().Sub(started).Seconds())
}

// ImportStatus reports the state of an import job. Progress still held in
// memory takes precedence over the stored value.
func (s *RepositoryService) ImportStatus(ctx context.Context, importID string) (*domain.ImportStatusReport, error) {
	job, err := s.store.GetImportJob(ctx, importID)
	if err != nil {
		return nil, err
	}

	report := &domain.ImportStatusReport{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.Message,
	}
	// A stored terminal status wins over a tracker entry that has not been
	// forgotten yet.
	if p, ok := s.tracker.Get(importID); ok && !job.Status.Terminal() {
		report.Progress = p.Progress
		report.Message = p.Message
	}

	if job.Status == domain.ImportStatusCompleted {
		repo, err := s.store.GetRepository(ctx, job.RepositoryID)
		switch {
		case err == nil:
			report.Repository = repo
		case !errors.Is(err, port.ErrRepositoryNotFound):
			return nil, err
		}
	}
	return report, nil
}

// ListRepositories returns a page of imported repositories.
func (s *RepositoryService) ListRepositories(ctx context.Context, limit, offset int) ([]domain.Repository, error) {
	return s.store.ListRepositories(ctx, limit, offset)
}

// GetRepository returns one imported repository.
func (s *RepositoryService) GetRepository(ctx context.Context, id string) (*domain.Repository, error) {
	return s.store.GetRepository(ctx, id)
}

// SyncRepository marks the repository as syncing and pulls the latest
// changes from its origin in the background.
func (s *RepositoryService) SyncRepository(ctx context.Context, id string) error {
	if _, err := s.store.GetRepository(ctx, id); err != nil {
		return err
	}
	if err := s.store.UpdateRepositoryStatus(ctx, id, domain.RepositoryStatusSyncing); err != nil {
		return fmt.Errorf("sync repository: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSync(id)
	}()
	return nil
}

func (s *RepositoryService) runSync(id string) {
	ctx := s.ctx
	snap, err := s.vcs.Pull(ctx, s.StoragePath(id))
	if err != nil {
		slog.Error("sync failed", "repository_id", id, "error", err)
		repositoryActions.WithLabelValues("sync", "error").Inc()
		if err := s.store.UpdateRepositoryStatus(context.Background(), id, domain.RepositoryStatusError); err != nil {
			slog.Error("failed to mark repository errored", "repository_id", id, "error", err)
		}
		return
	}

	if err := s.store.UpdateRepositorySnapshot(ctx, id, snap); err != nil {
		slog.Error("failed to record sync", "repository_id", id, "error", err)
		repositoryActions.WithLabelValues("sync", "error").Inc()
		return
	}
	repositoryActions.WithLabelValues("sync", "ok").Inc()
	slog.Info("sync complete", "repository_id", id, "commit", snap.CommitHash)
}

// DeleteRepository removes the working copy, the repository record and its
// import jobs.
func (s *RepositoryService) DeleteRepository(ctx context.Context, id string) error {
	if _, err := s.store.GetRepository(ctx, id); err != nil {
		return err
	}

	if err := os.RemoveAll(s.StoragePath(id)); err != nil {
		repositoryActions.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete repository storage: %w", err)
	}
	if err := s.store.DeleteRepository(ctx, id); err != nil {
		repositoryActions.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete repository: %w", err)
	}

	repositoryActions.WithLabelValues("delete", "ok").Inc()
	slog.Info("repository deleted", "repository_id", id)
	return nil
}
