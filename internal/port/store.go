package port

import (
	"context"

	"github.com/arturoeanton/docgraph/internal/domain"
)

// ImportJobPatch carries the import job columns to overwrite. Nil fields are
// left unchanged.
type ImportJobPatch struct {
	Status       *domain.ImportStatus
	Progress     *int
	Message      *string
	ErrorMessage *string
	Completed    bool
}

// RepositoryStore persists repositories and their import jobs.
type RepositoryStore interface {
	CreateImportJob(ctx context.Context, job *domain.ImportJob) error
	GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error)
	UpdateImportJob(ctx context.Context, id string, patch ImportJobPatch) error

	CreateRepository(ctx context.Context, repo *domain.Repository) error
	GetRepository(ctx context.Context, id string) (*domain.Repository, error)
	ListRepositories(ctx context.Context, limit, offset int) ([]domain.Repository, error)
	UpdateRepositoryStatus(ctx context.Context, id string, status domain.RepositoryStatus) error
	UpdateRepositorySnapshot(ctx context.Context, id string, snap *domain.Snapshot) error
	DeleteRepository(ctx context.Context, id string) error
}
