package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arturoeanton/docgraph/internal/domain"
	"github.com/arturoeanton/docgraph/internal/port"
)

// Schema creates the tables DocGraph needs. Safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS repositories (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    owner           TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL,
    description     TEXT,
    branch          TEXT NOT NULL DEFAULT 'main',
    commit_hash     TEXT NOT NULL DEFAULT '',
    file_count      INTEGER NOT NULL DEFAULT 0,
    template_count  INTEGER NOT NULL DEFAULT 0,
    total_size      BIGINT NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'active',
    imported_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_synced_at  TIMESTAMPTZ,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS import_jobs (
    id              TEXT PRIMARY KEY,
    repository_id   TEXT NOT NULL,
    url             TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending',
    progress        INTEGER NOT NULL DEFAULT 0,
    message         TEXT NOT NULL DEFAULT '',
    error_message   TEXT,
    started_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS audit_logs (
    id           BIGSERIAL PRIMARY KEY,
    action       TEXT NOT NULL,
    resource     TEXT NOT NULL,
    resource_id  TEXT NOT NULL DEFAULT '',
    details      JSONB NOT NULL DEFAULT '{}',
    ip           TEXT NOT NULL DEFAULT '',
    user_agent   TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_import_jobs_repository ON import_jobs(repository_id);
CREATE INDEX IF NOT EXISTS idx_repositories_imported_at ON repositories(imported_at DESC);
`

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewPostgresStoreWithDB(db), nil
}

// NewPostgresStoreWithDB wraps an already opened database handle.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("run schema migration: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// --- Import jobs ---

// CreateImportJob inserts a new import job record.
func (s *PostgresStore) CreateImportJob(ctx context.Context, j *domain.ImportJob) error {
	query := `INSERT INTO import_jobs (id, repository_id, url, status, progress, message, started_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, query,
		j.ID, j.RepositoryID, j.SourceURL, j.Status, j.Progress, j.Message, j.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

// GetImportJob returns an import job by its ID.
func (s *PostgresStore) GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	query := `SELECT id, repository_id, url, status, progress, message, error_message, started_at, completed_at
	          FROM import_jobs WHERE id = $1`

	var (
		j         domain.ImportJob
		errMsg    sql.NullString
		completed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.RepositoryID, &j.SourceURL, &j.Status, &j.Progress, &j.Message,
		&errMsg, &j.StartedAt, &completed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrImportJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	j.ErrorMessage = errMsg.String
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	return &j, nil
}

// UpdateImportJob overwrites the columns set in patch.
func (s *PostgresStore) UpdateImportJob(ctx context.Context, id string, patch port.ImportJobPatch) error {
	query := `UPDATE import_jobs SET
	              status        = COALESCE($2, status),
	              progress      = COALESCE($3, progress),
	              message       = COALESCE($4, message),
	              error_message = COALESCE($5, error_message),
	              completed_at  = CASE WHEN $6 THEN NOW() ELSE completed_at END
	          WHERE id = $1`

	var status *string
	if patch.Status != nil {
		v := string(*patch.Status)
		status = &v
	}
	res, err := s.db.ExecContext(ctx, query,
		id, status, patch.Progress, patch.Message, patch.ErrorMessage, patch.Completed,
	)
	if err != nil {
		return fmt.Errorf("update import job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrImportJobNotFound
	}
	return nil
}

// --- Repositories ---

const repositoryColumns = `id, name, owner, url, description, branch, commit_hash,
	file_count, template_count, total_size, status, imported_at, last_synced_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (*domain.Repository, error) {
	var (
		r      domain.Repository
		desc   sql.NullString
		synced sql.NullTime
	)
	if err := row.Scan(
		&r.ID, &r.Name, &r.Owner, &r.URL, &desc, &r.Branch, &r.CommitHash,
		&r.FileCount, &r.TemplateCount, &r.TotalSize, &r.Status, &r.ImportedAt, &synced,
	); err != nil {
		return nil, err
	}
	if desc.Valid {
		r.Description = &desc.String
	}
	if synced.Valid {
		r.LastSyncedAt = &synced.Time
	}
	return &r, nil
}

// CreateRepository inserts a new repository record.
func (s *PostgresStore) CreateRepository(ctx context.Context, r *domain.Repository) error {
	query := `INSERT INTO repositories (id, name, owner, url, description, branch, commit_hash,
	              file_count, template_count, total_size, status, imported_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Name, r.Owner, r.URL, r.Description, r.Branch, r.CommitHash,
		r.FileCount, r.TemplateCount, r.TotalSize, r.Status, r.ImportedAt,
	)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	return nil
}

// GetRepository returns a repository by its ID.
func (s *PostgresStore) GetRepository(ctx context.Context, id string) (*domain.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE id = $1`

	r, err := scanRepository(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrRepositoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return r, nil
}

// ListRepositories returns repositories, newest import first.
func (s *PostgresStore) ListRepositories(ctx context.Context, limit, offset int) ([]domain.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories
	          ORDER BY imported_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	repos := []domain.Repository{}
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *r)
	}
	return repos, rows.Err()
}

// UpdateRepositoryStatus sets the status of a repository.
func (s *PostgresStore) UpdateRepositoryStatus(ctx context.Context, id string, status domain.RepositoryStatus) error {
	query := `UPDATE repositories SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update repository status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrRepositoryNotFound
	}
	return nil
}

// UpdateRepositorySnapshot records a completed sync and marks the
// repository active.
func (s *PostgresStore) UpdateRepositorySnapshot(ctx context.Context, id string, snap *domain.Snapshot) error {
	query := `UPDATE repositories SET
	              commit_hash = $1, file_count = $2, total_size = $3, description = $4,
	              status = $5, last_synced_at = NOW(), updated_at = NOW()
	          WHERE id = $6`
	res, err := s.db.ExecContext(ctx, query,
		snap.CommitHash, snap.FileCount, snap.TotalSize, snap.Description,
		domain.RepositoryStatusActive, id,
	)
	if err != nil {
		return fmt.Errorf("update repository snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrRepositoryNotFound
	}
	return nil
}

// DeleteRepository removes a repository and its import jobs in one transaction.
func (s *PostgresStore) DeleteRepository(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrRepositoryNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM import_jobs WHERE repository_id = $1`, id); err != nil {
		return fmt.Errorf("delete import jobs: %w", err)
	}
	return tx.Commit()
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(action, resource, resourceID, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4::jsonb, $5, $6)`
	_, err := s.db.ExecContext(context.Background(), query,
		action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with optional filters.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id::text, action, resource, resource_id, details::text, ip, user_agent, created_at
	          FROM audit_logs`
	args := []any{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.AuditLog{}
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
