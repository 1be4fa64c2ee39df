package domain

import "time"

// RepositoryStatus is the state of an imported repository.
type RepositoryStatus string

// Repository states.
const (
	RepositoryStatusActive  RepositoryStatus = "active"
	RepositoryStatusSyncing RepositoryStatus = "syncing"
	RepositoryStatusError   RepositoryStatus = "error"
)

// Repository is the terminal artifact of a successful import.
type Repository struct {
	ID            string           `json:"id"            db:"id"`
	Name          string           `json:"name"          db:"name"`
	Owner         string           `json:"owner"         db:"owner"`
	URL           string           `json:"url"           db:"url"`
	Description   *string          `json:"description,omitempty" db:"description"`
	Branch        string           `json:"branch"        db:"branch"`
	CommitHash    string           `json:"commitHash"    db:"commit_hash"`
	FileCount     int              `json:"fileCount"     db:"file_count"`
	TemplateCount int              `json:"templateCount" db:"template_count"`
	TotalSize     int64            `json:"totalSize"     db:"total_size"`
	Status        RepositoryStatus `json:"status"        db:"status"`
	ImportedAt    time.Time        `json:"importedAt"    db:"imported_at"`
	LastSyncedAt  *time.Time       `json:"lastSyncedAt,omitempty" db:"last_synced_at"`
}

// Snapshot is the repository state read from a working copy on disk.
type Snapshot struct {
	Name        string
	Owner       string
	URL         string
	Branch      string
	CommitHash  string
	Description *string
	FileCount   int
	TotalSize   int64
}
