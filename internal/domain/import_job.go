package domain

import "time"

// ImportStatus is the lifecycle state of an import job.
type ImportStatus string

// Import job states. Completed and failed are terminal.
const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusCloning    ImportStatus = "cloning"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// Terminal reports whether no further transitions can occur from s.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// ImportJob tracks one repository import attempt from submission to outcome.
type ImportJob struct {
	ID           string       `json:"id"           db:"id"`
	RepositoryID string       `json:"repositoryId,omitempty" db:"repository_id"`
	SourceURL    string       `json:"sourceUrl"    db:"url"`
	Status       ImportStatus `json:"status"       db:"status"`
	Progress     int          `json:"progress"     db:"progress"`
	Message      string       `json:"message"      db:"message"`
	ErrorMessage string       `json:"errorMessage,omitempty" db:"error_message"`
	StartedAt    time.Time    `json:"startedAt"    db:"started_at"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty" db:"completed_at"`
}

// ImportStatusReport is the payload of GET /repositories/{importId}/status.
// Repository is set only when Status is completed.
type ImportStatusReport struct {
	ID         string       `json:"id,omitempty"`
	Status     ImportStatus `json:"status"`
	Progress   int          `json:"progress"`
	Message    string       `json:"message"`
	Repository *Repository  `json:"repository,omitempty"`
}
