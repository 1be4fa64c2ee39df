package importer

import (
	"errors"
	"fmt"
)

// Registry and workflow errors.
var (
	ErrDuplicateJob = errors.New("import job already tracked")
	ErrUnknownJob   = errors.New("import job not tracked")
	ErrNetwork      = errors.New("network error")
	ErrNotConfirmed = errors.New("action not confirmed")
	ErrClosed       = errors.New("controller closed")
)

// DefaultSubmissionMessage is shown when the backend rejects an import
// without saying why.
const DefaultSubmissionMessage = "Failed to start import"

// SubmissionError is a rejected import request. Message comes from the
// backend verbatim.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string { return e.Message }

// APIError is a non-2xx response from the DocGraph API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// ActionError is a failed sync or delete.
type ActionError struct {
	Action       string
	RepositoryID string
	Err          error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s repository %s: %v", e.Action, e.RepositoryID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
