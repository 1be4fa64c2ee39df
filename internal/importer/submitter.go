package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arturoeanton/docgraph/internal/domain"
	"github.com/arturoeanton/docgraph/internal/repourl"
)

// MsgImportStarting is the message of a freshly submitted job.
const MsgImportStarting = "Starting import..."

// ImportAPI starts imports on the backend.
type ImportAPI interface {
	StartImport(ctx context.Context, repoURL string) (string, error)
}

// Submitter turns a validated URL into a pending ImportJob.
type Submitter struct {
	API ImportAPI
	Now func() time.Time
}

// Submit sends one import request. Every call is a separate job, repeated
// URLs are not deduplicated.
func (s *Submitter) Submit(ctx context.Context, u repourl.ValidURL) (*domain.ImportJob, error) {
	id, err := s.API.StartImport(ctx, u.String())
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = DefaultSubmissionMessage
			}
			return nil, &SubmissionError{Message: msg}
		}
		if errors.Is(err, ErrNetwork) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return &domain.ImportJob{
		ID:        id,
		SourceURL: u.String(),
		Status:    domain.ImportStatusPending,
		Progress:  0,
		Message:   MsgImportStarting,
		StartedAt: now(),
	}, nil
}
