package port

import (
	"context"

	"github.com/arturoeanton/docgraph/internal/domain"
)

// ProgressFunc reports a percentage and a human-readable step message.
type ProgressFunc func(progress int, message string)

// VCSProvider abstracts version control system operations.
// Implementations handle cloning, updating and inspecting working copies.
type VCSProvider interface {
	// Clone clones url into dest and returns the resulting snapshot.
	Clone(ctx context.Context, url, dest string, progress ProgressFunc) (*domain.Snapshot, error)

	// Pull fetches the latest changes for the working copy at dest.
	Pull(ctx context.Context, dest string) (*domain.Snapshot, error)
}
