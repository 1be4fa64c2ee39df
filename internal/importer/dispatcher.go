package importer

import (
	"context"
	"log/slog"

	"github.com/arturoeanton/docgraph/internal/domain"
)

// RepositoryAPI performs repository actions on the backend.
type RepositoryAPI interface {
	ListRepositories(ctx context.Context) ([]domain.Repository, error)
	SyncRepository(ctx context.Context, id string) error
	DeleteRepository(ctx context.Context, id string) error
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Dispatcher runs sync and delete against the backend and refreshes the
// repository list after each success. The list is never changed locally
// ahead of the backend.
type Dispatcher struct {
	API       RepositoryAPI
	Confirmer Confirmer
	// Refresh reloads the repository list. It is called once per
	// successful action.
	Refresh func(ctx context.Context) error
}

// Sync asks the backend to re-sync repository id.
func (d *Dispatcher) Sync(ctx context.Context, id string) error {
	if err := d.API.SyncRepository(ctx, id); err != nil {
		return d.failed("sync", id, err)
	}
	d.refresh(ctx, "sync", id)
	return nil
}

// Delete removes repository id after the Confirmer approves it. A declined
// confirmation, or no Confirmer at all, returns ErrNotConfirmed without
// contacting the backend.
func (d *Dispatcher) Delete(ctx context.Context, id string) error {
	if d.Confirmer == nil {
		return ErrNotConfirmed
	}
	ok, err := d.Confirmer.Confirm(ctx, "Are you sure you want to delete this repository?")
	if err != nil {
		return d.failed("delete", id, err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	if err := d.API.DeleteRepository(ctx, id); err != nil {
		return d.failed("delete", id, err)
	}
	d.refresh(ctx, "delete", id)
	return nil
}

func (d *Dispatcher) failed(action, id string, err error) error {
	slog.Error("repository action failed", "action", action, "repository_id", id, "error", err)
	return &ActionError{Action: action, RepositoryID: id, Err: err}
}

// refresh failures are logged only; the action itself already succeeded.
func (d *Dispatcher) refresh(ctx context.Context, action, id string) {
	if d.Refresh == nil {
		return
	}
	if err := d.Refresh(ctx); err != nil {
		slog.Warn("repository refresh failed", "action", action, "repository_id", id, "error", err)
	}
}
