package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/docgraph/internal/domain"
)

func newTestDispatcher(api *fakeAPI, confirm bool) (*Dispatcher, *Registry, *int) {
	r := NewRegistry()
	r.ReplaceRepositories([]domain.Repository{{ID: "r1"}, {ID: "r2"}})
	refreshes := 0
	d := &Dispatcher{
		API: api,
		Confirmer: ConfirmFunc(func(context.Context, string) (bool, error) {
			return confirm, nil
		}),
		Refresh: func(ctx context.Context) error {
			refreshes++
			repos, err := api.ListRepositories(ctx)
			if err != nil {
				return err
			}
			r.ReplaceRepositories(repos)
			return nil
		},
	}
	return d, r, &refreshes
}

func TestDispatcher_SyncRefreshesOnce(t *testing.T) {
	api := &fakeAPI{repos: []domain.Repository{{ID: "r1", Status: domain.RepositoryStatusSyncing}, {ID: "r2"}}}
	d, r, refreshes := newTestDispatcher(api, true)

	require.NoError(t, d.Sync(context.Background(), "r1"))

	assert.Equal(t, []string{"r1"}, api.syncCalls)
	assert.Equal(t, 1, *refreshes)
	assert.Equal(t, domain.RepositoryStatusSyncing, r.Snapshot().Repositories[0].Status)
}

func TestDispatcher_SyncFailureLeavesList(t *testing.T) {
	api := &fakeAPI{syncErr: &APIError{StatusCode: 404, Message: "Repository not found"}}
	d, r, refreshes := newTestDispatcher(api, true)

	err := d.Sync(context.Background(), "r1")
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "sync", actionErr.Action)
	assert.Equal(t, "r1", actionErr.RepositoryID)

	assert.Zero(t, *refreshes)
	assert.Len(t, r.Snapshot().Repositories, 2)
}

func TestDispatcher_DeleteDeclined(t *testing.T) {
	api := &fakeAPI{}
	d, r, refreshes := newTestDispatcher(api, false)

	assert.ErrorIs(t, d.Delete(context.Background(), "r1"), ErrNotConfirmed)
	assert.Empty(t, api.deleteCalls)
	assert.Zero(t, *refreshes)
	assert.Len(t, r.Snapshot().Repositories, 2)
}

func TestDispatcher_DeleteWithoutConfirmer(t *testing.T) {
	api := &fakeAPI{}
	d, r, refreshes := newTestDispatcher(api, true)
	d.Confirmer = nil

	assert.ErrorIs(t, d.Delete(context.Background(), "r1"), ErrNotConfirmed)
	assert.Empty(t, api.deleteCalls)
	assert.Zero(t, *refreshes)
	assert.Len(t, r.Snapshot().Repositories, 2)
}

func TestDispatcher_DeleteConfirmed(t *testing.T) {
	api := &fakeAPI{repos: []domain.Repository{{ID: "r2"}}}
	d, r, refreshes := newTestDispatcher(api, true)

	require.NoError(t, d.Delete(context.Background(), "r1"))

	assert.Equal(t, []string{"r1"}, api.deleteCalls)
	assert.Equal(t, 1, *refreshes)
	repos := r.Snapshot().Repositories
	require.Len(t, repos, 1)
	assert.Equal(t, "r2", repos[0].ID)
}

func TestDispatcher_DeleteFailureLeavesList(t *testing.T) {
	api := &fakeAPI{deleteErr: errors.New("connection reset")}
	d, r, refreshes := newTestDispatcher(api, true)

	err := d.Delete(context.Background(), "r1")
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "delete", actionErr.Action)
	assert.Zero(t, *refreshes)
	assert.Len(t, r.Snapshot().Repositories, 2)
}

func TestDispatcher_ConfirmerError(t *testing.T) {
	api := &fakeAPI{}
	boom := errors.New("no tty")
	d := &Dispatcher{
		API: api,
		Confirmer: ConfirmFunc(func(context.Context, string) (bool, error) {
			return false, boom
		}),
	}

	err := d.Delete(context.Background(), "r1")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, api.deleteCalls)
}

func TestDispatcher_RefreshFailureIsNotActionFailure(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("timeout")}
	d, r, refreshes := newTestDispatcher(api, true)

	require.NoError(t, d.Sync(context.Background(), "r1"))
	assert.Equal(t, 1, *refreshes)
	assert.Len(t, r.Snapshot().Repositories, 2)
}
