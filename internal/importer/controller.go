package importer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arturoeanton/docgraph/internal/domain"
	"github.com/arturoeanton/docgraph/internal/repourl"
)

// API is the full set of backend calls the controller needs. *Client
// implements it.
type API interface {
	ImportAPI
	StatusAPI
	RepositoryAPI
}

// Options configure a Controller.
type Options struct {
	PollInterval    time.Duration
	MaxPollDuration time.Duration
	Confirmer       Confirmer
	Now             func() time.Time
}

// Controller wires validation, submission, polling, the registry and
// repository actions into one import workflow.
type Controller struct {
	api        API
	registry   *Registry
	submitter  *Submitter
	poller     *Poller
	dispatcher *Dispatcher

	mu      sync.Mutex
	handles map[string]*PollHandle
	closed  bool
}

// NewController creates a controller writing into registry. A nil registry
// gets a fresh one.
func NewController(api API, registry *Registry, opts Options) *Controller {
	if registry == nil {
		registry = NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	c := &Controller{
		api:       api,
		registry:  registry,
		submitter: &Submitter{API: api, Now: now},
		poller: &Poller{
			API:         api,
			Interval:    interval,
			MaxDuration: opts.MaxPollDuration,
			Now:         now,
		},
		handles: make(map[string]*PollHandle),
	}
	c.dispatcher = &Dispatcher{API: api, Confirmer: opts.Confirmer, Refresh: c.Refresh}
	return c
}

// Registry returns the registry the controller writes into.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// StartImport validates raw, submits it and starts polling the new job.
// Invalid input is rejected before any request is made. Once Close has run
// it returns ErrClosed and tracks nothing.
func (c *Controller) StartImport(ctx context.Context, raw string) (*domain.ImportJob, error) {
	u, err := repourl.Validate(raw)
	if err != nil {
		return nil, err
	}
	if c.isClosed() {
		return nil, ErrClosed
	}

	job, err := c.submitter.Submit(ctx, u)
	if err != nil {
		slog.Error("import submission failed", "url", u.String(), "error", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		slog.Warn("import submitted after close, not tracking", "import_id", job.ID)
		return nil, ErrClosed
	}
	if err := c.registry.Add(*job); err != nil {
		return nil, err
	}
	c.handles[job.ID] = c.poller.Attach(job.ID, PollCallbacks{
		OnUpdate:   c.registry.Update,
		OnComplete: c.registry.Promote,
	})
	slog.Info("import started", "import_id", job.ID, "url", job.SourceURL)
	return job, nil
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Wait blocks until the poller of job id exits or ctx is done.
func (c *Controller) Wait(ctx context.Context, id string) error {
	c.mu.Lock()
	h, ok := c.handles[id]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownJob
	}
	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh reloads the repository list from the backend.
func (c *Controller) Refresh(ctx context.Context) error {
	repos, err := c.api.ListRepositories(ctx)
	if err != nil {
		return err
	}
	c.registry.ReplaceRepositories(repos)
	return nil
}

// Sync re-syncs repository id.
func (c *Controller) Sync(ctx context.Context, id string) error {
	return c.dispatcher.Sync(ctx, id)
}

// Delete removes repository id after confirmation.
func (c *Controller) Delete(ctx context.Context, id string) error {
	return c.dispatcher.Delete(ctx, id)
}

// Detach stops polling job id. The job stays in the registry as last seen.
func (c *Controller) Detach(id string) {
	c.mu.Lock()
	h, ok := c.handles[id]
	delete(c.handles, id)
	c.mu.Unlock()
	if ok {
		h.Cancel()
	}
}

// Close cancels every attached poller. No registry mutation from a poller
// happens after Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	handles := c.handles
	c.handles = make(map[string]*PollHandle)
	c.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}
