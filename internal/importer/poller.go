package importer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arturoeanton/docgraph/internal/domain"
)

// DefaultPollInterval is the delay between status checks of one job.
const DefaultPollInterval = 2 * time.Second

// Messages set on jobs the poller fails locally.
const (
	MsgStatusCheckFailed = "Network error while checking status"
	MsgMissingRepository = "Import completed without repository data"
	MsgTimedOut          = "Import timed out"
)

// StatusAPI queries the status of an import.
type StatusAPI interface {
	ImportStatus(ctx context.Context, importID string) (*domain.ImportStatusReport, error)
}

// PollCallbacks receive the poller's results for one job.
type PollCallbacks struct {
	// OnUpdate applies a status overwrite. An error stops the poller.
	OnUpdate func(id string, patch JobPatch) error
	// OnComplete receives the imported repository after the final update.
	OnComplete func(id string, repo domain.Repository) error
}

// Poller checks import status on a fixed interval until the job is terminal.
type Poller struct {
	API      StatusAPI
	Interval time.Duration
	// MaxDuration fails jobs still running after this long. Zero disables it.
	MaxDuration time.Duration
	Now         func() time.Time
}

// NewPoller returns a poller with the default interval and no time limit.
func NewPoller(api StatusAPI) *Poller {
	return &Poller{API: api, Interval: DefaultPollInterval, Now: time.Now}
}

// PollHandle controls one attached poll loop.
type PollHandle struct {
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Cancel stops the loop. Once Cancel returns no further callback runs for
// the job. Cancelling twice is a no-op. Cancel must not be called from
// inside a callback of the same handle.
func (h *PollHandle) Cancel() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// Done is closed when the loop has exited.
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

// Stopped reports whether the loop ended or was cancelled.
func (h *PollHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// apply runs fn unless the handle was cancelled. It returns true when the
// loop must end.
func (h *PollHandle) apply(fn func() (stop bool)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return true
	}
	if fn() {
		h.stopped = true
	}
	return h.stopped
}

// Attach starts polling jobID. Requests for one job never overlap: the next
// wait begins only after the previous response was applied.
func (p *Poller) Attach(jobID string, cb PollCallbacks) *PollHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &PollHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()
		p.run(ctx, h, jobID, cb)
	}()
	return h
}

func (p *Poller) run(ctx context.Context, h *PollHandle, jobID string, cb PollCallbacks) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	started := now()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		report, err := p.API.ImportStatus(ctx, jobID)

		stop := h.apply(func() bool {
			if err != nil {
				slog.Warn("import status check failed", "import_id", jobID, "error", err)
				p.failJob(cb, jobID, MsgStatusCheckFailed, now())
				return true
			}
			return p.applyReport(cb, jobID, report, started, now())
		})
		if stop {
			return
		}
		timer.Reset(interval)
	}
}

func (p *Poller) applyReport(cb PollCallbacks, jobID string, report *domain.ImportStatusReport, started, at time.Time) bool {
	if report.Status == domain.ImportStatusCompleted && report.Repository == nil {
		p.failJob(cb, jobID, MsgMissingRepository, at)
		return true
	}

	status, progress, msg := report.Status, report.Progress, report.Message
	patch := JobPatch{Status: &status, Progress: &progress, Message: &msg}
	if status.Terminal() {
		patch.CompletedAt = &at
	}
	if err := cb.OnUpdate(jobID, patch); err != nil {
		slog.Warn("import job update rejected", "import_id", jobID, "error", err)
		return true
	}

	switch status {
	case domain.ImportStatusCompleted:
		if cb.OnComplete != nil {
			if err := cb.OnComplete(jobID, *report.Repository); err != nil {
				slog.Warn("import completion rejected", "import_id", jobID, "error", err)
			}
		}
		return true
	case domain.ImportStatusFailed:
		return true
	}

	if p.MaxDuration > 0 && at.Sub(started) >= p.MaxDuration {
		p.failJob(cb, jobID, MsgTimedOut, at)
		return true
	}
	return false
}

func (p *Poller) failJob(cb PollCallbacks, jobID, msg string, at time.Time) {
	status := domain.ImportStatusFailed
	if err := cb.OnUpdate(jobID, JobPatch{Status: &status, Message: &msg, CompletedAt: &at}); err != nil {
		slog.Warn("import job update rejected", "import_id", jobID, "error", err)
	}
}
