package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/docgraph/internal/service"
)

// ProgressSource publishes in-memory import progress.
type ProgressSource interface {
	Subscribe(id string) chan service.Progress
	Unsubscribe(id string, ch chan service.Progress)
}

// JobsHandler streams import progress over Server-Sent Events.
type JobsHandler struct {
	service  RepositoryService
	progress ProgressSource
	timeout  time.Duration
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(svc RepositoryService, progress ProgressSource) *JobsHandler {
	return &JobsHandler{service: svc, progress: progress, timeout: 5 * time.Minute}
}

// Register sets up import event routes.
func (h *JobsHandler) Register(router fiber.Router) {
	router.Get("/repositories/:importId/events", h.StreamSSE)
}

// StreamSSE streams import updates until the import reaches a terminal state.
func (h *JobsHandler) StreamSSE(c fiber.Ctx) error {
	id := c.Params("importId")

	// Subscribe before reading the status so no update falls in between.
	ch := h.progress.Subscribe(id)

	report, err := h.service.ImportStatus(c.Context(), id)
	if err != nil {
		h.progress.Unsubscribe(id, ch)
		return failJSON(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	if report.Status.Terminal() {
		h.progress.Unsubscribe(id, ch)
		data, _ := json.Marshal(report)
		return c.SendString(fmt.Sprintf("event: %s\ndata: %s\n\n", report.Status, string(data)))
	}

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.progress.Unsubscribe(id, ch)

		data, _ := json.Marshal(report)
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", string(data))
		if err := w.Flush(); err != nil {
			return
		}

		timeout := time.After(h.timeout)
		for {
			select {
			case update, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(update)
				eventType := "progress"
				if update.Status.Terminal() {
					eventType = string(update.Status)
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, string(data))
				if err := w.Flush(); err != nil {
					return
				}
				if update.Status.Terminal() {
					return
				}
			case <-timeout:
				slog.Warn("SSE timeout", "import_id", id)
				return
			}
		}
	})
}
