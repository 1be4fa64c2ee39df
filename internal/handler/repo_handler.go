package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/docgraph/internal/domain"
	"github.com/arturoeanton/docgraph/internal/port"
	"github.com/arturoeanton/docgraph/internal/repourl"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// RepositoryService is the backend behavior the repository routes expose.
type RepositoryService interface {
	StartImport(ctx context.Context, url string) (*domain.ImportJob, error)
	ImportStatus(ctx context.Context, importID string) (*domain.ImportStatusReport, error)
	ListRepositories(ctx context.Context, limit, offset int) ([]domain.Repository, error)
	GetRepository(ctx context.Context, id string) (*domain.Repository, error)
	SyncRepository(ctx context.Context, id string) error
	DeleteRepository(ctx context.Context, id string) error
}

// RepoHandler handles repository import, listing, sync and delete.
type RepoHandler struct {
	service     RepositoryService
	importLimit fiber.Handler
}

// NewRepoHandler creates a new repo handler. importLimit, when non-nil,
// guards the import route only.
func NewRepoHandler(service RepositoryService, importLimit fiber.Handler) *RepoHandler {
	if importLimit == nil {
		importLimit = func(c fiber.Ctx) error { return c.Next() }
	}
	return &RepoHandler{service: service, importLimit: importLimit}
}

// Register sets up repository routes.
func (h *RepoHandler) Register(router fiber.Router) {
	repos := router.Group("/repositories")
	repos.Get("/", h.List)
	repos.Post("/import", h.importLimit, h.Import)
	repos.Get("/:importId/status", h.Status)
	repos.Get("/:id", h.Get)
	repos.Put("/:id/sync", h.Sync)
	repos.Delete("/:id", h.Delete)
}

// Import starts importing a Git repository in the background.
func (h *RepoHandler) Import(c fiber.Ctx) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	job, err := h.service.StartImport(c.Context(), body.URL)
	if err != nil {
		return failJSON(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"importId": job.ID,
		"message":  "Import started. Use the importId to check progress.",
	})
}

// Status returns the progress of an import and, once completed, the
// imported repository.
func (h *RepoHandler) Status(c fiber.Ctx) error {
	report, err := h.service.ImportStatus(c.Context(), c.Params("importId"))
	if err != nil {
		return failJSON(c, err)
	}
	return c.JSON(report)
}

// List returns imported repositories, newest first.
func (h *RepoHandler) List(c fiber.Ctx) error {
	limit := queryInt(c, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	repos, err := h.service.ListRepositories(c.Context(), limit, offset)
	if err != nil {
		return failJSON(c, err)
	}
	if repos == nil {
		repos = []domain.Repository{}
	}
	return c.JSON(repos)
}

// Get returns a single repository.
func (h *RepoHandler) Get(c fiber.Ctx) error {
	repo, err := h.service.GetRepository(c.Context(), c.Params("id"))
	if err != nil {
		return failJSON(c, err)
	}
	return c.JSON(repo)
}

// Sync starts pulling the latest changes of a repository.
func (h *RepoHandler) Sync(c fiber.Ctx) error {
	if err := h.service.SyncRepository(c.Context(), c.Params("id")); err != nil {
		return failJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "Repository sync started"})
}

// Delete removes a repository and its data.
func (h *RepoHandler) Delete(c fiber.Ctx) error {
	if err := h.service.DeleteRepository(c.Context(), c.Params("id")); err != nil {
		return failJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "Repository deleted successfully"})
}

// failJSON maps service errors onto HTTP responses.
func failJSON(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repourl.ErrEmptyURL), errors.Is(err, repourl.ErrUnsupportedURLFormat):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, port.ErrImportJobNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Import job not found")
	case errors.Is(err, port.ErrRepositoryNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Repository not found")
	}
	slog.Error("repository request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return errorJSON(c, fiber.StatusInternalServerError, "internal server error")
}

func errorJSON(c fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

// queryInt reads an integer query param with a default value.
func queryInt(c fiber.Ctx, key string, defaultVal int) int {
	v := c.Query(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
