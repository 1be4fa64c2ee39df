package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/docgraph/internal/domain"
)

type auditRecord struct {
	action, resourceID string
}

type recordingWriter struct {
	mu      sync.Mutex
	records []auditRecord
}

func (w *recordingWriter) WriteAudit(action, _, resourceID, _, _, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, auditRecord{action: action, resourceID: resourceID})
	return nil
}

func (w *recordingWriter) snapshot() []auditRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]auditRecord(nil), w.records...)
}

func TestAuditMiddleware_RecordsActions(t *testing.T) {
	w := &recordingWriter{}
	app := fiber.New()
	app.Use(AuditMiddleware(w))
	ok := func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Post("/api/repositories/import", ok)
	app.Delete("/api/repositories/:id", ok)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/repositories/import", nil),
		httptest.NewRequest(http.MethodDelete, "/api/repositories/r1", nil),
	} {
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	require.Eventually(t, func() bool { return len(w.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	actions := map[string]string{}
	for _, r := range w.snapshot() {
		actions[r.resourceID] = r.action
	}
	assert.Equal(t, domain.AuditActionImportStart, actions["/api/repositories/import"])
	assert.Equal(t, domain.AuditActionRepoDelete, actions["/api/repositories/r1"])
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Post("/import", RateLimit("import", 2, time.Minute), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	codes := make([]int, 0, 3)
	for range 3 {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/import", nil))
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}, codes)
}
