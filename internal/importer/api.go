package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arturoeanton/docgraph/internal/domain"
)

// Client talks to the DocGraph repository API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the API rooted at baseURL, for example
// "http://localhost:3001/api". A nil httpClient gets a 30s timeout client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// StartImport asks the backend to import url and returns the import id.
func (c *Client) StartImport(ctx context.Context, repoURL string) (string, error) {
	var out struct {
		ImportID string `json:"importId"`
	}
	body := map[string]string{"url": repoURL}
	if err := c.do(ctx, http.MethodPost, "/repositories/import", body, &out); err != nil {
		return "", err
	}
	if out.ImportID == "" {
		return "", fmt.Errorf("%w: import response has no importId", ErrNetwork)
	}
	return out.ImportID, nil
}

// ImportStatus fetches the status of an import.
func (c *Client) ImportStatus(ctx context.Context, importID string) (*domain.ImportStatusReport, error) {
	var out domain.ImportStatusReport
	if err := c.do(ctx, http.MethodGet, "/repositories/"+url.PathEscape(importID)+"/status", nil, &out); err != nil {
		return nil, err
	}
	if out.Status == "" {
		return nil, fmt.Errorf("%w: status response has no status", ErrNetwork)
	}
	return &out, nil
}

// ListRepositories returns the imported repositories.
func (c *Client) ListRepositories(ctx context.Context) ([]domain.Repository, error) {
	var out []domain.Repository
	if err := c.do(ctx, http.MethodGet, "/repositories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SyncRepository starts a re-sync of a repository.
func (c *Client) SyncRepository(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/repositories/"+url.PathEscape(id)+"/sync", nil, nil)
}

// DeleteRepository removes a repository.
func (c *Client) DeleteRepository(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/repositories/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrNetwork, method, path, err)
	}
	return nil
}
