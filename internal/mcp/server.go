package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/arturoeanton/docgraph/internal/domain"
)

// RepositoryService is the part of the import workflow exposed as tools.
type RepositoryService interface {
	StartImport(ctx context.Context, url string) (*domain.ImportJob, error)
	ImportStatus(ctx context.Context, importID string) (*domain.ImportStatusReport, error)
	ListRepositories(ctx context.Context, limit, offset int) ([]domain.Repository, error)
	SyncRepository(ctx context.Context, id string) error
}

// Server implements the Model Context Protocol (MCP) server.
// It lets external agents import repositories and follow them. Deletion is
// not exposed since it needs a human confirmation.
type Server struct {
	service RepositoryService
	port    string
}

// NewServer creates a new MCP server.
func NewServer(service RepositoryService, port string) *Server {
	return &Server{service: service, port: port}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var errInvalidArguments = errors.New("invalid arguments")

// Handler returns the MCP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)
	return mux
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	slog.Info("MCP server starting", "port", s.port)
	return http.ListenAndServe(":"+s.port, s.Handler())
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	var result any
	var err error

	switch req.Method {
	case "tools/list":
		result = map[string]any{"tools": tools}
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	case "initialize":
		result = map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "docgraph",
				"version": "1.0.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, -32601, "method not found")
		return
	}

	if errors.Is(err, errInvalidArguments) {
		writeError(w, req.ID, -32602, err.Error())
		return
	}
	if err != nil {
		writeError(w, req.ID, -32603, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	flusher.Flush()

	<-r.Context().Done()
}

var tools = []Tool{
	{
		Name:        "import_repository",
		Description: "Start importing a GitHub, GitLab or Bitbucket repository",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "HTTPS or SSH clone URL"}
			},
			"required": ["url"]
		}`),
	},
	{
		Name:        "import_status",
		Description: "Get the status and progress of an import",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"import_id": {"type": "string", "description": "Import ID returned by import_repository"}
			},
			"required": ["import_id"]
		}`),
	},
	{
		Name:        "list_repositories",
		Description: "List imported repositories",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "description": "Maximum number of repositories, default 50"}
			}
		}`),
	},
	{
		Name:        "sync_repository",
		Description: "Pull the latest changes of an imported repository",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"repo_id": {"type": "string", "description": "Repository ID"}
			},
			"required": ["repo_id"]
		}`),
	},
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArguments, err)
	}

	var args struct {
		URL      string `json:"url"`
		ImportID string `json:"import_id"`
		RepoID   string `json:"repo_id"`
		Limit    int    `json:"limit"`
	}
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidArguments, err)
		}
	}

	switch req.Name {
	case "import_repository":
		if args.URL == "" {
			return nil, fmt.Errorf("%w: url is required", errInvalidArguments)
		}
		job, err := s.service.StartImport(ctx, args.URL)
		if err != nil {
			return nil, err
		}
		return textResult(fmt.Sprintf("Import %s started for %s", job.ID, job.SourceURL), job), nil

	case "import_status":
		if args.ImportID == "" {
			return nil, fmt.Errorf("%w: import_id is required", errInvalidArguments)
		}
		report, err := s.service.ImportStatus(ctx, args.ImportID)
		if err != nil {
			return nil, err
		}
		return textResult(fmt.Sprintf("%s (%d%%): %s", report.Status, report.Progress, report.Message), report), nil

	case "list_repositories":
		limit := args.Limit
		if limit <= 0 {
			limit = 50
		}
		repos, err := s.service.ListRepositories(ctx, limit, 0)
		if err != nil {
			return nil, err
		}
		return textResult(fmt.Sprintf("%d repositories", len(repos)), repos), nil

	case "sync_repository":
		if args.RepoID == "" {
			return nil, fmt.Errorf("%w: repo_id is required", errInvalidArguments)
		}
		if err := s.service.SyncRepository(ctx, args.RepoID); err != nil {
			return nil, err
		}
		return textResult("Repository sync started", nil), nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", req.Name)
	}
}

func textResult(text string, data any) map[string]any {
	out := map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
	}
	if data != nil {
		out["data"] = data
	}
	return out
}

func writeResult(w http.ResponseWriter, id any, result any) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to write MCP response", "error", err)
	}
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to write MCP response", "error", err)
	}
}
