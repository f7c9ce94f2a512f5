// Package api provides the HTTP boundary that exposes tenant-scoped file
// listings and file content to the browser UI.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/auth"
	"github.com/sorenbs/ai-chatbot-full/internal/gateway"
	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
	"github.com/sorenbs/ai-chatbot-full/internal/protocol"
	"github.com/sorenbs/ai-chatbot-full/internal/registry"
	"github.com/sorenbs/ai-chatbot-full/internal/tree"
)

// Error messages returned to the UI. Backend detail is never proxied for
// content endpoints.
const (
	msgProjectIDParam      = "projectId parameter is required"
	msgPathParam           = "Path parameter is required"
	msgPathAndContent      = "Path and content are required"
	msgProjectIDBody       = "projectId is required"
	msgInvalidBody         = "Invalid request body"
	msgFetchFilesFailed    = "Failed to fetch files"
	msgFetchContentFailed  = "Failed to fetch file content"
	msgWriteContentFailed  = "Failed to write file content"
	defaultMaxBodyBytes    = 10 * 1024 * 1024
	defaultListingRootPath = "/"
)

// Gateways resolves the gateway for a tenant.
type Gateways interface {
	Get(tenant string) (*gateway.Gateway, error)
	Len() int
}

// Server is the files API server.
type Server struct {
	gateways     Gateways
	auth         *auth.Auth
	maxBodyBytes int64
}

// NewServer creates a new files API server.
func NewServer(gateways Gateways, authHandler *auth.Auth, maxBodyBytes int64) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{
		gateways:     gateways,
		auth:         authHandler,
		maxBodyBytes: maxBodyBytes,
	}
}

// Handler returns the HTTP handler with auth, logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Protected endpoints
	protected := http.NewServeMux()
	protected.HandleFunc("GET /files/files", s.handleListFiles)
	protected.HandleFunc("GET /files/content", s.handleGetContent)
	protected.HandleFunc("POST /files/content", s.handleWriteContent)

	mux.Handle("/files/", s.auth.Middleware(protected))

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, protocol.HealthResponse{Status: "ok", Tenants: s.gateways.Len()})
}

// handleListFiles handles GET /files/files?path=&projectId=
// Lists one directory level and returns it as sorted tree nodes.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		path = defaultListingRootPath
	}
	projectID := q.Get("projectId")
	if projectID == "" {
		s.sendError(w, http.StatusBadRequest, msgProjectIDParam, "")
		return
	}

	logger := s.requestLogger(r, projectID, path)

	g, err := s.gateways.Get(projectID)
	if err != nil {
		s.logFailure(logger, "list files", err)
		s.sendError(w, http.StatusInternalServerError, msgFetchFilesFailed, err.Error())
		return
	}

	entries, err := g.ListDirectory(r.Context(), path)
	if err != nil {
		s.logFailure(logger, "list files", err)
		s.sendError(w, http.StatusInternalServerError, msgFetchFilesFailed, err.Error())
		return
	}

	nodes, err := tree.Build(entries)
	if err != nil {
		s.logFailure(logger, "build tree", err)
		s.sendError(w, http.StatusInternalServerError, msgFetchFilesFailed, err.Error())
		return
	}

	s.sendJSON(w, http.StatusOK, protocol.FilesResponse{Files: nodes})
}

// handleGetContent handles GET /files/content?path=&projectId=
func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		s.sendError(w, http.StatusBadRequest, msgPathParam, "")
		return
	}
	projectID := q.Get("projectId")
	if projectID == "" {
		s.sendError(w, http.StatusBadRequest, msgProjectIDParam, "")
		return
	}

	logger := s.requestLogger(r, projectID, path)

	g, err := s.gateways.Get(projectID)
	if err != nil {
		s.logFailure(logger, "fetch file content", err)
		s.sendError(w, http.StatusInternalServerError, msgFetchContentFailed, "")
		return
	}

	content, err := g.ReadFile(r.Context(), path)
	if err != nil {
		s.logFailure(logger, "fetch file content", err)
		s.sendError(w, http.StatusInternalServerError, msgFetchContentFailed, "")
		return
	}

	s.sendJSON(w, http.StatusOK, protocol.ContentResponse{Content: string(content)})
}

// handleWriteContent handles POST /files/content
// Body: {"path": "...", "content": "...", "projectId": "..."}
func (s *Server) handleWriteContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req protocol.WriteContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, http.StatusRequestEntityTooLarge, msgInvalidBody, "")
			return
		}
		s.sendError(w, http.StatusBadRequest, msgInvalidBody, "")
		return
	}

	if req.Path == "" || req.Content == nil {
		s.sendError(w, http.StatusBadRequest, msgPathAndContent, "")
		return
	}
	if req.ProjectID == "" {
		s.sendError(w, http.StatusBadRequest, msgProjectIDBody, "")
		return
	}

	logger := s.requestLogger(r, req.ProjectID, req.Path)

	g, err := s.gateways.Get(req.ProjectID)
	if err != nil {
		s.logFailure(logger, "write file content", err)
		s.sendError(w, http.StatusInternalServerError, msgWriteContentFailed, "")
		return
	}

	if err := g.WriteFile(r.Context(), req.Path, []byte(*req.Content)); err != nil {
		s.logFailure(logger, "write file content", err)
		s.sendError(w, http.StatusInternalServerError, msgWriteContentFailed, "")
		return
	}

	logger.Info("file written", zap.Int("bytes", len(*req.Content)))
	s.sendJSON(w, http.StatusOK, protocol.SuccessResponse{Success: true})
}

func (s *Server) requestLogger(r *http.Request, projectID, path string) *zap.Logger {
	logger := logging.WithContext(r.Context()).With(
		zap.String("project_id", projectID),
		zap.String("path", path),
	)
	if claims := auth.GetClaims(r.Context()); claims != nil {
		logger = logger.With(zap.String("user_id", claims.UserID))
	}
	return logger
}

// logFailure logs configuration problems for the operator at error level;
// backend and transport failures are ordinary request failures.
func (s *Server) logFailure(logger *zap.Logger, action string, err error) {
	if registry.IsConfigurationError(err) {
		logger.Error("files gateway misconfigured", zap.String("action", action), zap.Error(err))
		return
	}
	logger.Warn("failed to "+action,
		zap.Int("backend_status", gateway.StatusCode(err)),
		zap.Error(err))
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message, details string) {
	s.sendJSON(w, code, protocol.ErrorResponse{
		Error:   message,
		Details: details,
	})
}
