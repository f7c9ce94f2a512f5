// Package filestore serves tenant-scoped directory listings and file
// content over HTTP from a storage backend. It is the remote store the
// files gateway talks to.
package filestore

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
	"github.com/sorenbs/ai-chatbot-full/internal/models"
	"github.com/sorenbs/ai-chatbot-full/internal/protocol"
	"github.com/sorenbs/ai-chatbot-full/internal/storage"
	"github.com/sorenbs/ai-chatbot-full/internal/tree"
)

// Handler serves GET and POST /files/{projectId}?path=
type Handler struct {
	backend      storage.Backend
	apiKey       []byte
	maxBodyBytes int64
}

// New creates a file store handler. Requests must carry apiKey as a bearer
// token.
func New(backend storage.Backend, apiKey string, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 * 1024 * 1024
	}
	return &Handler{
		backend:      backend,
		apiKey:       []byte(apiKey),
		maxBodyBytes: maxBodyBytes,
	}
}

// Routes returns the HTTP handler with logging and metrics middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)

	files := http.NewServeMux()
	files.HandleFunc("GET /files/{projectId}", h.handleGet)
	files.HandleFunc("POST /files/{projectId}", h.handlePut)
	mux.Handle("/files/", h.requireKey(files))

	return metrics.Middleware(logging.Middleware(mux))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.HealthResponse{Status: "ok"})
}

func (h *Handler) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), h.apiKey) != 1 {
			metrics.RecordAuthAttempt(false)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resolve validates the tenant and maps the path query to a backend key.
// rel is the cleaned path relative to the tenant root ("" for the root).
func resolve(r *http.Request) (tenant, rel, key string, ok bool) {
	tenant = r.PathValue("projectId")
	if tenant == "" || storage.CleanKey(tenant) != tenant || strings.Contains(tenant, "/") {
		return "", "", "", false
	}
	rel = storage.CleanKey(r.URL.Query().Get("path"))
	return tenant, rel, storage.JoinKey(tenant, rel), true
}

// handleGet returns a JSON listing for a directory and raw text for a file.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenant, rel, key, ok := resolve(r)
	if !ok {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}
	logger := logging.WithContext(r.Context()).With(
		zap.String("tenant", tenant), zap.String("key", key))

	info, err := h.backend.Stat(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			if rel == "" {
				// A tenant that has never written anything has an empty root.
				h.sendListing(w, rel, nil)
				return
			}
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		logger.Error("stat failed", zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	if info.IsDir {
		infos, err := h.backend.List(r.Context(), key)
		if err != nil && !(rel == "" && errors.Is(err, storage.ErrNotFound)) {
			logger.Error("list failed", zap.Error(err))
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		h.sendListing(w, rel, infos)
		return
	}

	rc, size, err := h.backend.GetObject(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		logger.Error("read failed", zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		logger.Warn("content stream interrupted", zap.Error(err))
	}
}

// sendListing writes the entries of the directory at rel, a tenant-relative
// key. fullPath is reported from the tenant root with a leading "/".
func (h *Handler) sendListing(w http.ResponseWriter, rel string, infos []models.ObjectInfo) {
	entries := make([]models.RawEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, toRawEntry("/"+rel, info))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func toRawEntry(parent string, info models.ObjectInfo) models.RawEntry {
	e := models.RawEntry{
		Filename: info.Name,
		FullPath: tree.BuildChildPath(parent, info.Name),
		Type:     models.EntryFile,
		Size:     info.Size,
	}
	if info.IsDir {
		e.Type = models.EntryDirectory
	}
	if !info.LastModified.IsZero() {
		e.LastMod = info.LastModified.UTC().Format(http.TimeFormat)
	}
	return e
}

// handlePut replaces the file at path with the raw request body.
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	tenant, rel, key, ok := resolve(r)
	if !ok {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}
	if rel == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	logger := logging.WithContext(r.Context()).With(
		zap.String("tenant", tenant), zap.String("key", key))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "content too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if info, err := h.backend.Stat(r.Context(), key); err == nil && info.IsDir {
		http.Error(w, "path is a directory", http.StatusConflict)
		return
	}

	if err := h.backend.PutObject(r.Context(), key, bytes.NewReader(body), int64(len(body))); err != nil {
		logger.Error("write failed", zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	logger.Info("file stored", zap.Int("bytes", len(body)))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.SuccessResponse{Success: true})
}
