// Package protocol defines the request/response types of the files API.
package protocol

import "github.com/sorenbs/ai-chatbot-full/internal/models"

// FilesResponse is returned by GET /files/files
type FilesResponse struct {
	Files []*models.TreeNode `json:"files"`
}

// ContentResponse is returned by GET /files/content
type ContentResponse struct {
	Content string `json:"content"`
}

// WriteContentRequest is the body for POST /files/content.
// Content is a pointer so an empty file can be written.
type WriteContentRequest struct {
	Path      string  `json:"path"`
	Content   *string `json:"content"`
	ProjectID string  `json:"projectId"`
}

// SuccessResponse is returned by POST /files/content
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Tenants int    `json:"tenants"`
}
