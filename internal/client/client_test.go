package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/models"
	"github.com/sorenbs/ai-chatbot-full/internal/protocol"
	"github.com/sorenbs/ai-chatbot-full/internal/retry"
)

func init() {
	logging.SetLogger(zap.NewNop())
}

func newTestClient(url string) *Client {
	return New(Config{
		BaseURL:   url,
		AuthToken: "session",
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
			Multiplier:  1,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func TestListFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/files" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer session" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("projectId") != "p1" || r.URL.Query().Get("path") != "src" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		body := `{"files":[{"name":"lib","type":"folder","path":"src/lib","children":[],"loaded":false},{"name":"main.go","type":"file","path":"src/main.go"}]}`
		w.Write([]byte(body))
	}))
	defer srv.Close()

	nodes, err := newTestClient(srv.URL).ListFiles(context.Background(), "p1", "src")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes", len(nodes))
	}
	if nodes[0].State() != models.NotLoaded || nodes[1].Type != models.TypeFile {
		t.Errorf("nodes = %+v, %+v", nodes[0], nodes[1])
	}
}

func TestReadFile_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: "Failed to fetch file content"})
			return
		}
		writeJSON(w, http.StatusOK, protocol.ContentResponse{Content: "hi"})
	}))
	defer srv.Close()

	content, err := newTestClient(srv.URL).ReadFile(context.Background(), "p1", "a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "hi" {
		t.Errorf("content = %q", content)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestReadFile_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "Path parameter is required"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ReadFile(context.Background(), "p1", "")
	se, ok := AsStatus(err)
	if !ok {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.Status != http.StatusBadRequest || se.Message != "Path parameter is required" {
		t.Errorf("StatusError = %+v", se)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestWriteFile_NotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req protocol.WriteContentRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Content == nil || *req.Content != "" || req.ProjectID != "p1" {
			t.Errorf("request = %+v", req)
		}
		writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: "Failed to write file content"})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).WriteFile(context.Background(), "p1", "a.txt", "")
	if se, ok := AsStatus(err); !ok || se.Status != http.StatusInternalServerError {
		t.Errorf("err = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestWriteFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/files/content" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, protocol.SuccessResponse{Success: true})
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).WriteFile(context.Background(), "p1", "a.txt", "x"); err != nil {
		t.Errorf("WriteFile: %v", err)
	}
}

func TestPing_TracksOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, protocol.HealthResponse{Status: "ok"})
	}))
	c := newTestClient(srv.URL)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !c.IsOnline() {
		t.Error("expected online")
	}

	srv.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected error after close")
	}
	if c.IsOnline() {
		t.Error("expected offline")
	}
}
