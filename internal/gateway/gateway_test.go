package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/models"
)

func testGateway(handler http.Handler) (*Gateway, *httptest.Server) {
	ts := httptest.NewServer(handler)
	g := New(Config{Tenant: "p1", BaseURL: ts.URL + "/", Token: "secret"})
	return g, ts
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"//", "/"},
		{"/a/b", "a/b"},
		{"a/b", "a/b"},
		{"//a/b", "a/b"},
		{"a/b/", "a/b/"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListDirectory_RequestShape(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	g, ts := testGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("path")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]models.RawEntry{
			{Filename: "a", FullPath: "/a", Type: "directory"},
			{Filename: "b.ts", FullPath: "/b.ts", Type: "file", Size: 10, LastMod: "t1"},
		})
	}))
	defer ts.Close()

	entries, err := g.ListDirectory(context.Background(), "/src/app")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[1].Size != 10 {
		t.Errorf("entries = %+v", entries)
	}
	if gotPath != "/files/p1" {
		t.Errorf("request path = %q, want /files/p1", gotPath)
	}
	if gotQuery != "src/app" {
		t.Errorf("path param = %q, want src/app", gotQuery)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestForwardsRequestID(t *testing.T) {
	var got []string
	g, ts := testGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get(logging.RequestIDHeader))
		io.WriteString(w, "[]")
	}))
	defer ts.Close()

	g.ListDirectory(logging.WithRequestID(context.Background(), "req-42"), "/")
	g.ListDirectory(context.Background(), "/")

	if len(got) != 2 || got[0] != "req-42" || got[1] != "" {
		t.Errorf("forwarded ids = %q", got)
	}
}

func TestListDirectory_LeadingSlashEquivalent(t *testing.T) {
	var queries []string
	g, ts := testGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		w.Write([]byte("[]"))
	}))
	defer ts.Close()

	for _, p := range []string{"/a/b", "a/b"} {
		if _, err := g.ListDirectory(context.Background(), p); err != nil {
			t.Fatalf("ListDirectory(%q): %v", p, err)
		}
	}
	if len(queries) != 2 || queries[0] != queries[1] {
		t.Errorf("queries differ: %v", queries)
	}

	queries = nil
	g.ListDirectory(context.Background(), "")
	if len(queries) != 1 || queries[0] != "path=%2F" {
		t.Errorf("root query = %v, want path=%%2F", queries)
	}
}

func TestListDirectory_NullBody(t *testing.T) {
	g, ts := testGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer ts.Close()

	entries, err := g.ListDirectory(context.Background(), "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries == nil {
		t.Error("expected empty non-nil listing")
	}
}

func TestReadFile_BackendError(t *testing.T) {
	g, ts := testGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such file", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := g.ReadFile(context.Background(), "/missing.txt")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsBackendError(err) {
		t.Fatalf("expected BackendError, got %T: %v", err, err)
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("status = %d, want 404", StatusCode(err))
	}
	be := err.(*BackendError)
	if be.Message != "no such file" {
		t.Errorf("message = %q", be.Message)
	}
}

func TestReadFile_RawContent(t *testing.T) {
	g, ts := testGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("export const x = 1;\n"))
	}))
	defer ts.Close()

	content, err := g.ReadFile(context.Background(), "/x.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "export const x = 1;\n" {
		t.Errorf("content = %q", content)
	}
}

func TestTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	g := New(Config{Tenant: "p1", BaseURL: url, Token: "secret"})
	_, err := g.ListDirectory(context.Background(), "/")
	if !IsTransportError(err) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if IsBackendError(err) {
		t.Error("transport failure should not be a BackendError")
	}
}

func TestWriteFile(t *testing.T) {
	var gotMethod, gotType, gotBody, gotQuery string
	g, ts := testGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotQuery = r.URL.Query().Get("path")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	if err := g.WriteFile(context.Background(), "/notes/todo.md", []byte("- one\n- two\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotType != "text/plain" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody != "- one\n- two\n" {
		t.Errorf("body = %q", gotBody)
	}
	if gotQuery != "notes/todo.md" {
		t.Errorf("path = %q", gotQuery)
	}
}

func TestWriteFile_BackendError(t *testing.T) {
	g, ts := testGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	err := g.WriteFile(context.Background(), "/x", []byte("x"))
	if StatusCode(err) != http.StatusForbidden {
		t.Fatalf("expected 403 BackendError, got %v", err)
	}
	if be := err.(*BackendError); be.Message != "Forbidden" {
		t.Errorf("message = %q, want status text", be.Message)
	}
}
