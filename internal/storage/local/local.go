// Package local provides a local filesystem storage backend.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
	"github.com/sorenbs/ai-chatbot-full/internal/models"
)

const (
	backendType = "local"
	tempPattern = ".vfs-*.tmp"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string `json:"root_path"`
	CreateDirs bool   `json:"create_dirs"`
}

// LocalBackend stores objects as files under a root directory.
type LocalBackend struct {
	rootPath   string
	createDirs bool
}

// New creates a new local filesystem backend.
func New(cfg Config) (*LocalBackend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &LocalBackend{
		rootPath:   cfg.RootPath,
		createDirs: cfg.CreateDirs,
	}, nil
}

// NewFromJSON creates a LocalBackend from raw JSON config.
func NewFromJSON(raw json.RawMessage) (*LocalBackend, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse local config: %w", err)
	}
	return New(cfg)
}

// fullPath maps key below the root. Cleaning against "/" keeps ".." from
// escaping it.
func (b *LocalBackend) fullPath(key string) string {
	clean := path.Clean("/" + key)
	return filepath.Join(b.rootPath, filepath.FromSlash(clean))
}

func record(op string, start time.Time, err *error) {
	metrics.RecordStorageOperation(backendType, op, time.Since(start), *err == nil)
}

// List returns the directory entries under key, sorted by name.
func (b *LocalBackend) List(_ context.Context, key string) (infos []models.ObjectInfo, err error) {
	defer record("list", time.Now(), &err)

	entries, err := os.ReadDir(b.fullPath(key))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", key, err)
	}

	infos = make([]models.ObjectInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if matched, _ := filepath.Match(tempPattern, name); matched {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		infos = append(infos, toInfo(joinKey(key, name), fi))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Stat describes the file or directory at key.
func (b *LocalBackend) Stat(_ context.Context, key string) (info models.ObjectInfo, err error) {
	defer record("stat", time.Now(), &err)

	fi, err := os.Stat(b.fullPath(key))
	if err != nil {
		return models.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return toInfo(key, fi), nil
}

// GetObject opens the file at key.
func (b *LocalBackend) GetObject(_ context.Context, key string) (rc io.ReadCloser, size int64, err error) {
	defer record("get_object", time.Now(), &err)

	f, err := os.Open(b.fullPath(key))
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("open %s: is a directory", key)
	}
	return f, info.Size(), nil
}

// PutObject writes content to the local filesystem atomically.
func (b *LocalBackend) PutObject(_ context.Context, key string, body io.Reader, size int64) (err error) {
	defer record("put_object", time.Now(), &err)

	p := b.fullPath(key)
	dir := filepath.Dir(p)

	if b.createDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", key, err)
		}
	}

	// Write to temp file then rename for atomicity
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}

	return nil
}

// Type returns "local".
func (b *LocalBackend) Type() string { return backendType }

// Close is a no-op for local backends.
func (b *LocalBackend) Close() error { return nil }

func toInfo(key string, fi os.FileInfo) models.ObjectInfo {
	info := models.ObjectInfo{
		Key:          key,
		Name:         fi.Name(),
		IsDir:        fi.IsDir(),
		LastModified: fi.ModTime().UTC(),
	}
	if key == "" {
		info.Name = ""
	}
	if !fi.IsDir() {
		info.Size = fi.Size()
	}
	return info
}

func joinKey(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
