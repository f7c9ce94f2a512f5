// Package synctree keeps the client-side view of a tenant's file tree. The
// tree starts with the root listing and grows one folder at a time as the
// user expands it.
//
// Every change installs a new snapshot. Snapshots share unchanged subtrees
// and are never modified after they are published, so callers may hold and
// walk a returned *models.Tree without locking.
package synctree

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
	"github.com/sorenbs/ai-chatbot-full/internal/models"
	"github.com/sorenbs/ai-chatbot-full/internal/tree"
)

// ErrNotConfigured is returned when a tree operation runs before a tenant
// has been selected.
var ErrNotConfigured = errors.New("no active tenant")

// RootPath is the listing path for a tenant's root directory.
const RootPath = "/"

// Transport fetches listings and content for a tenant. It is satisfied by
// *client.Client.
type Transport interface {
	ListFiles(ctx context.Context, tenant, path string) ([]*models.TreeNode, error)
	ReadFile(ctx context.Context, tenant, path string) (string, error)
	WriteFile(ctx context.Context, tenant, path, content string) error
}

// Options configures a Synchronizer.
type Options struct {
	// Coalesce shares one in-flight listing between concurrent expansions
	// of the same folder.
	Coalesce bool

	Logger *zap.Logger
}

// Synchronizer owns the cached tree for the active tenant.
type Synchronizer struct {
	transport Transport
	coalesce  bool
	logger    *zap.Logger
	group     singleflight.Group

	mu sync.RWMutex
	// seq orders refreshes and tenant switches; only the latest may install.
	seq uint64
	// epoch advances whenever a snapshot replaces the tree rather than
	// extending it. A listing fetched under an older epoch is not merged.
	epoch uint64
	snap  *models.Tree
}

// New creates a Synchronizer with no active tenant.
func New(transport Transport, opts Options) *Synchronizer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		transport: transport,
		coalesce:  opts.Coalesce,
		logger:    logger,
		snap:      &models.Tree{Nodes: []*models.TreeNode{}},
	}
}

// Tree returns the current snapshot.
func (s *Synchronizer) Tree() *models.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Tenant returns the active tenant, or "" when none is selected.
func (s *Synchronizer) Tenant() string {
	return s.Tree().Tenant
}

// SetTenant makes tenant active. Switching to a different tenant drops the
// cached tree; the new tenant starts empty until Refresh.
func (s *Synchronizer) SetTenant(tenant string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Tenant == tenant {
		return
	}
	s.seq++
	s.epoch++
	s.install(&models.Tree{Tenant: tenant, Generation: s.epoch, Nodes: []*models.TreeNode{}})
	s.logger.Info("tenant switched", zap.String("tenant", tenant))
}

// FindByPath looks up path in the current snapshot.
func (s *Synchronizer) FindByPath(path string) *models.TreeNode {
	return tree.FindByPath(s.Tree().Nodes, path)
}

// Refresh fetches the root listing for tenant and installs it as a fresh
// tree, making tenant active. If the fetch fails, the previous tree is kept
// when it belongs to the same tenant and an empty tree is installed
// otherwise; the error is returned in both cases. A kept tree keeps its
// generation, so expansions in flight against it still merge.
func (s *Synchronizer) Refresh(ctx context.Context, tenant string) (*models.Tree, error) {
	if tenant == "" {
		return s.Tree(), ErrNotConfigured
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	logger := s.logger.With(zap.String("tenant", tenant))

	nodes, err := s.list(ctx, tenant, RootPath)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq != seq {
		// A later refresh or tenant switch owns the tree now.
		logger.Debug("refresh superseded")
		return s.snap, err
	}

	if err != nil {
		metrics.RecordRefresh(false)
		if s.snap.Tenant != tenant {
			s.epoch++
			s.install(&models.Tree{Tenant: tenant, Generation: s.epoch, Nodes: []*models.TreeNode{}})
		}
		logger.Warn("refresh failed", zap.Error(err))
		return s.snap, err
	}

	if nodes == nil {
		nodes = []*models.TreeNode{}
	}
	s.epoch++
	s.install(&models.Tree{Tenant: tenant, Generation: s.epoch, Nodes: nodes})
	metrics.RecordRefresh(true)
	logger.Debug("tree refreshed",
		zap.Uint64("generation", s.epoch), zap.Int("entries", len(nodes)))
	return s.snap, nil
}

// Expand loads the children of the folder at path and merges them into the
// tree. It does nothing when the folder is already loaded or is not in the
// tree. A failed fetch is logged and leaves the tree unchanged; the folder
// simply stays collapsed and no error is returned.
func (s *Synchronizer) Expand(ctx context.Context, path string) (*models.Tree, error) {
	s.mu.RLock()
	snap, epoch := s.snap, s.epoch
	s.mu.RUnlock()

	if snap.Tenant == "" {
		return snap, ErrNotConfigured
	}

	logger := s.logger.With(zap.String("tenant", snap.Tenant), zap.String("path", path))

	node := tree.FindByPath(snap.Nodes, path)
	switch {
	case node == nil || !node.IsFolder():
		metrics.RecordExpand("missing")
		logger.Debug("expand skipped, no folder at path")
		return snap, nil
	case node.Loaded:
		metrics.RecordExpand("noop")
		return snap, nil
	}

	children, err := s.fetchChildren(ctx, snap.Tenant, epoch, path)
	if err != nil {
		metrics.RecordExpand("failed")
		logger.Warn("expand failed", zap.Error(err))
		return s.Tree(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		metrics.RecordExpand("stale")
		logger.Debug("expand dropped, tree was replaced")
		return s.snap, nil
	}

	// A concurrent expansion of the same folder may have merged first, and
	// its subfolders may since have loaded.
	if current := tree.FindByPath(s.snap.Nodes, path); current != nil && current.Loaded {
		metrics.RecordExpand("noop")
		return s.snap, nil
	}

	merged, ok := tree.ReplaceChildren(s.snap.Nodes, path, children)
	if !ok {
		metrics.RecordExpand("missing")
		return s.snap, nil
	}
	s.install(&models.Tree{Tenant: s.snap.Tenant, Generation: s.snap.Generation, Nodes: merged})
	metrics.RecordExpand("fetched")
	logger.Debug("folder expanded", zap.Int("children", len(children)))
	return s.snap, nil
}

func (s *Synchronizer) fetchChildren(ctx context.Context, tenant string, epoch uint64, path string) ([]*models.TreeNode, error) {
	if !s.coalesce {
		return s.list(ctx, tenant, path)
	}

	key := tenant + "\x00" + strconv.FormatUint(epoch, 10) + "\x00" + path
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.list(ctx, tenant, path)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("listing shared", zap.String("path", path))
	}
	return v.([]*models.TreeNode), nil
}

// list fetches one listing and puts it in sort order if the transport did
// not.
func (s *Synchronizer) list(ctx context.Context, tenant, path string) ([]*models.TreeNode, error) {
	nodes, err := s.transport.ListFiles(ctx, tenant, path)
	if err != nil {
		return nil, err
	}
	if !tree.IsSorted(nodes) {
		tree.Sort(nodes)
	}
	return nodes, nil
}

// ReadFile returns the content of the file at path for the active tenant.
func (s *Synchronizer) ReadFile(ctx context.Context, path string) (string, error) {
	tenant := s.Tenant()
	if tenant == "" {
		return "", ErrNotConfigured
	}
	return s.transport.ReadFile(ctx, tenant, path)
}

// WriteFile overwrites the file at path for the active tenant. The tree is
// not changed.
func (s *Synchronizer) WriteFile(ctx context.Context, path, content string) error {
	tenant := s.Tenant()
	if tenant == "" {
		return ErrNotConfigured
	}
	if err := s.transport.WriteFile(ctx, tenant, path, content); err != nil {
		s.logger.Warn("write failed",
			zap.String("tenant", tenant), zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

// install publishes snap. Callers hold s.mu.
func (s *Synchronizer) install(snap *models.Tree) {
	s.snap = snap
	metrics.SetTreeSize(tree.CountNodes(snap.Nodes))
}
