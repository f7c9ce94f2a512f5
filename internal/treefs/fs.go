// Package treefs exposes a tenant's lazily loaded tree as a read-only FUSE
// filesystem. Listing a directory expands that folder; opening a file
// fetches its content.
package treefs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/models"
	"github.com/sorenbs/ai-chatbot-full/internal/synctree"
	"github.com/sorenbs/ai-chatbot-full/internal/tree"
)

// TreeFS is the filesystem root state shared by all nodes.
type TreeFS struct {
	sync   *synctree.Synchronizer
	logger *zap.Logger
	uid    uint32
	gid    uint32
}

// New creates a filesystem over s. The tenant must already be selected on s.
func New(s *synctree.Synchronizer, logger *zap.Logger) *TreeFS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeFS{
		sync:   s,
		logger: logger,
		uid:    uint32(os.Getuid()),
		gid:    uint32(os.Getgid()),
	}
}

// Root returns the root directory node.
func (f *TreeFS) Root() *Node {
	return &Node{fsys: f, isDir: true}
}

// Mount mounts the filesystem at the given path.
func (f *TreeFS) Mount(mountPoint string, debug bool) (*gofuse.Server, error) {
	if err := os.MkdirAll(mountPoint, 0755); err != nil {
		return nil, fmt.Errorf("create mount point: %w", err)
	}

	opts := &fs.Options{
		MountOptions: gofuse.MountOptions{
			AllowOther: false,
			Debug:      debug,
			FsName:     "vfs:" + f.sync.Tenant(),
			Name:       "vfs",
		},
		UID: f.uid,
		GID: f.gid,
	}

	server, err := fs.Mount(mountPoint, f.Root(), opts)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	return server, nil
}

// Node is a file or directory. It holds only the path; attributes and
// children are read from the synchronizer's current tree on every call.
type Node struct {
	fs.Inode

	fsys  *TreeFS
	path  string // "" for the root
	isDir bool
}

var _ fs.InodeEmbedder = (*Node)(nil)
var _ fs.NodeGetattrer = (*Node)(nil)
var _ fs.NodeLookuper = (*Node)(nil)
var _ fs.NodeReaddirer = (*Node)(nil)
var _ fs.NodeOpener = (*Node)(nil)
var _ fs.NodeReader = (*Node)(nil)

func (n *Node) isRoot() bool { return n.path == "" }

// children expands the directory and returns its entries.
func (n *Node) children(ctx context.Context) ([]*models.TreeNode, syscall.Errno) {
	if n.isRoot() {
		return n.fsys.sync.Tree().Nodes, 0
	}

	t, err := n.fsys.sync.Expand(ctx, n.path)
	if err != nil {
		n.fsys.logger.Warn("expand failed", zap.String("path", n.path), zap.Error(err))
		return nil, syscall.EIO
	}
	// Read from the returned snapshot, not a later one.
	node := tree.FindByPath(t.Nodes, n.path)
	if node == nil {
		return nil, syscall.ENOENT
	}
	if !node.IsFolder() {
		return nil, syscall.ENOTDIR
	}
	return node.Children, 0
}

func (n *Node) fillAttr(tn *models.TreeNode, out *gofuse.Attr) {
	if tn == nil || tn.IsFolder() {
		out.Mode = 0555 | syscall.S_IFDIR
	} else {
		out.Mode = 0444 | syscall.S_IFREG
		out.Size = uint64(tn.Size)
	}
	if tn != nil && tn.LastModified != "" {
		if t, err := http.ParseTime(tn.LastModified); err == nil {
			out.Mtime = uint64(t.Unix())
		}
	}
	out.Atime = out.Mtime
	out.Ctime = out.Mtime
	out.Uid = n.fsys.uid
	out.Gid = n.fsys.gid
}

// Getattr returns attributes from the current tree.
func (n *Node) Getattr(ctx context.Context, fh fs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	if n.isRoot() {
		n.fillAttr(nil, &out.Attr)
		return 0
	}
	tn := n.fsys.sync.FindByPath(n.path)
	if tn == nil {
		return syscall.ENOENT
	}
	n.fillAttr(tn, &out.Attr)
	return 0
}

// Lookup finds a child by name, expanding this directory first.
func (n *Node) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	children, errno := n.children(ctx)
	if errno != 0 {
		return nil, errno
	}

	for _, c := range children {
		if c.Name != name {
			continue
		}
		child := &Node{fsys: n.fsys, path: c.Path, isDir: c.IsFolder()}
		n.fillAttr(c, &out.Attr)
		return n.NewInode(ctx, child, fs.StableAttr{Mode: out.Mode & syscall.S_IFMT}), 0
	}
	return nil, syscall.ENOENT
}

// Readdir lists directory contents, expanding the directory first.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	if !n.isDir {
		return nil, syscall.ENOTDIR
	}
	children, errno := n.children(ctx)
	if errno != 0 {
		return nil, errno
	}

	entries := make([]gofuse.DirEntry, 0, len(children))
	for _, c := range children {
		mode := uint32(syscall.S_IFREG)
		if c.IsFolder() {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, gofuse.DirEntry{Name: c.Name, Mode: mode})
	}
	return fs.NewListDirStream(entries), 0
}

// fileHandle holds the content fetched at open time.
type fileHandle struct {
	data []byte
}

// Open fetches the whole file. Writes are refused.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if n.isDir {
		return nil, 0, syscall.EISDIR
	}
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	content, err := n.fsys.sync.ReadFile(ctx, n.path)
	if err != nil {
		n.fsys.logger.Warn("read failed", zap.String("path", n.path), zap.Error(err))
		return nil, 0, syscall.EIO
	}
	// Listing sizes can be stale, so the page cache is not kept.
	return &fileHandle{data: []byte(content)}, gofuse.FOPEN_DIRECT_IO, 0
}

// Read serves bytes from the handle opened by Open.
func (n *Node) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (gofuse.ReadResult, syscall.Errno) {
	h, ok := fh.(*fileHandle)
	if !ok {
		return nil, syscall.EIO
	}
	if off >= int64(len(h.data)) {
		return gofuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(h.data)) {
		end = int64(len(h.data))
	}
	return gofuse.ReadResultData(h.data[off:end]), 0
}
