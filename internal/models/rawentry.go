package models

// Entry kinds reported by the remote store.
const (
	EntryFile      = "file"
	EntryDirectory = "directory"
)

// RawEntry is one item of a remote directory listing, as returned by the
// storage backend.
type RawEntry struct {
	Filename string `json:"filename"`
	FullPath string `json:"fullPath"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	LastMod  string `json:"lastmod"`
}
