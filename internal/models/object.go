package models

import "time"

// ObjectInfo describes one stored object or directory. Keys are
// slash-separated and carry no leading or trailing separator.
type ObjectInfo struct {
	Key          string
	Name         string
	IsDir        bool
	Size         int64
	LastModified time.Time
}
