// Package manifest holds the records exchanged between the catalog server
// and clients: bulk install manifests, save listings and per-game metadata.
package manifest

import (
	"time"

	"github.com/opencontainers/go-digest"
)

const (
	ManifestFile = "manifest.csv"
	MetadataFile = "metadata.yaml"
	IgnoreFile   = ".gameboxignore"
)

// BulkFileRecord is one installation file of a game. Path is relative to the
// game's install root and always uses forward slashes.
type BulkFileRecord struct {
	Name         string
	Path         string
	Size         int64
	LastModified time.Time
	Hash         digest.Digest
}

// Manifest is the full list of a game's bulk files.
type Manifest struct {
	Game  string
	Files []BulkFileRecord
}

func (m *Manifest) TotalSize() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Size
	}
	return n
}

// SaveFileRecord is one file inside a sync folder. Path is relative to the
// folder root.
type SaveFileRecord struct {
	Name         string    `json:"file_name"`
	Path         string    `json:"file_path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// FolderKey names a sync folder on the server. It is derived from the
// unresolved template so every client maps the same declaration to the same
// remote namespace regardless of where it resolves locally.
func FolderKey(template string) string {
	return digest.FromString(template).Encoded()[:16]
}
