package fsutil

import "time"

// DocumentInfo describes one file in the documents directory.
type DocumentInfo struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// FileStore provides an interface for document directory operations
type FileStore interface {
	// MakeDirectory creates a new directory and all necessary parents
	MakeDirectory(path string) error

	// SaveFile writes data to path, creating parent directories as needed
	SaveFile(path string, data []byte) error

	// ListFiles returns the files (not directories) directly under path
	ListFiles(path string) ([]DocumentInfo, error)

	// Remove deletes a single file
	Remove(path string) error
}
