package port

import (
	"io"
	"time"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// ScannedFile is one asset found on disk during an index rebuild
type ScannedFile struct {
	Key     domain.CacheKey
	Path    string
	Size    int64
	ModTime time.Time
}

// FileSystem defines the interface for cache directory operations
type FileSystem interface {
	// RootDir returns the cache root directory
	RootDir() string

	// CachePath returns <root>/<mediaId>/<kind>.<ext>
	CachePath(key domain.CacheKey) string

	// WriteTemp streams reader into a unique temp file next to the final
	// location. Returns: temp path, bytes written, error
	WriteTemp(key domain.CacheKey, reader io.Reader) (string, int64, error)

	// Commit renames a temp file written by WriteTemp to its final path
	Commit(tempPath string, key domain.CacheKey) (string, error)

	// DeleteFile removes a cached file; a missing file is not an error
	DeleteFile(path string) error

	// RemoveDirIfEmpty removes dir when it has no entries left
	RemoveDirIfEmpty(dir string) error

	// FileExists checks if a cached file exists
	FileExists(path string) bool

	// Scan walks <root>/<mediaId>/<file> and returns recognised assets in
	// directory order
	Scan() ([]ScannedFile, error)

	// WriteRootFile atomically replaces a file in the cache root
	WriteRootFile(name string, data []byte) error

	// ReadRootFile reads a file in the cache root
	ReadRootFile(name string) ([]byte, error)

	// GetDiskUsage returns disk usage statistics
	GetDiskUsage() (*DiskUsage, error)

	// CleanOldTempFiles removes temp files older than the specified duration
	// Returns the number of files deleted
	CleanOldTempFiles(olderThan time.Duration) (int, error)

	// CleanEmptyDirs removes empty media directories under root
	CleanEmptyDirs() error
}
