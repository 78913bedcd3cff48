package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/port"
)

const tempSuffix = ".downloading"

// Manager handles the cache directory layout <root>/<mediaId>/<kind>.<ext>
type Manager struct {
	rootDir    string
	bufferSize int
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager(rootDir string) (*Manager, error) {
	return NewManagerWithBufferSize(rootDir, 1024*1024) // 1MB default
}

// NewManagerWithBufferSize creates a new filesystem manager with custom buffer size
func NewManagerWithBufferSize(rootDir string, bufferSize int) (*Manager, error) {
	// Ensure root directory exists
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, domain.NewStorageError("create cache root", rootDir, err)
	}

	if bufferSize <= 0 {
		bufferSize = 1024 * 1024
	}

	return &Manager{
		rootDir:    rootDir,
		bufferSize: bufferSize,
	}, nil
}

// RootDir returns the cache root directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// CachePath returns the local cache path for a cache key
func (m *Manager) CachePath(key domain.CacheKey) string {
	return filepath.Join(m.rootDir, key.MediaID, key.Kind.FileName())
}

// WriteTemp streams reader into a uniquely named temp file in the media
// directory. Concurrent writers for the same key never share a temp file.
func (m *Manager) WriteTemp(key domain.CacheKey, reader io.Reader) (string, int64, error) {
	cachePath := m.CachePath(key)

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return "", 0, domain.NewStorageError("create media dir", filepath.Dir(cachePath), err)
	}

	tempPath := cachePath + "." + uuid.NewString() + tempSuffix
	f, err := createFile(tempPath)
	if err != nil {
		return "", 0, domain.NewStorageError("create temp file", tempPath, err)
	}

	buf := make([]byte, m.bufferSize)
	written, err := io.CopyBuffer(f, reader, buf)
	if err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to write %s: %w", tempPath, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", 0, domain.NewStorageError("close temp file", tempPath, err)
	}

	return tempPath, written, nil
}

// createFile creates path, recreating its directory once if an empty-dir
// sweep removed it after the caller made it
func createFile(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// Commit renames a finished temp file to its final path
func (m *Manager) Commit(tempPath string, key domain.CacheKey) (string, error) {
	cachePath := m.CachePath(key)
	if err := os.Rename(tempPath, cachePath); err != nil {
		os.Remove(tempPath)
		return "", domain.NewStorageError("rename temp file", cachePath, err)
	}
	return cachePath, nil
}

// DeleteFile removes a cached file
func (m *Manager) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return domain.NewStorageError("delete file", path, err)
	}
	return nil
}

// RemoveDirIfEmpty removes a media directory once its last asset is gone
func (m *Manager) RemoveDirIfEmpty(dir string) error {
	if dir == m.rootDir {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return domain.NewStorageError("read dir", dir, err)
	}
	if len(entries) > 0 {
		return nil
	}
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		return domain.NewStorageError("remove dir", dir, err)
	}
	return nil
}

// FileExists checks if a cached file exists
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Scan walks exactly two levels below root. Files that are not a known
// "<kind>.<ext>" name (temp files, stray files) are skipped.
func (m *Manager) Scan() ([]port.ScannedFile, error) {
	mediaDirs, err := os.ReadDir(m.rootDir)
	if err != nil {
		return nil, domain.NewStorageError("scan cache root", m.rootDir, err)
	}

	var files []port.ScannedFile
	for _, dir := range mediaDirs {
		if !dir.IsDir() {
			continue
		}
		dirPath := filepath.Join(m.rootDir, dir.Name())
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			kind, ok := domain.ParseAssetFileName(entry.Name())
			if !ok {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, port.ScannedFile{
				Key:     domain.CacheKey{MediaID: dir.Name(), Kind: kind},
				Path:    filepath.Join(dirPath, entry.Name()),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
	}
	return files, nil
}

// WriteRootFile atomically replaces name in the cache root
func (m *Manager) WriteRootFile(name string, data []byte) error {
	path := filepath.Join(m.rootDir, name)
	tempPath := path + "." + uuid.NewString() + tempSuffix
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		os.Remove(tempPath)
		return domain.NewStorageError("write", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return domain.NewStorageError("rename", path, err)
	}
	return nil
}

// ReadRootFile reads name from the cache root
func (m *Manager) ReadRootFile(name string) ([]byte, error) {
	path := filepath.Join(m.rootDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, domain.NewStorageError("read", path, err)
	}
	return data, nil
}

// CleanOldTempFiles removes temp files older than the specified duration
func (m *Manager) CleanOldTempFiles(olderThan time.Duration) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, tempSuffix) && info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}

// CleanEmptyDirs removes empty directories under root
func (m *Manager) CleanEmptyDirs() error {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return domain.NewStorageError("read dir", m.rootDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			os.Remove(filepath.Join(m.rootDir, entry.Name())) // Will only succeed if empty
		}
	}
	return nil
}
