package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

func TestManager_WriteTempAndCommit(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	key := domain.CacheKey{MediaID: "m1", Kind: domain.KindVideo}

	tempPath, written, err := m.WriteTemp(key, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("WriteTemp() error = %v", err)
	}
	if written != 5 {
		t.Errorf("written = %d, want 5", written)
	}
	if !strings.HasSuffix(tempPath, tempSuffix) {
		t.Errorf("temp path %q lacks %q suffix", tempPath, tempSuffix)
	}

	path, err := m.Commit(tempPath, key)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	want := filepath.Join(m.RootDir(), "m1", "video.mp4")
	if path != want {
		t.Errorf("Commit() path = %q, want %q", path, want)
	}
	if m.FileExists(tempPath) {
		t.Error("temp file should be gone after commit")
	}
	if !m.FileExists(path) {
		t.Error("committed file should exist")
	}
}

func TestManager_Scan(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	write := func(rel string, size int) {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("a/display.jpg", 10)
	write("a/blur.jpg", 3)
	write("a/display.jpg.1234.downloading", 7)
	write("b/video.mp4", 20)
	write("b/notes.txt", 1)
	write("playlist.json", 2)
	write("c/nested/display.jpg", 5)

	files, err := m.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	got := map[domain.CacheKey]int64{}
	for _, f := range files {
		got[f.Key] = f.Size
	}
	want := map[domain.CacheKey]int64{
		{MediaID: "a", Kind: domain.KindDisplay}: 10,
		{MediaID: "a", Kind: domain.KindBlur}:    3,
		{MediaID: "b", Kind: domain.KindVideo}:   20,
	}
	if len(got) != len(want) {
		t.Fatalf("Scan() found %d files, want %d: %v", len(got), len(want), got)
	}
	for k, size := range want {
		if got[k] != size {
			t.Errorf("size[%s] = %d, want %d", k, got[k], size)
		}
	}
}

func TestManager_RemoveDirIfEmpty(t *testing.T) {
	root := t.TempDir()
	m, _ := NewManager(root)
	dir := filepath.Join(root, "x")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "display.jpg"), []byte("1"), 0644)

	if err := m.RemoveDirIfEmpty(dir); err != nil {
		t.Fatalf("RemoveDirIfEmpty() error = %v", err)
	}
	if !m.FileExists(dir) {
		t.Fatal("non-empty dir should be kept")
	}

	m.DeleteFile(filepath.Join(dir, "display.jpg"))
	if err := m.RemoveDirIfEmpty(dir); err != nil {
		t.Fatalf("RemoveDirIfEmpty() error = %v", err)
	}
	if m.FileExists(dir) {
		t.Error("empty dir should be removed")
	}
	if err := m.RemoveDirIfEmpty(root); err != nil || !m.FileExists(root) {
		t.Error("root must never be removed")
	}
}

func TestManager_RootFiles(t *testing.T) {
	m, _ := NewManager(t.TempDir())

	if _, err := m.ReadRootFile("playlist.json"); !os.IsNotExist(err) {
		t.Errorf("ReadRootFile() on missing file error = %v, want not-exist", err)
	}
	if err := m.WriteRootFile("playlist.json", []byte("[]")); err != nil {
		t.Fatalf("WriteRootFile() error = %v", err)
	}
	data, err := m.ReadRootFile("playlist.json")
	if err != nil || string(data) != "[]" {
		t.Errorf("ReadRootFile() = %q, %v", data, err)
	}
}

func TestManager_CleanOldTempFiles(t *testing.T) {
	root := t.TempDir()
	m, _ := NewManager(root)
	dir := filepath.Join(root, "a")
	os.MkdirAll(dir, 0755)

	old := filepath.Join(dir, "display.jpg.old.downloading")
	fresh := filepath.Join(dir, "blur.jpg.new.downloading")
	os.WriteFile(old, []byte("x"), 0644)
	os.WriteFile(fresh, []byte("x"), 0644)
	past := time.Now().Add(-48 * time.Hour)
	os.Chtimes(old, past, past)

	count, err := m.CleanOldTempFiles(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanOldTempFiles() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if m.FileExists(old) || !m.FileExists(fresh) {
		t.Error("only the stale temp file should be removed")
	}
}

func TestCreateFile_RecreatesSweptDir(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	// An empty media dir, as left between MkdirAll and Create in WriteTemp
	dir := filepath.Join(root, "m1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := m.CleanEmptyDirs(); err != nil {
		t.Fatalf("CleanEmptyDirs() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("dir still present after sweep: %v", err)
	}

	f, err := createFile(filepath.Join(dir, "display.jpg.tmp"))
	if err != nil {
		t.Fatalf("createFile() error = %v", err)
	}
	f.Close()

	if _, err := os.Stat(filepath.Join(dir, "display.jpg.tmp")); err != nil {
		t.Errorf("temp file missing: %v", err)
	}
}
