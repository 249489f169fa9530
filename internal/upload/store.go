// Package upload manages short-lived files attached to a conversation.
// Files live in a scoped directory until the file tool consumes them.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFileNotFound = errors.New("uploaded file not found")
	ErrFileTooLarge = errors.New("uploaded file exceeds size limit")
	ErrBadExtension = errors.New("file extension not allowed")
)

// allowedExtensions is the closed set of readable upload types.
var allowedExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".csv": true, ".log": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".yaml": true, ".yml": true,
}

// FileInfo describes one stored upload.
type FileInfo struct {
	ID         string    `json:"fileId"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Store keeps uploaded files on disk with an in-memory index.
type Store struct {
	mu      sync.Mutex
	dir     string
	maxSize int64
	files   map[string]fileEntry
}

type fileEntry struct {
	info FileInfo
	path string
}

// NewStore 创建上传文件存储，目录不存在时自动创建。
func NewStore(dir string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{
		dir:     dir,
		maxSize: maxSize,
		files:   make(map[string]fileEntry),
	}, nil
}

// Save writes the reader's content under a fresh file id.
func (s *Store) Save(name string, r io.Reader) (FileInfo, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return FileInfo{}, ErrBadExtension
	}

	id := uuid.NewString()
	path := filepath.Join(s.dir, id+ext)

	f, err := os.Create(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create upload file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return FileInfo{}, fmt.Errorf("failed to write upload file: %w", err)
	}
	if written > s.maxSize {
		os.Remove(path)
		return FileInfo{}, ErrFileTooLarge
	}

	info := FileInfo{ID: id, Name: name, Size: written, UploadedAt: time.Now().UTC()}

	s.mu.Lock()
	s.files[id] = fileEntry{info: info, path: path}
	s.mu.Unlock()

	return info, nil
}

// Read returns the stored bytes for a file id.
func (s *Store) Read(id string) ([]byte, FileInfo, error) {
	s.mu.Lock()
	entry, ok := s.files[id]
	s.mu.Unlock()
	if !ok {
		return nil, FileInfo{}, ErrFileNotFound
	}

	data, err := os.ReadFile(entry.path)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to read upload file: %w", err)
	}
	return data, entry.info, nil
}

// Delete removes the file from disk and drops it from the index.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	entry, ok := s.files[id]
	delete(s.files, id)
	s.mu.Unlock()
	if !ok {
		return ErrFileNotFound
	}

	if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove upload file: %w", err)
	}
	return nil
}
