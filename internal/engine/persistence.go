package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBackend stores each key as a JSON file in a directory.
type FileBackend struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewFileBackend initializes a file backend rooted at dir.
func NewFileBackend(dir string) (*FileBackend, error) {
	// Ensure the data directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileBackend{DataDir: dir}, nil
}

func (p *FileBackend) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(p.DataDir, key+".json"), nil
}

func (p *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	filePath, err := p.path(key)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	content, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrKeyNotFound
	}
	return content, err
}

// Put writes the value atomically.
func (p *FileBackend) Put(_ context.Context, key string, value []byte) error {
	filePath, err := p.path(key)
	if err != nil {
		return err
	}
	tempPath := filePath + ".tmp"

	p.mu.Lock()
	defer p.mu.Unlock()

	// 1. Write to a temporary file first
	if err := os.WriteFile(tempPath, value, 0644); err != nil {
		return err
	}

	// 2. Atomic Rename
	// If the power fails, you have either the old file or the new one, never a corrupt one.
	return os.Rename(tempPath, filePath)
}

func (p *FileBackend) Delete(_ context.Context, key string) error {
	filePath, err := p.path(key)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (p *FileBackend) Close() error { return nil }
