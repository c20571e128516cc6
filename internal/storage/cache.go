package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Cache is the local filesystem tier. Entries are advisory: any file may
// be evicted out-of-band and repopulated from the remote store on demand.
type Cache struct {
	dir string
}

func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) Path(filename string) string {
	return filepath.Join(c.dir, filename)
}

func (c *Cache) Exists(filename string) bool {
	info, err := os.Stat(c.Path(filename))
	return err == nil && !info.IsDir()
}

func (c *Cache) Stat(filename string) (ObjectInfo, error) {
	info, err := os.Stat(c.Path(filename))
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: filename, Size: info.Size(), LastModified: info.ModTime()}, nil
}

// Write stores filename via a temp file + rename, so a concurrent reader
// never observes a partially written cache entry.
func (c *Cache) Write(filename string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(c.dir, ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.Path(filename)); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to finalize cache entry: %w", err)
	}
	return n, nil
}

// Remove deletes a cache entry; a missing entry is not an error.
func (c *Cache) Remove(filename string) error {
	err := os.Remove(c.Path(filename))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns all cached PDFs, skipping in-flight temp files.
func (c *Cache) List() ([]ObjectInfo, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}
	var objects []ObjectInfo
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		objects = append(objects, ObjectInfo{
			Key:          entry.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}
	return objects, nil
}

func (c *Cache) Healthy() error {
	_, err := os.Stat(c.dir)
	return err
}
