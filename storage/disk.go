package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
)

// DiskStore keeps media files in a local directory.
type DiskStore struct {
	dir  string
	root *os.Root
}

// NewDiskStore creates dir if needed and opens it as the store root.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open media directory %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, root: root}, nil
}

// Dir returns the directory backing the store.
func (s *DiskStore) Dir() string { return s.dir }

// Close releases the directory handle.
func (s *DiskStore) Close() error { return s.root.Close() }

// Save writes r to name, truncating any existing file of the same name.
func (s *DiskStore) Save(_ context.Context, name string, r io.Reader, _ int64) error {
	if err := validateName(name); err != nil {
		return err
	}
	out, err := s.root.Create(name)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return out.Close()
}

// Open returns the stored file for reading.
func (s *DiskStore) Open(_ context.Context, name string) (*Media, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	f, err := s.root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to open media file %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat media file %s: %w", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrMediaNotFound
	}
	return &Media{
		ReadSeekCloser: f,
		MediaInfo:      MediaInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()},
	}, nil
}

// List returns regular files in the media directory sorted by name.
func (s *DiskStore) List(_ context.Context) ([]MediaInfo, error) {
	entries, err := fs.ReadDir(s.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}
	files := make([]MediaInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		files = append(files, MediaInfo{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
