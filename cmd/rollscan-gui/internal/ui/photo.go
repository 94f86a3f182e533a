package ui

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/webp"
)

// ErrNoPhoto is returned for students without a photo reference.
var ErrNoPhoto = errors.New("no photo")

type photoEntry struct {
	img image.Image
	err error
}

// PhotoCache decodes student photos once per path. Failed loads are cached
// too so a missing file is not retried every frame.
type PhotoCache struct {
	dir string

	mu      sync.Mutex
	entries map[string]photoEntry
}

// NewPhotoCache creates a cache resolving relative paths against dir.
func NewPhotoCache(dir string) *PhotoCache {
	return &PhotoCache{dir: dir, entries: make(map[string]photoEntry)}
}

// Resolve returns the file a photo reference points to.
func (c *PhotoCache) Resolve(ref string) string {
	if ref == "" {
		return ""
	}
	if filepath.IsAbs(ref) || c.dir == "" {
		return ref
	}
	return filepath.Join(c.dir, ref)
}

// Load returns the decoded photo for ref.
func (c *PhotoCache) Load(ref string) (image.Image, error) {
	path := c.Resolve(ref)
	if path == "" {
		return nil, ErrNoPhoto
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[path]; ok {
		return e.img, e.err
	}
	img, err := decodePhoto(path)
	c.entries[path] = photoEntry{img: img, err: err}
	return img, err
}

// SetDir changes the photo directory and drops cached entries.
func (c *PhotoCache) SetDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dir != c.dir {
		c.dir = dir
		c.entries = make(map[string]photoEntry)
	}
}

func decodePhoto(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode photo %s: %w", path, err)
	}
	return img, nil
}
