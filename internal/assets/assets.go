// Package assets resolves terrain references against a model path and loads
// the files they name.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/pkg/formats"
)

// ErrNotFound is returned when a reference matches no file.
var ErrNotFound = errors.New("file not found")

// DefaultFetchTimeout bounds remote downloads started by Resolve.
const DefaultFetchTimeout = 2 * time.Minute

// FetchFunc downloads src into the directory dst.
type FetchFunc func(ctx context.Context, src, dst string) error

// Manager resolves references against an ordered list of search
// directories and serves file contents through a cache.
type Manager struct {
	searchPaths []string
	cacheDir    string
	cache       *Cache
	mu          sync.RWMutex

	// FetchTimeout bounds each remote download; zero means DefaultFetchTimeout.
	FetchTimeout time.Duration
	fetch        FetchFunc
}

// NewManager creates a manager searching the given directories in order.
// Remote references are downloaded below cacheDir.
func NewManager(searchPaths []string, cacheDir string) *Manager {
	return &Manager{
		searchPaths: append([]string(nil), searchPaths...),
		cacheDir:    cacheDir,
		cache:       NewCache(),
		fetch:       Fetch,
	}
}

// SetFetcher replaces the remote downloader.
func (m *Manager) SetFetcher(fn FetchFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetch = fn
}

// AddSearchPath appends a directory to the model path.
func (m *Manager) AddSearchPath(dir string) {
	m.mu.Lock()
	m.searchPaths = append(m.searchPaths, dir)
	m.mu.Unlock()
}

// SearchPaths returns the model path.
func (m *Manager) SearchPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.searchPaths...)
}

// Resolve finds the file a reference names.
//
// Remote references (a go-getter forced source such as "git::..." or any
// URL) are downloaded into the cache directory first. Absolute paths are
// used as-is; relative paths are tried against each search directory in
// order and then the working directory. A directory resolves to the
// terrain.txt inside it.
func (m *Manager) Resolve(name string) (string, error) {
	if IsRemote(name) {
		dir, err := m.fetchRemote(name)
		if err != nil {
			return "", err
		}
		return expand(dir, name)
	}

	if filepath.IsAbs(name) {
		return expand(name, name)
	}

	for _, dir := range m.SearchPaths() {
		if path, err := expand(filepath.Join(dir, name), name); err == nil {
			return path, nil
		}
	}
	return expand(name, name)
}

// Open returns a reader over the file contents.
func (m *Manager) Open(path string) (io.ReadCloser, error) {
	data, err := m.Load(path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Load reads a file, serving repeated reads from the cache.
func (m *Manager) Load(path string) ([]byte, error) {
	if data, ok := m.cache.Get(path); ok {
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m.cache.Set(path, data)
	return data, nil
}

// Cache returns the manager's file cache.
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Close drops cached file contents.
func (m *Manager) Close() {
	hits, misses := m.cache.Stats()
	logger.Debug("asset cache closed",
		zap.Int("entries", m.cache.Len()),
		zap.Int("hits", hits),
		zap.Int("misses", misses),
	)
	m.cache.Clear()
}

// CacheKey returns the cache directory name used for a remote source.
func CacheKey(src string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(src))
}

// IsRemote reports whether name must be downloaded before use.
func IsRemote(name string) bool {
	return strings.Contains(name, "::") || strings.Contains(name, "://")
}

func (m *Manager) fetchRemote(src string) (string, error) {
	if m.cacheDir == "" {
		return "", fmt.Errorf("no cache directory configured for remote terrain %s", src)
	}
	dst := filepath.Join(m.cacheDir, CacheKey(src))

	if _, err := os.Stat(dst); err == nil {
		logger.Debug("remote terrain cached", zap.String("src", src), zap.String("dir", dst))
		return dst, nil
	}

	timeout := m.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	m.mu.RLock()
	fetch := m.fetch
	m.mu.RUnlock()

	logger.Info("fetching remote terrain", zap.String("src", src), zap.String("dir", dst))
	if err := fetch(ctx, src, dst); err != nil {
		// Leave no partial download behind to be mistaken for a cache hit.
		_ = os.RemoveAll(dst)
		return "", err
	}
	return dst, nil
}

// expand stats path, mapping a directory to its descriptor.
func expand(path, name string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !info.IsDir() {
		return path, nil
	}
	descriptor := filepath.Join(path, formats.DescriptorFileName)
	if _, err := os.Stat(descriptor); err != nil {
		return "", fmt.Errorf("%w: %s has no %s", ErrNotFound, name, formats.DescriptorFileName)
	}
	return descriptor, nil
}

// Cache is a simple in-memory cache for loaded files.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
