// File: internal/cache/disk.go
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Disk is a file-backed LRU decision cache bounded by total byte size. Each
// entry lives in its own file named by the hash of its key; recency order is
// kept in memory and seeded from file modification times at startup. Safe for
// concurrent use within one process.
type Disk struct {
	mu        sync.Mutex
	dir       string
	maxBytes  int64
	totalSize int64
	order     *list.List // front = most recently used
	files     map[string]*list.Element
	logger    *zap.Logger
}

type diskItem struct {
	file string
	size int64
}

var _ schemas.DecisionCache = (*Disk)(nil)

// NewDisk opens (or creates) a disk cache rooted at dir. A corrupt or
// unreadable cache directory is wiped and recreated once before giving up.
func NewDisk(dir string, maxBytes int64, logger *zap.Logger) (*Disk, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultDiskMaxBytes
	}
	d := &Disk{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger.Named("cache.disk"),
	}

	if err := d.initialize(); err != nil {
		d.logger.Warn("Cache directory unusable, wiping and recreating", zap.Error(err))
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("failed to wipe corrupt cache dir: %w", err)
		}
		if err := d.initialize(); err != nil {
			return nil, fmt.Errorf("failed to recreate cache dir: %w", err)
		}
	}
	return d, nil
}

func (d *Disk) initialize() error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return err
	}

	type seeded struct {
		item    diskItem
		modTime time.Time
	}
	var found []seeded
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		found = append(found, seeded{
			item:    diskItem{file: entry.Name(), size: info.Size()},
			modTime: info.ModTime(),
		})
		total += info.Size()
	}

	// Oldest first so the back of the list is the eviction candidate.
	sort.Slice(found, func(i, j int) bool { return found[i].modTime.Before(found[j].modTime) })

	d.order = list.New()
	d.files = make(map[string]*list.Element, len(found))
	d.totalSize = total
	for _, s := range found {
		item := s.item
		d.files[item.file] = d.order.PushFront(&diskItem{file: item.file, size: item.size})
	}
	return nil
}

func (d *Disk) Get(_ context.Context, key string) (*schemas.DecisionEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	file := fileName(key)
	el, ok := d.files[file]
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(d.dir, file))
	if err != nil {
		d.logger.Warn("Failed to read cache entry, dropping it", zap.String("file", file), zap.Error(err))
		d.dropLocked(file, el)
		return nil, false
	}

	var entry schemas.DecisionEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		d.logger.Warn("Corrupt cache entry, dropping it", zap.String("file", file), zap.Error(err))
		d.dropLocked(file, el)
		return nil, false
	}

	d.order.MoveToFront(el)
	now := time.Now()
	_ = os.Chtimes(filepath.Join(d.dir, file), now, now)
	return &entry, true
}

func (d *Disk) Set(_ context.Context, key string, entry *schemas.DecisionEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	file := fileName(key)
	if err := os.WriteFile(filepath.Join(d.dir, file), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	size := int64(len(data))
	if el, ok := d.files[file]; ok {
		d.totalSize += size - el.Value.(*diskItem).size
		el.Value.(*diskItem).size = size
		d.order.MoveToFront(el)
	} else {
		d.files[file] = d.order.PushFront(&diskItem{file: file, size: size})
		d.totalSize += size
	}

	d.evictLocked()
	return nil
}

func (d *Disk) Remove(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	file := fileName(key)
	el, ok := d.files[file]
	if !ok {
		return nil
	}
	d.dropLocked(file, el)
	return nil
}

// Size returns the total byte size of stored entries.
func (d *Disk) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalSize
}

func (d *Disk) evictLocked() {
	for d.totalSize > d.maxBytes {
		oldest := d.order.Back()
		if oldest == nil {
			return
		}
		item := oldest.Value.(*diskItem)
		d.dropLocked(item.file, oldest)
	}
}

func (d *Disk) dropLocked(file string, el *list.Element) {
	d.totalSize -= el.Value.(*diskItem).size
	d.order.Remove(el)
	delete(d.files, file)
	if err := os.Remove(filepath.Join(d.dir, file)); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("Failed to remove cache file", zap.String("file", file), zap.Error(err))
	}
}

func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + ".json"
}
