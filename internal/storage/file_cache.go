package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileItem is one persisted entry of the JSON file store.
type FileItem struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
}

// FileStore keeps entries in memory and persists them to a JSON file on
// Put and Close.
type FileStore struct {
	filePath string
	items    map[string]FileItem
	mu       sync.RWMutex
	saveMu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens filePath, loading existing entries when present.
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{
		filePath: filePath,
		items:    make(map[string]FileItem),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []FileItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("storage: unmarshal cache: %w", err)
	}
	for _, item := range items {
		var buf bytes.Buffer
		if err := json.Compact(&buf, item.Value); err != nil {
			return fmt.Errorf("storage: entry %q: %w", item.Key, err)
		}
		item.Value = buf.Bytes()
		fs.items[item.Key] = item
	}
	return nil
}

func (fs *FileStore) save() error {
	fs.saveMu.Lock()
	defer fs.saveMu.Unlock()

	fs.mu.RLock()
	items := make([]FileItem, 0, len(fs.items))
	for _, item := range fs.items {
		items = append(items, item)
	}
	fs.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal cache: %w", err)
	}

	if dir := filepath.Dir(fs.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: create dir: %w", err)
		}
	}
	tmp := fs.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write cache file: %w", err)
	}
	if err := os.Rename(tmp, fs.filePath); err != nil {
		return fmt.Errorf("storage: replace cache file: %w", err)
	}
	return nil
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	item, ok := fs.items[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(item.Value), true, nil
}

func (fs *FileStore) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("storage: value for %q is not JSON", key)
	}

	fs.mu.Lock()
	fs.items[key] = FileItem{Key: key, Value: append(json.RawMessage(nil), value...), StoredAt: time.Now()}
	fs.mu.Unlock()

	return fs.save()
}

func (fs *FileStore) Clear(_ context.Context) error {
	fs.mu.Lock()
	fs.items = make(map[string]FileItem)
	fs.mu.Unlock()
	return fs.save()
}

func (fs *FileStore) Len(_ context.Context) (int, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.items), nil
}

func (fs *FileStore) Close() error {
	return fs.save()
}
