package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"corkboard/internal/board"
)

// FileCache keeps the last known copy of every visited board on disk so a
// board can still be opened when the remote store is unreachable.
type FileCache struct {
	dir string
}

// NewFileCache creates a cache rooted at dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// cacheEntry wraps a cached board with the time it was written.
type cacheEntry struct {
	Board   json.RawMessage `json:"board"`
	SavedAt time.Time       `json:"saved_at"`
}

// Get returns the cached board and when it was saved. A missing or corrupt
// entry is a miss, not an error.
func (c *FileCache) Get(ctx context.Context, id string) (board.Board, time.Time, bool, error) {
	path := c.path(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return board.Board{}, time.Time{}, false, nil
	}
	if err != nil {
		return board.Board{}, time.Time{}, false, err
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(path)
		return board.Board{}, time.Time{}, false, nil
	}
	b, err := decode(entry.Board)
	if err != nil {
		_ = os.Remove(path)
		return board.Board{}, time.Time{}, false, nil
	}
	return b, entry.SavedAt, true, nil
}

// Put writes b to the cache, replacing any earlier copy. The write goes
// through a temporary file so readers never see a partial entry.
func (c *FileCache) Put(ctx context.Context, b board.Board) error {
	data, err := encode(b)
	if err != nil {
		return err
	}
	entryData, err := json.Marshal(cacheEntry{Board: data, SavedAt: time.Now()})
	if err != nil {
		return err
	}

	path := c.path(b.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(entryData); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes the cached copy of board id.
func (c *FileCache) Delete(ctx context.Context, id string) error {
	err := os.Remove(c.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// path spreads entries over subdirectories named by the first two hex
// digits of the id's hash.
func (c *FileCache) path(id string) string {
	sum := sha256.Sum256([]byte(id))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, hash[:2], hash[2:]+".json")
}
