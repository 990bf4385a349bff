package vcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

// FileStore keeps one entry per key as a pair of files in a flat
// directory: <key>.meta.json with the headers and freshness metadata,
// and <key>.body with the body bytes untouched. Writes go through
// atomic renames, so a concurrent reader never observes a half-written
// entry.
type FileStore struct {
	dir string
}

// fileMeta is the serialized form of everything except the body.
type fileMeta struct {
	Headers  map[string]string `json:"headers"`
	ViewType string            `json:"view_type"`
	SavedAt  time.Time         `json:"saved_at"`
	TTLNanos int64             `json:"ttl_ns"`
}

// NewFileStore returns a FileStore rooted at dir, creating the
// directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) metaPath(key string) string { return filepath.Join(f.dir, key+".meta.json") }
func (f *FileStore) bodyPath(key string) string { return filepath.Join(f.dir, key+".body") }

// Get reads the entry under key. A missing meta or body file counts as
// no entry at all.
func (f *FileStore) Get(_ context.Context, key string) (*Entry, error) {
	raw, err := os.ReadFile(f.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoEntry
		}
		return nil, fmt.Errorf("read cache meta: %w", err)
	}
	var meta fileMeta
	if err = json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode cache meta: %w", err)
	}
	body, err := os.ReadFile(f.bodyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoEntry
		}
		return nil, fmt.Errorf("read cache body: %w", err)
	}
	return &Entry{
		Body:     body,
		Headers:  meta.Headers,
		ViewType: meta.ViewType,
		SavedAt:  meta.SavedAt,
		TTL:      time.Duration(meta.TTLNanos),
	}, nil
}

// Expired reports whether key needs re-rendering.
func (f *FileStore) Expired(ctx context.Context, key, viewType string) (bool, error) {
	return expired(ctx, f, key, viewType)
}

// Save writes the entry under key. The body lands first so that an
// existing meta file always points at complete body bytes.
func (f *FileStore) Save(_ context.Context, key string, e *Entry) error {
	meta := fileMeta{
		Headers:  e.Headers,
		ViewType: e.ViewType,
		SavedAt:  e.SavedAt,
		TTLNanos: int64(e.TTL),
	}
	if meta.SavedAt.IsZero() {
		meta.SavedAt = time.Now()
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode cache meta: %w", err)
	}
	if err = atomic.WriteFile(f.bodyPath(key), bytes.NewReader(e.Body)); err != nil {
		return fmt.Errorf("write cache body: %w", err)
	}
	if err = atomic.WriteFile(f.metaPath(key), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write cache meta: %w", err)
	}
	return nil
}

// Delete removes both files of the entry, reporting whether either
// existed. The meta file goes first so readers lose the entry before
// the body disappears.
func (f *FileStore) Delete(_ context.Context, key string) (bool, error) {
	found := false
	if err := os.Remove(f.metaPath(key)); err == nil {
		found = true
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("remove cache meta: %w", err)
	}
	if err := os.Remove(f.bodyPath(key)); err == nil {
		found = true
	} else if !os.IsNotExist(err) {
		return found, fmt.Errorf("remove cache body: %w", err)
	}
	return found, nil
}

// Clear removes every entry whose key carries the given generation
// prefix, or every entry when version is empty.
func (f *FileStore) Clear(ctx context.Context, version string) (int, error) {
	dirEntries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}
	removed := 0
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		key := strings.TrimSuffix(name, ".meta.json")
		if version != "" && keyVersion(key) != version {
			continue
		}
		ok, err := f.Delete(ctx, key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
