package vcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"strings"
	"time"
)

// KeyVersion tags every key produced by Key. Bumping it orphans all
// previously written entries at once; Clear can then sweep the old
// generation without touching the new one.
const KeyVersion = "v1"

// ErrNoEntry is returned by Get when nothing is stored under the key.
var ErrNoEntry = errors.New("no cache entry")

// Entry is one cached render: the response body exactly as produced,
// the headers that went with it, and enough metadata to judge
// freshness.
type Entry struct {
	Body     []byte
	Headers  map[string]string
	ViewType string
	SavedAt  time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still servable at now. A TTL of
// zero or less never expires.
func (e *Entry) Fresh(now time.Time) bool {
	if e.TTL <= 0 {
		return true
	}
	return now.Before(e.SavedAt.Add(e.TTL))
}

// Store is the persistence port for rendered output. Implementations
// return ErrNoEntry from Get when the key is absent. Callers treat
// every error from a Store as a cache miss; a broken cache degrades
// throughput, never delivery.
type Store interface {
	// Get returns the entry stored under key.
	Get(ctx context.Context, key string) (*Entry, error)

	// Expired reports whether key needs re-rendering: true when the
	// entry is missing, stale, or stored for a different view type.
	Expired(ctx context.Context, key, viewType string) (bool, error)

	// Save stores the entry under key, replacing any previous one.
	Save(ctx context.Context, key string, e *Entry) error

	// Delete removes the entry under key, reporting whether one
	// existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes every entry of the given key generation, or every
	// entry when version is empty. It returns the number removed.
	Clear(ctx context.Context, version string) (int, error)
}

// Key derives the storage key for one render: a sha256 over the
// normalized identity joined with the view type, prefixed with
// KeyVersion. Normalization lowercases the scheme and host, cleans the
// path and drops the fragment, so trivially different spellings of one
// URI share an entry. The type is part of the hash, so one identity
// rendered as html and as json yields two distinct keys.
func Key(identity, viewType string) string {
	sum := sha256.Sum256([]byte(normalizeIdentity(identity) + "\x00" + viewType))
	return KeyVersion + "-" + hex.EncodeToString(sum[:])
}

func normalizeIdentity(identity string) string {
	u, err := url.Parse(identity)
	if err != nil {
		// An unparseable identity still caches, just without
		// normalization.
		return identity
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path != "" {
		u.Path = path.Clean(u.Path)
	}
	return u.String()
}

// keyVersion extracts the generation prefix from a key produced by
// Key, or "" when the key has no prefix.
func keyVersion(key string) string {
	if i := strings.Index(key, "-"); i > 0 {
		return key[:i]
	}
	return ""
}

// expired implements the staleness probe shared by the backends.
func expired(ctx context.Context, s Store, key, viewType string) (bool, error) {
	e, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoEntry) {
			return true, nil
		}
		return true, err
	}
	if e.ViewType != viewType {
		return true, nil
	}
	return !e.Fresh(time.Now()), nil
}
