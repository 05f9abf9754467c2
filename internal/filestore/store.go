package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"
)

var ErrNotExist = errors.New("file not exist")

// Store keeps the blobs of one kind (audio or books) under flat keys.
type Store interface {
	Type() string
	Kind() string
	Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete succeeds when the key is already gone.
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(name string, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("storage.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported file store type: %s", name)
	}
	return factory(args)
}

// KeyFromURL recovers the storage key from a public or static url, which is
// always its last path element.
func KeyFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil {
		raw = u.Path
	}
	key := path.Base(strings.TrimRight(raw, "/"))
	if key == "." || key == "/" || key == ".." {
		return ""
	}
	return key
}

func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, "/\\")
}

// buildURL is shared by the stores: public base url when configured, otherwise
// the service's own static route.
func buildURL(publicURL, kind, key string) string {
	key = strings.TrimPrefix(key, "/")
	if publicURL != "" {
		return strings.TrimSuffix(publicURL, "/") + "/" + kind + "/" + key
	}
	return "/static/" + kind + "/" + key
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
