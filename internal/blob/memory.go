package blob

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for local runs and tests. Its signed URLs
// point at BaseURL and carry the expiry as a query parameter.
type MemoryStore struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memObject
	now     func() time.Time
}

type memObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{BaseURL: baseURL, objects: make(map[string]memObject), now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// Get returns a stored object.
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o.data, o.contentType, ok
}

// SignedURL signs any key; existence is not checked, matching object stores
// that sign without a lookup.
func (s *MemoryStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("sign: empty key")
	}
	q := url.Values{"expires": {fmt.Sprint(s.now().Add(ttl).Unix())}}
	return absoluteURL(s.BaseURL, url.PathEscape(key)) + "?" + q.Encode(), nil
}
