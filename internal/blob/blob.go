// Package blob stores rendered artifacts and hands out time-limited download
// links for them.
package blob

import (
	"context"
	"strings"
	"time"
)

// DownloadTTL is how long a signed download URL stays valid.
const DownloadTTL = time.Hour

// Store is an object store with signed read URLs.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// absoluteURL makes a storage-relative URL absolute against base.
func absoluteURL(base, u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(u, "/") {
		return base + u
	}
	return base + "/" + u
}
