package blob

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsoluteURL(t *testing.T) {
	base := "https://proj.supabase.co/storage/v1"
	assert.Equal(t, base+"/object/sign/b/k?token=x", absoluteURL(base, "/object/sign/b/k?token=x"))
	assert.Equal(t, base+"/object/sign/b/k", absoluteURL(base+"/", "object/sign/b/k"))
	assert.Equal(t, "https://cdn.example.com/k", absoluteURL(base, "https://cdn.example.com/k"))
}

func TestSupabaseStoreBaseURL(t *testing.T) {
	s := NewSupabaseStore(nil, "clips", "https://proj.supabase.co/")
	assert.Equal(t, "https://proj.supabase.co/storage/v1", s.baseURL)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("https://blobs.local")
	s.now = func() time.Time { return time.Unix(1000, 0) }

	require.NoError(t, s.Put(ctx, "processed/a.mp4", []byte("video"), "video/mp4"))
	data, ct, ok := s.Get("processed/a.mp4")
	require.True(t, ok)
	assert.Equal(t, "video", string(data))
	assert.Equal(t, "video/mp4", ct)

	u, err := s.SignedURL(ctx, "processed/a.mp4", DownloadTTL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://blobs.local/"))
	assert.Contains(t, u, "expires=4600")

	_, err = s.SignedURL(ctx, "", DownloadTTL)
	assert.Error(t, err)
}
