package blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore keeps objects in a Supabase Storage bucket.
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
	// baseURL is the storage API root signed paths are relative to,
	// e.g. https://<project>.supabase.co/storage/v1.
	baseURL string
}

// NewSupabaseStore creates a store over the Storage client of a Supabase project.
func NewSupabaseStore(client *storage_go.Client, bucket, projectURL string) *SupabaseStore {
	return &SupabaseStore{
		client:  client,
		bucket:  bucket,
		baseURL: absoluteURL(projectURL, "storage/v1"),
	}
}

// Put uploads data under key, replacing any existing object.
func (s *SupabaseStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	upsert := true
	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// SignedURL returns an absolute GET URL for key valid for ttl.
func (s *SupabaseStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	resp, err := s.client.CreateSignedUrl(s.bucket, key, int(ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("sign %s/%s: %w", s.bucket, key, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("sign %s/%s: empty signed URL", s.bucket, key)
	}
	return absoluteURL(s.baseURL, resp.SignedURL), nil
}
