package config

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek-1221/korai-sub001/api-gateway/middleware"
	shared "github.com/abhisek-1221/korai-sub001/internal/config"
)

func TestNewAuthenticator(t *testing.T) {
	log, _ := test.NewNullLogger()

	t.Run("supabase without credentials is refused", func(t *testing.T) {
		_, err := NewAuthenticator(&shared.Config{Auth: shared.AuthConfig{Mode: shared.AuthSupabase}}, log)
		assert.ErrorIs(t, err, shared.ErrSupabaseDisabled)
	})

	t.Run("header mode when set explicitly", func(t *testing.T) {
		auth, err := NewAuthenticator(&shared.Config{Auth: shared.AuthConfig{Mode: shared.AuthHeader, Header: "X-User-ID"}}, log)
		require.NoError(t, err)
		assert.Equal(t, middleware.HeaderAuthenticator{Header: "X-User-ID"}, auth)
	})

	t.Run("supabase", func(t *testing.T) {
		cfg := &shared.Config{
			Auth:     shared.AuthConfig{Mode: shared.AuthSupabase},
			Supabase: shared.SupabaseConfig{URL: "https://project.supabase.co", ServiceKey: "service-key"},
		}
		auth, err := NewAuthenticator(cfg, log)
		require.NoError(t, err)
		assert.IsType(t, middleware.SupabaseAuthenticator{}, auth)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := NewAuthenticator(&shared.Config{Auth: shared.AuthConfig{Mode: "basic"}}, log)
		assert.Error(t, err)
	})
}
