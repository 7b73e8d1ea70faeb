// Package config wires the gateway's request-facing collaborators from the
// shared settings.
package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/api-gateway/middleware"
	shared "github.com/abhisek-1221/korai-sub001/internal/config"
)

// NewAuthenticator returns the authenticator for the configured auth mode.
// The supabase mode verifies bearer tokens with the project's Auth service
// using the service key.
func NewAuthenticator(cfg *shared.Config, log logrus.FieldLogger) (middleware.Authenticator, error) {
	switch cfg.Auth.Mode {
	case shared.AuthHeader:
		log.WithField("header", cfg.Auth.Header).Warn("Trusting user id header; run behind an authenticating proxy")
		return middleware.HeaderAuthenticator{Header: cfg.Auth.Header}, nil
	case shared.AuthSupabase:
		client, err := shared.NewSupabase(cfg.Supabase)
		if errors.Is(err, shared.ErrSupabaseDisabled) {
			return nil, fmt.Errorf("auth mode supabase needs SUPABASE_URL and SUPABASE_SERVICE_KEY (set auth.mode to header explicitly to trust a proxy header): %w", err)
		}
		if err != nil {
			return nil, err
		}
		log.Info("Supabase auth initialized successfully.")
		return middleware.SupabaseAuthenticator{Client: client.Auth}, nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
}
