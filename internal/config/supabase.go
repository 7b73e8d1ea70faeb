package config

import (
	"errors"
	"fmt"
	"strings"

	postgrest "github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// ErrSupabaseDisabled is returned when no Supabase project is configured.
var ErrSupabaseDisabled = errors.New("supabase is not configured")

// Enabled reports whether a Supabase project URL and service key are set.
func (c SupabaseConfig) Enabled() bool {
	return c.URL != "" && c.ServiceKey != ""
}

// NewSupabase creates a client for the configured project using the service
// key.
func NewSupabase(cfg SupabaseConfig) (*supa.Client, error) {
	if !cfg.Enabled() {
		return nil, ErrSupabaseDisabled
	}
	client, err := supa.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.ServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}
	return client, nil
}

// NewPostgrest creates a PostgREST client for the project's REST endpoint.
func NewPostgrest(cfg SupabaseConfig) (*postgrest.Client, error) {
	if !cfg.Enabled() {
		return nil, ErrSupabaseDisabled
	}
	client := postgrest.NewClient(strings.TrimRight(cfg.URL, "/")+"/rest/v1", "", map[string]string{
		"apikey":        cfg.ServiceKey,
		"Authorization": "Bearer " + cfg.ServiceKey,
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("failed to initialize PostgREST client: %w", client.ClientError)
	}
	return client, nil
}
