package config

import (
	"fmt"

	supa "github.com/supabase-community/supabase-go"
)

// NewSupabaseClient initializes the Supabase client with the service key.
func NewSupabaseClient(cfg SupabaseConfig) (*supa.Client, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}

	client, err := supa.NewClient(cfg.URL, cfg.ServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("error initializing Supabase client: %w", err)
	}
	return client, nil
}

// RestURL returns the PostgREST endpoint of the project.
func (c SupabaseConfig) RestURL() string {
	return c.URL + "/rest/v1"
}
