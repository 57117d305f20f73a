package secrets

import "context"

// Creds is a flat key-value secret payload, e.g. {"project_key": "..."}.
type Creds map[string]string

// Provider defines a generic secrets manager interface.
// Concrete implementations (AWS, GCP, etc.) can satisfy this.
type Provider interface {
	// GetSecret retrieves a secret by key/path and returns a key-value map.
	GetSecret(ctx context.Context, key string) (Creds, error)
}
