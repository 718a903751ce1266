// Package store persists the small set of named string values the front-end
// keeps between sessions: the API base override, the auth token, the current
// project identifier and the language preference.
package store

import (
	"context"
	"errors"
	"fmt"

	"pf-studio/internal/config"
)

// Well-known keys.
const (
	KeyAPIBase       = "PF_API_BASE"
	KeyAPIBaseLegacy = "pf_api_base" // written by the old admin pages
	KeyAuthToken     = "jwtToken"
	KeyProjectID     = "pf_project_id"
	KeyLanguage      = "preferredLanguage"
)

// ErrUnknownDriver is returned by Open for an unsupported state.driver.
var ErrUnknownDriver = errors.New("unknown state driver")

// Store is a durable string key-value store.
//
// Implementations are safe for concurrent use within one process. Writes from
// separate processes sharing the same file are not coordinated.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the store selected by cfg.State.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.State.Driver {
	case "memory":
		return NewMemory(), nil
	case "file", "":
		return NewFile(cfg.State.Path)
	case "sqlite":
		return NewSQLite(cfg.State.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.State.Driver)
	}
}

// GetString returns the value for key, or "" when it is absent or the lookup
// fails. Callers that treat persisted values as best-effort hints use it.
func GetString(ctx context.Context, s Store, key string) string {
	if s == nil {
		return ""
	}
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ""
	}
	return v
}
