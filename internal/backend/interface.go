package backend

import (
	"context"

	"flotta/internal/sheets"
)

// Backend is the write side of a maintenance log mirror. SQLite stays the
// system of record; a backend only receives copies.
type Backend interface {
	sheets.LogWriter
	sheets.LogDeleter
}

// CleanupFunc releases whatever resources a backend holds open.
type CleanupFunc func() error

// BackendResult pairs a backend with its cleanup. Cleanup may be nil when
// the backend owns nothing.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory builds mirror backends from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
