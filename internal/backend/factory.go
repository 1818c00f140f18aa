package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "flotta/internal/sheets/google"
	"flotta/internal/sheets/memory"
)

// DefaultFactory builds mirror backends from configuration.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend constructs the mirror named by config.Type. Asking for the
// disabled backend is an error; callers decide beforehand whether a mirror
// should exist at all.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	switch config.Type {
	case MirrorMemory:
		f.logger.Info("Initialized memory mirror backend")
		return &BackendResult{Backend: memory.New()}, nil

	case MirrorSheets:
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets mirror: %w", err)
		}
		f.logger.Info("Initialized Google Sheets mirror backend")
		return &BackendResult{Backend: cli}, nil

	case MirrorDisabled:
		return nil, fmt.Errorf("mirror backend is disabled")

	default:
		return nil, fmt.Errorf("unsupported mirror backend type: %s", config.Type)
	}
}
