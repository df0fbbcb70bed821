package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/gamebox/internal/server/blob"
	"github.com/openmined/gamebox/internal/server/gate"
	"github.com/openmined/gamebox/internal/server/library"
)

// Services carries the server's long-lived components.
type Services struct {
	Library *library.Library
	Gate    *gate.Gate
	Saves   *blob.SaveStore
}

func NewServices(ctx context.Context, config *Config, db *sqlx.DB) (*Services, error) {
	saves, err := blob.NewSaveStore(ctx, &config.Blob, db)
	if err != nil {
		return nil, fmt.Errorf("save store: %w", err)
	}

	return &Services{
		Library: library.New(&config.Library),
		Gate:    gate.New(&config.Auth),
		Saves:   saves,
	}, nil
}

func (s *Services) Start(ctx context.Context) error {
	// builds the save index before any listing is served
	if err := s.Saves.Start(ctx); err != nil {
		return fmt.Errorf("start save store: %w", err)
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	s.Gate.Shutdown()

	if err := s.Saves.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop save store: %w", err)
	}
	return nil
}
