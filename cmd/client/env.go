package main

import (
	"github.com/openmined/gamebox/internal/client/api"
	"github.com/openmined/gamebox/internal/client/config"
	"github.com/openmined/gamebox/internal/client/syncer"
	"github.com/openmined/gamebox/internal/client/transfer"
	"github.com/spf13/cobra"
)

// clientEnv is the validated config plus the server client every command
// works against.
type clientEnv struct {
	cfg    *config.Config
	remote *api.Client
}

func newClientEnv(cmd *cobra.Command) (*clientEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	remote, err := api.New(api.Options{
		BaseURL:  cfg.ServerURL,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	return &clientEnv{cfg: cfg, remote: remote}, nil
}

func (e *clientEnv) syncer(events chan<- transfer.Event) (*syncer.Syncer, error) {
	var opts []syncer.Option
	if events != nil {
		opts = append(opts, syncer.WithEvents(events))
	}
	return syncer.New(e.cfg, e.remote, opts...)
}

// lockedSyncer builds a syncer and takes the library lock. The returned
// func releases it.
func (e *clientEnv) lockedSyncer(events chan<- transfer.Event) (*syncer.Syncer, func(), error) {
	s, err := e.syncer(events)
	if err != nil {
		return nil, nil, err
	}
	unlock, err := s.Lock()
	if err != nil {
		return nil, nil, err
	}
	return s, unlock, nil
}
