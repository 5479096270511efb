package cmd

import (
	"fmt"

	"github.com/rubiojr/mithril/pkg/client"
	"github.com/rubiojr/mithril/pkg/config"
	"github.com/rubiojr/mithril/pkg/kv"
	"github.com/rubiojr/mithril/pkg/session"
)

// openStore opens the durable cache store described by the config.
func openStore(cfg *config.Config) (kv.Store, error) {
	store, err := kv.Open(cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("opening %s cache store: %w", cfg.Cache.Backend, err)
	}
	return store, nil
}

// newSession builds a session talking to the configured search API.
func newSession(cfg *config.Config, store kv.Store) (*session.Session, error) {
	api, err := client.New(cfg.API.BaseURL, cfg.API.Timeout.Duration)
	if err != nil {
		return nil, fmt.Errorf("creating search client: %w", err)
	}
	return session.New(api, store, cfg.SessionOptions()), nil
}

// loadSession loads the config and returns a session plus a cleanup func
// closing its store.
func loadSession(configPath string) (*session.Session, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	sess, err := newSession(cfg, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return sess, func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close cache store: %v\n", err)
		}
	}, nil
}
