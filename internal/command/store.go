package command

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joeycumines/canine/internal/config"
	"github.com/joeycumines/canine/internal/history"
	"github.com/joeycumines/canine/internal/kvstore"
)

// historySession is an open store with a loaded Manager over it.
type historySession struct {
	store   kvstore.Store
	manager *history.Manager
	backend string
}

func (s *historySession) Close() error {
	return s.store.Close()
}

// openHistory opens the configured store and loads the history from it.
func openHistory(cfg *config.Config) (*historySession, error) {
	schema := config.DefaultSchema()
	backend := schema.Resolve(cfg, config.KeyStoreBackend)
	path := schema.Resolve(cfg, config.KeyStorePath)

	policy, err := history.ParseMalformedRecordPolicy(schema.Resolve(cfg, config.KeyMalformedRecord))
	if err != nil {
		return nil, err
	}

	store, err := kvstore.Open(backend, path)
	if err != nil {
		if errors.Is(err, kvstore.ErrWouldBlock) {
			return nil, fmt.Errorf("history store is in use by another canine process: %w", err)
		}
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	manager := history.NewManager(store, history.WithMalformedRecordPolicy(policy))
	if _, err := manager.Load(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	slog.Debug("[command] history loaded", "backend", backend, "path", path, "malformedRecord", policy)
	return &historySession{store: store, manager: manager, backend: backend}, nil
}

// withHistory runs fn against a freshly loaded history and closes the store
// afterwards, joining any close error.
func withHistory(cfg *config.Config, fn func(*history.Manager) error) (err error) {
	s, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(s.manager)
}
