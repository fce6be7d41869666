// Package registry holds the per-domain configuration: validation rules,
// pricing tables, payment methods, storage flags and limits. Configs are
// read-mostly: a snapshot is cached in memory and refreshed from the store
// on a bounded TTL.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

type storeAPI interface {
	List(ctx context.Context) ([]*model.DomainConfig, error)
}

// Service serves domain configs from an in-memory snapshot. Reads are safe
// for any number of goroutines; refresh is single-writer behind the mutex.
type Service struct {
	store  storeAPI
	ttl    time.Duration
	logger zerolog.Logger

	mu         sync.RWMutex
	snapshot   map[string]*model.DomainConfig
	loadedAt   time.Time
	refreshing bool
}

func NewService(store storeAPI, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Refresh reloads the snapshot from the store. A failed refresh keeps the
// previous snapshot so readers are never left without configs.
func (s *Service) Refresh(ctx context.Context) error {
	configs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("domain registry refresh failed, serving stale snapshot")
		return fmt.Errorf("refresh domains: %w", err)
	}

	snapshot := make(map[string]*model.DomainConfig, len(configs))
	for _, cfg := range configs {
		snapshot[cfg.Name] = cfg
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug().Int("domains", len(snapshot)).Msg("domain registry refreshed")
	return nil
}

// GetDomain returns the config for a domain name, refreshing the snapshot
// first when the TTL has lapsed. Only one goroutine refreshes at a time;
// the rest read the stale snapshot until it lands.
func (s *Service) GetDomain(ctx context.Context, name string) (*model.DomainConfig, error) {
	s.maybeRefresh(ctx)

	s.mu.RLock()
	cfg, ok := s.snapshot[name]
	s.mu.RUnlock()

	if !ok {
		return nil, zelferr.ErrDomainNotFound
	}
	return cfg, nil
}

// Loaded reports whether the registry has served at least one snapshot.
// The ops readiness probe uses it.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot != nil
}

func (s *Service) maybeRefresh(ctx context.Context) {
	s.mu.Lock()
	stale := s.snapshot == nil || time.Since(s.loadedAt) > s.ttl
	if !stale || s.refreshing {
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	// Errors are already logged; stale reads are acceptable.
	_ = s.Refresh(ctx)
}
