package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/squad"
)

const poolCacheTTL = 30 * time.Minute

// Pool is one consistent snapshot of the decision inputs: the reconciled
// player population plus the manager's bank and transfer allowance.
type Pool struct {
	Players       []fpl.Player `json:"players"`
	Bank          int          `json:"bank"`
	FreeTransfers int          `json:"free_transfers"`
	RefreshedAt   time.Time    `json:"refreshed_at"`
}

// PoolService keeps the latest pool in memory for the API handlers and
// refreshes it on a cron schedule. Snapshots swap atomically; a handler
// never observes a partially-built pool.
type PoolService struct {
	players  *PlayerService
	cache    fpl.CacheProvider
	logger   *logrus.Logger
	cron     *cron.Cron
	interval time.Duration
	model    squad.ScoreModel

	mu        sync.RWMutex
	pool      *Pool
	isRunning bool
}

func NewPoolService(players *PlayerService, cache fpl.CacheProvider, logger *logrus.Logger, model squad.ScoreModel, interval time.Duration) *PoolService {
	return &PoolService{
		players:  players,
		cache:    cache,
		logger:   logger,
		cron:     cron.New(),
		interval: interval,
		model:    model,
	}
}

// Start schedules the background refresh and kicks off the initial fetch.
func (s *PoolService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("pool service is already running")
	}

	schedule := fmt.Sprintf("@every %s", s.interval.String())
	if _, err := s.cron.AddFunc(schedule, s.refreshJob); err != nil {
		return fmt.Errorf("failed to schedule pool refresh: %w", err)
	}
	s.cron.Start()
	s.isRunning = true

	go s.refreshJob()

	s.logger.Infof("Pool service started, refreshing every %s", s.interval)
	return nil
}

// Stop halts the scheduled refresh.
func (s *PoolService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
	s.logger.Info("Pool service stopped")
}

func (s *PoolService) refreshJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := s.Refresh(ctx); err != nil {
		s.logger.Errorf("Pool refresh failed: %v", err)
	}
}

// Refresh rebuilds the pool from the feeds and publishes it.
func (s *PoolService) Refresh(ctx context.Context) error {
	var (
		players []fpl.Player
		err     error
	)
	if s.model.NeedsProjections() {
		players, err = s.players.PlayersWithProjections(ctx, fpl.ProjectionSeason)
	} else {
		players, err = s.players.Players(ctx)
	}
	if err != nil {
		return fmt.Errorf("refresh pool: %w", err)
	}
	bank, err := s.players.Bank(ctx)
	if err != nil {
		return fmt.Errorf("refresh pool: %w", err)
	}
	transfers, err := s.players.FreeTransfers(ctx)
	if err != nil {
		return fmt.Errorf("refresh pool: %w", err)
	}

	pool := &Pool{
		Players:       players,
		Bank:          bank,
		FreeTransfers: transfers,
		RefreshedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.pool = pool
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SetSimple(PoolCacheKey(string(s.model)), pool, poolCacheTTL); err != nil {
			s.logger.Warnf("Failed to cache pool: %v", err)
		}
		// Fixture aggregates may have moved with the feed; drop the cached
		// clubs so the next read rebuilds them.
		if err := s.cache.Delete(ctx, ClubsCacheKey()); err != nil {
			s.logger.Warnf("Failed to invalidate clubs cache: %v", err)
		}
	}

	s.logger.Infof("Pool refreshed: %d players, bank %d, %d free transfers", len(players), bank, transfers)
	return nil
}

// Snapshot returns the current pool, falling back to the cache and then to a
// synchronous refresh when nothing has been fetched yet.
func (s *PoolService) Snapshot(ctx context.Context) (*Pool, error) {
	s.mu.RLock()
	pool := s.pool
	s.mu.RUnlock()
	if pool != nil {
		return pool, nil
	}

	if s.cache != nil {
		var cached Pool
		if err := s.cache.GetSimple(PoolCacheKey(string(s.model)), &cached); err == nil && len(cached.Players) > 0 {
			s.mu.Lock()
			s.pool = &cached
			s.mu.Unlock()
			return &cached, nil
		}
	}

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool, nil
}

// Model returns the score model the pool was built for.
func (s *PoolService) Model() squad.ScoreModel {
	return s.model
}

// Status reports the refresh schedule for the health surface.
func (s *PoolService) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]interface{}{
		"is_running":       s.isRunning,
		"refresh_interval": s.interval.String(),
		"score_model":      string(s.model),
	}
	if s.pool != nil {
		status["players"] = len(s.pool.Players)
		status["refreshed_at"] = s.pool.RefreshedAt
	}
	next := make([]time.Time, 0)
	for _, entry := range s.cron.Entries() {
		next = append(next, entry.Next)
	}
	status["next_runs"] = next
	return status
}
