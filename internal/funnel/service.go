// Package funnel wraps the reconciliation engine with run lifecycle
// management: result caching, snapshot persistence, and last-invocation-wins
// semantics so a stale run can never overwrite a newer one.
package funnel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach-analytics/internal/pkg/logger"
	"github.com/ignite/outreach-analytics/internal/reconcile"
)

// Engine is the reconciliation surface the service drives. Satisfied by
// *reconcile.Reconciler.
type Engine interface {
	CampaignFunnel(ctx context.Context, scope reconcile.Scope) ([]reconcile.CampaignAggregate, error)
	SequenceSteps(ctx context.Context, scope reconcile.Scope, campaignID string) ([]reconcile.SequenceStepAggregate, error)
}

// Snapshots persists the last good campaign result per scope. Satisfied by
// *SnapshotStore.
type Snapshots interface {
	Save(ctx context.Context, runID string, scope reconcile.Scope, aggs []reconcile.CampaignAggregate) error
	Load(ctx context.Context, scope reconcile.Scope) ([]reconcile.CampaignAggregate, time.Time, error)
}

// snapshotMaxAge bounds how stale a persisted snapshot may be and still be
// served instead of triggering a fresh run.
const snapshotMaxAge = 15 * time.Minute

// Service owns reconciliation runs. Runs over the same scope are serialized
// through a generation counter: each new invocation bumps the scope's
// generation, and a completing run only publishes (cache, snapshot) if its
// generation is still current. Callers always receive their own run's result;
// stale runs just stop being publishable.
type Service struct {
	engine    Engine
	cache     *Cache    // optional
	snapshots Snapshots // optional

	mu   sync.Mutex
	gens map[string]uint64
}

// NewService creates a Service. cache and snapshots may be nil.
func NewService(engine Engine, cache *Cache, snapshots Snapshots) *Service {
	return &Service{
		engine:    engine,
		cache:     cache,
		snapshots: snapshots,
		gens:      make(map[string]uint64),
	}
}

func scopeKey(scope reconcile.Scope) string {
	return fmt.Sprintf("%s|%s|%s",
		scope.Client, scope.From.Format("2006-01-02"), scope.To.Format("2006-01-02"))
}

// beginRun registers a new run for the scope and returns its generation.
func (s *Service) beginRun(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[key]++
	return s.gens[key]
}

// isCurrent reports whether the given generation is still the newest run for
// the scope.
func (s *Service) isCurrent(key string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key] == gen
}

// CampaignFunnel returns the reconciled campaign aggregates for a scope,
// serving from cache when a fresh result exists.
func (s *Service) CampaignFunnel(ctx context.Context, scope reconcile.Scope) ([]reconcile.CampaignAggregate, error) {
	key := scopeKey(scope)

	if s.cache != nil {
		if aggs, ok := s.cache.GetCampaigns(ctx, key); ok {
			return aggs, nil
		}
	}

	// On a cold cache a recent persisted snapshot is good enough; it also
	// covers the window right after a restart before the first run completes.
	if s.snapshots != nil {
		aggs, generatedAt, err := s.snapshots.Load(ctx, scope)
		if err != nil {
			logger.Warn("snapshot load failed", "scope", key, "error", err)
		} else if !generatedAt.IsZero() && time.Since(generatedAt) <= snapshotMaxAge {
			if s.cache != nil {
				s.cache.SetCampaigns(ctx, key, aggs)
			}
			return aggs, nil
		}
	}

	runID := uuid.NewString()
	gen := s.beginRun(key)
	started := time.Now()

	aggs, err := s.engine.CampaignFunnel(ctx, scope)
	if err != nil {
		return nil, err
	}

	if !s.isCurrent(key, gen) {
		logger.Debug("discarding stale reconciliation result", "run_id", runID, "scope", key)
		return aggs, nil
	}

	logger.Info("reconciliation run completed",
		"run_id", runID, "scope", key,
		"campaigns", len(aggs), "elapsed", time.Since(started).String())

	if s.cache != nil {
		s.cache.SetCampaigns(ctx, key, aggs)
	}
	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, runID, scope, aggs); err != nil {
			logger.Warn("snapshot save failed", "run_id", runID, "error", err)
		}
	}
	return aggs, nil
}

// SequenceSteps returns the per-step aggregates for one campaign in a scope.
// Step results are small and campaign-specific, so they bypass the snapshot
// store and use the cache only.
func (s *Service) SequenceSteps(ctx context.Context, scope reconcile.Scope, campaignID string) ([]reconcile.SequenceStepAggregate, error) {
	key := scopeKey(scope) + "|" + campaignID

	if s.cache != nil {
		if steps, ok := s.cache.GetSteps(ctx, key); ok {
			return steps, nil
		}
	}

	gen := s.beginRun(key)
	steps, err := s.engine.SequenceSteps(ctx, scope, campaignID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && s.isCurrent(key, gen) {
		s.cache.SetSteps(ctx, key, steps)
	}
	return steps, nil
}
