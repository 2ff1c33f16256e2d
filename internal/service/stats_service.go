package service

import (
	"sync"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"

	"github.com/opsgate/opsgate/internal/domain/insight"
)

// Gatherer is the subset of the Prometheus registry the stats service reads.
type Gatherer interface {
	Gather() ([]*dto.MetricFamily, error)
}

// StatsService tracks runtime statistics using lock-free atomic counters.
// All counter operations are safe for concurrent access from multiple
// goroutines.
type StatsService struct {
	admitted     atomic.Int64
	rejected     atomic.Int64
	authDenied   atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	handlerFails atomic.Int64

	// Per-rejection-reason counters (mutex-protected map).
	mu           sync.Mutex
	reasonCounts map[string]int64

	cache    *insight.Cache
	gatherer Gatherer
}

// NewStatsService creates a StatsService with all counters at zero. cache
// and gatherer may be nil; the corresponding snapshot sections are omitted.
func NewStatsService(cache *insight.Cache, gatherer Gatherer) *StatsService {
	return &StatsService{
		reasonCounts: make(map[string]int64),
		cache:        cache,
		gatherer:     gatherer,
	}
}

// RecordAdmitted increments the admitted-action counter.
func (s *StatsService) RecordAdmitted() {
	s.admitted.Add(1)
}

// RecordRejected increments the rejected counter for the given reason.
func (s *StatsService) RecordRejected(reason string) {
	s.rejected.Add(1)
	if reason == "" {
		return
	}
	s.mu.Lock()
	s.reasonCounts[reason]++
	s.mu.Unlock()
}

// RecordAuthDenied increments the authorization-denied counter.
func (s *StatsService) RecordAuthDenied() {
	s.authDenied.Add(1)
}

// RecordCacheHit increments the insight cache hit counter.
func (s *StatsService) RecordCacheHit() {
	s.cacheHits.Add(1)
}

// RecordCacheMiss increments the insight cache miss counter.
func (s *StatsService) RecordCacheMiss() {
	s.cacheMisses.Add(1)
}

// RecordHandlerFailure increments the handler failure counter.
func (s *StatsService) RecordHandlerFailure() {
	s.handlerFails.Add(1)
}

// Stats holds a snapshot of all counters at a point in time.
type Stats struct {
	Admitted        int64            `json:"admitted"`
	Rejected        int64            `json:"rejected"`
	RejectionCounts map[string]int64 `json:"rejection_counts"`
	AuthDenied      int64            `json:"auth_denied"`
	CacheHits       int64            `json:"cache_hits"`
	CacheMisses     int64            `json:"cache_misses"`
	HandlerFailures int64            `json:"handler_failures"`
	CacheEntries    int              `json:"cache_entries"`
	CacheExpired    int              `json:"cache_expired"`
	MetricFamilies  int              `json:"metric_families"`
}

// GetStats returns a snapshot of all counters. The snapshot is consistent
// per-counter but not atomically across all counters.
func (s *StatsService) GetStats() Stats {
	s.mu.Lock()
	reasons := make(map[string]int64, len(s.reasonCounts))
	for k, v := range s.reasonCounts {
		reasons[k] = v
	}
	s.mu.Unlock()

	stats := Stats{
		Admitted:        s.admitted.Load(),
		Rejected:        s.rejected.Load(),
		RejectionCounts: reasons,
		AuthDenied:      s.authDenied.Load(),
		CacheHits:       s.cacheHits.Load(),
		CacheMisses:     s.cacheMisses.Load(),
		HandlerFailures: s.handlerFails.Load(),
	}

	if s.cache != nil {
		for _, snap := range s.cache.GetAll() {
			stats.CacheEntries++
			if snap.Expired {
				stats.CacheExpired++
			}
		}
	}
	if s.gatherer != nil {
		if families, err := s.gatherer.Gather(); err == nil {
			stats.MetricFamilies = len(families)
		}
	}
	return stats
}

// Reset sets all counters to zero.
func (s *StatsService) Reset() {
	s.admitted.Store(0)
	s.rejected.Store(0)
	s.authDenied.Store(0)
	s.cacheHits.Store(0)
	s.cacheMisses.Store(0)
	s.handlerFails.Store(0)

	s.mu.Lock()
	s.reasonCounts = make(map[string]int64)
	s.mu.Unlock()
}
