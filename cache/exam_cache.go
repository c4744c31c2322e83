package cache

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/grindolympiads/examgate/config"
	"github.com/grindolympiads/examgate/olympiads"
)

const examListKey = "list"

// ExamCache caches the backend exam listing. The listing is identical for
// every user, so it is cached once with a TTL instead of per session.
type ExamCache struct {
	cache *PrefixedCache[[]olympiads.Exam]
	ttl   time.Duration
}

// NewExamCache creates an exam listing cache for the configured backend.
func NewExamCache(cfg *config.CacheConfig) *ExamCache {
	ttl := 10 * time.Minute
	if cfg != nil && cfg.ExamListTTL > 0 {
		ttl = time.Duration(cfg.ExamListTTL) * time.Minute
	}
	return &ExamCache{
		cache: NewPrefixedCache[[]olympiads.Exam](newCacheByType(cfg, ttl), "exams:"),
		ttl:   ttl,
	}
}

// Get returns the cached exam listing, if present.
func (ec *ExamCache) Get(ctx context.Context) ([]olympiads.Exam, bool) {
	exams, err := ec.cache.Get(ctx, examListKey)
	if err != nil {
		return nil, false
	}
	return exams, true
}

// Set stores the exam listing.
func (ec *ExamCache) Set(ctx context.Context, exams []olympiads.Exam) {
	if err := ec.cache.Set(ctx, examListKey, exams, store.WithExpiration(ec.ttl)); err != nil {
		log.Warn("failed to cache exam listing", "error", err)
	}
}

// Invalidate drops the cached exam listing. Used after a problem update so
// admins see their edits immediately.
func (ec *ExamCache) Invalidate(ctx context.Context) {
	if err := ec.cache.Delete(ctx, examListKey); err != nil {
		log.Warn("failed to invalidate exam listing cache", "error", err)
	}
}
