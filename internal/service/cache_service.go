package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
)

const resultCachePrefix = "workflow:result"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService caches approved student results. Pending results are never cached because they
// change with every score edit.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func resultCacheKey(classID, studentID string) string {
	return fmt.Sprintf("%s:%s:%s", resultCachePrefix, classID, studentID)
}

// GetStudentResult returns a cached approved result. Cache failures degrade to a miss.
func (s *CacheService) GetStudentResult(ctx context.Context, classID, studentID string) (*dto.StudentResult, bool) {
	if !s.Enabled() {
		return nil, false
	}
	key := resultCacheKey(classID, studentID)
	start := time.Now()
	var result dto.StudentResult
	err := s.repo.Get(ctx, key, &result)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("result cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return &result, true
}

// SetStudentResult stores an approved result.
func (s *CacheService) SetStudentResult(ctx context.Context, result *dto.StudentResult) {
	if !s.Enabled() || result == nil || !result.Approved {
		return
	}
	key := resultCacheKey(result.ClassID, result.StudentID)
	start := time.Now()
	err := s.repo.Set(ctx, key, result, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("result cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateClass drops every cached result of the class.
func (s *CacheService) InvalidateClass(ctx context.Context, classID string) {
	if !s.Enabled() {
		return
	}
	pattern := fmt.Sprintf("%s:%s:*", resultCachePrefix, classID)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("result cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
