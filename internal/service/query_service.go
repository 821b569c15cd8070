package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arkival/arkive-api/internal/models"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
)

type recordLister interface {
	ListByArchive(ctx context.Context, archive string) ([]models.Record, error)
}

type resultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// QueryService filters records by name substring and tag set operations.
// Predicates are evaluated in process with a deterministic lowercase-contains
// name check, keeping behavior independent of any database pattern engine.
// Results are cached per (archive, query) and invalidated on record mutation.
type QueryService struct {
	records  recordLister
	archives archiveDirectory
	cache    resultCache
	metrics  *MetricsService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewQueryService constructs the service. The cache may be nil, in which
// case every query hits the metadata store.
func NewQueryService(records recordLister, archives archiveDirectory, cache resultCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryService{records: records, archives: archives, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// Find returns the archive's records matching the query. All provided
// filters combine with AND; absent filters impose no constraint.
func (s *QueryService) Find(ctx context.Context, archive string, query models.RecordQuery) ([]models.Record, error) {
	exists, err := s.archives.Exists(ctx, archive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check archive")
	}
	if !exists {
		return nil, appErrors.ErrArchiveNotFound
	}

	key := s.cacheKey(archive, query)
	if s.cache != nil {
		var cached []models.Record
		start := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("record query cache read failed", zap.Error(err))
		}
	}

	records, err := s.records.ListByArchive(ctx, archive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}

	matched := make([]models.Record, 0, len(records))
	for _, record := range records {
		if matches(&record, query) {
			matched = append(matched, record)
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, matched, s.ttl); err != nil {
			s.logger.Warn("record query cache write failed", zap.Error(err))
		}
	}
	return matched, nil
}

// InvalidateArchive drops every cached query result for the archive.
func (s *QueryService) InvalidateArchive(ctx context.Context, archive string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "records:"+archive+":*"); err != nil {
		s.logger.Warn("record query cache invalidation failed", zap.Error(err), zap.String("archive", archive))
	}
}

func (s *QueryService) cacheKey(archive string, query models.RecordQuery) string {
	payload, _ := json.Marshal(query)
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("records:%s:%s", archive, hex.EncodeToString(sum[:8]))
}

func matches(record *models.Record, query models.RecordQuery) bool {
	if query.Name != "" {
		if !strings.Contains(strings.ToLower(record.Name), strings.ToLower(query.Name)) {
			return false
		}
	}
	if len(query.IncludeTags) > 0 && !anyTag(record, query.IncludeTags) {
		return false
	}
	for _, tag := range query.ExcludeTags {
		if record.HasTag(tag) {
			return false
		}
	}
	for _, tag := range query.FilterTags {
		if !record.HasTag(tag) {
			return false
		}
	}
	return true
}

func anyTag(record *models.Record, tags []string) bool {
	for _, tag := range tags {
		if record.HasTag(tag) {
			return true
		}
	}
	return false
}
