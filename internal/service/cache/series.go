package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	pkgcache "MacroGate/pkg/cache"
	applogger "MacroGate/pkg/logger"
)

// CachedSeriesSource memoizes an upstream SeriesSource per ticker and time
// bucket. Errors are never cached.
type CachedSeriesSource struct {
	next   domrepo.SeriesSource
	cache  BytesCache
	bucket time.Duration
	ttl    time.Duration
	now    func() time.Time
	l      *applogger.Logger
}

var _ domrepo.SeriesSource = (*CachedSeriesSource)(nil)

// NewCachedSeriesSource wraps next. bucket is the key granularity, ttl the
// entry lifetime (defaults to bucket).
func NewCachedSeriesSource(next domrepo.SeriesSource, c BytesCache, bucket, ttl time.Duration, l *applogger.Logger) *CachedSeriesSource {
	if bucket <= 0 {
		bucket = time.Minute
	}
	if ttl <= 0 {
		ttl = bucket
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedSeriesSource{next: next, cache: c, bucket: bucket, ttl: ttl, now: time.Now, l: l}
}

func (s *CachedSeriesSource) FetchSeries(ctx context.Context, ticker string) ([]models.Bar, error) {
	key := s.key("series", ticker)
	if b, ok := s.get(ctx, key); ok {
		var bars []models.Bar
		if err := json.Unmarshal(b, &bars); err == nil {
			return bars, nil
		}
	}

	bars, err := s.next.FetchSeries(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(bars); err == nil {
		s.set(ctx, key, b)
	}
	return bars, nil
}

func (s *CachedSeriesSource) FetchLastPrice(ctx context.Context, ticker string) (float64, error) {
	key := s.key("last", ticker)
	if b, ok := s.get(ctx, key); ok {
		if v, err := strconv.ParseFloat(string(b), 64); err == nil {
			return v, nil
		}
	}

	v, err := s.next.FetchLastPrice(ctx, ticker)
	if err != nil {
		return 0, err
	}
	s.set(ctx, key, []byte(strconv.FormatFloat(v, 'g', -1, 64)))
	return v, nil
}

func (s *CachedSeriesSource) key(kind, ticker string) string {
	return pkgcache.Key("md", kind, ticker, s.now().Truncate(s.bucket).Unix())
}

func (s *CachedSeriesSource) get(ctx context.Context, key string) ([]byte, bool) {
	b, ok, err := s.cache.GetBytes(ctx, key)
	if err != nil {
		s.l.Warn("series cache read failed", applogger.String("key", key), applogger.Error(err))
		return nil, false
	}
	return b, ok
}

func (s *CachedSeriesSource) set(ctx context.Context, key string, b []byte) {
	if err := s.cache.SetBytes(ctx, key, b, s.ttl); err != nil {
		s.l.Warn("series cache write failed", applogger.String("key", key), applogger.Error(fmt.Errorf("set: %w", err)))
	}
}
