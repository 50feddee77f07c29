package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "MacroGate/pkg/cache"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ServiceBytes adapts a pkg/cache.Service (Redis or layered) to BytesCache.
type ServiceBytes struct {
	svc pkgcache.Service
}

var _ BytesCache = (*ServiceBytes)(nil)

func NewServiceBytes(svc pkgcache.Service) *ServiceBytes {
	return &ServiceBytes{svc: svc}
}

func (s *ServiceBytes) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	var b []byte
	if err := s.svc.Get(ctx, key, &b); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s *ServiceBytes) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.svc.Set(ctx, key, value, ttl)
}
