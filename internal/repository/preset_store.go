package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	"MacroGate/pkg/cache"
)

const (
	presetPrefix  = "preset"
	presetLockTTL = 5 * time.Second
)

// PresetStore keeps named calendars in a cache.Service (memory or Redis).
// Entries never expire.
type PresetStore struct {
	kv cache.Service
}

var _ domrepo.PresetStore = (*PresetStore)(nil)

func NewPresetStore(kv cache.Service) *PresetStore {
	return &PresetStore{kv: kv}
}

// List returns preset names sorted.
func (s *PresetStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, cache.BuildPattern(presetPrefix))
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, presetPrefix+":"))
	}
	return names, nil
}

// Save creates or overwrites a preset.
func (s *PresetStore) Save(ctx context.Context, name string, events []models.ScheduledEvent) error {
	if events == nil {
		events = []models.ScheduledEvent{}
	}
	if err := s.kv.Set(ctx, presetKey(name), events, 0); err != nil {
		return fmt.Errorf("save preset %q: %w", name, err)
	}
	return nil
}

func (s *PresetStore) Load(ctx context.Context, name string) ([]models.ScheduledEvent, error) {
	var events []models.ScheduledEvent
	if err := s.kv.Get(ctx, presetKey(name), &events); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, domrepo.ErrPresetNotFound
		}
		return nil, fmt.Errorf("load preset %q: %w", name, err)
	}
	return events, nil
}

func (s *PresetStore) Delete(ctx context.Context, name string) error {
	ok, err := s.kv.Exists(ctx, presetKey(name))
	if err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	if !ok {
		return domrepo.ErrPresetNotFound
	}
	return s.kv.Delete(ctx, presetKey(name))
}

// Rename moves a preset under a lock so concurrent renames of the same
// source cannot both succeed.
func (s *PresetStore) Rename(ctx context.Context, from, to string) error {
	if from == to {
		_, err := s.Load(ctx, from)
		return err
	}
	lock := cache.Key("lock", presetPrefix, from)
	ok, err := s.kv.TryLock(ctx, lock, presetLockTTL)
	if err != nil {
		return fmt.Errorf("lock preset %q: %w", from, err)
	}
	if !ok {
		return fmt.Errorf("preset %q is busy", from)
	}
	defer func() { _ = s.kv.Unlock(ctx, lock) }()

	events, err := s.Load(ctx, from)
	if err != nil {
		return err
	}
	exists, err := s.kv.Exists(ctx, presetKey(to))
	if err != nil {
		return fmt.Errorf("rename preset: %w", err)
	}
	if exists {
		return domrepo.ErrPresetExists
	}
	if err := s.Save(ctx, to, events); err != nil {
		return err
	}
	return s.kv.Delete(ctx, presetKey(from))
}

func presetKey(name string) string {
	return cache.Key(presetPrefix, name)
}
