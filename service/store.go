package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/model"
)

// ResultStore 预测结果的保存与按 ID 查询，计算前从不读取
type ResultStore interface {
	Save(ctx context.Context, rec *model.PredictionRecord) error
	Get(ctx context.Context, id string) (*model.PredictionRecord, error)
	Close() error
}

// NewResultStore 按 store.backend 创建存储
func NewResultStore(ctx context.Context, cfg *config.Config) (ResultStore, error) {
	switch cfg.Store.Backend {
	case "none":
		return NopStore{}, nil
	case "", "memory":
		return NewMemoryStore(cfg.Store.TTL), nil
	case "redis":
		s := NewRedisStore(&cfg.Redis, cfg.Store.TTL)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return s, nil
	case "sqlite":
		return NewSQLiteStore(cfg.Store.SQLitePath, cfg.Store.TTL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// NopStore 不保存任何结果
type NopStore struct{}

func (NopStore) Save(context.Context, *model.PredictionRecord) error { return nil }

func (NopStore) Get(context.Context, string) (*model.PredictionRecord, error) {
	return nil, ErrNotFound
}

func (NopStore) Close() error { return nil }

type memoryEntry struct {
	rec     *model.PredictionRecord
	expires time.Time
}

// MemoryStore 进程内存储，ttl 为 0 时永不过期
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save 同时清理已过期的记录
func (s *MemoryStore) Save(ctx context.Context, rec *model.PredictionRecord) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
		}
	}

	var expires time.Time
	if s.ttl > 0 {
		expires = now.Add(s.ttl)
	}
	s.entries[rec.ID] = memoryEntry{rec: rec, expires: expires}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.PredictionRecord, error) {
	s.mu.RLock()
	e, exists := s.entries[id]
	s.mu.RUnlock()

	if !exists || s.expired(e, s.now()) {
		return nil, ErrNotFound
	}
	return e.rec, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) expired(e memoryEntry, now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

var (
	_ ResultStore = NopStore{}
	_ ResultStore = (*MemoryStore)(nil)
	_ ResultStore = (*RedisStore)(nil)
	_ ResultStore = (*SQLiteStore)(nil)
)
