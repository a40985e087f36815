package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/TIANLI0/MaskKit/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const resultKeyPrefix = "result:"

// RedisStore 结果保存在 Redis，依赖 key 的过期时间
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(cfg *config.RedisConfig, ttl time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get 按请求 ID 读取结果
func (s *RedisStore) Get(ctx context.Context, id string) (*model.PredictionRecord, error) {
	data, err := s.client.Get(ctx, resultKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var rec model.PredictionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		utils.Logger.Error("failed to unmarshal prediction record",
			zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return &rec, nil
}

// Save 写入结果，ttl 为 0 时不过期
func (s *RedisStore) Save(ctx context.Context, rec *model.PredictionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, resultKeyPrefix+rec.ID, data, s.ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
