package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/CloneITai/CloneITLocalAis/config"
	"github.com/CloneITai/CloneITLocalAis/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "cutout:"

// CachedResult 是缓存中保存的成功结果
type CachedResult struct {
	Image  []byte   `json:"image"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Steps  []string `json:"steps"`
}

// ResultCache 按 模型名 + 上传内容MD5 缓存结果
type ResultCache interface {
	GetResult(ctx context.Context, model, md5 string) (*CachedResult, error)
	SetResult(ctx context.Context, model, md5 string, result *CachedResult) error
}

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.CacheConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func CacheKey(model, md5 string) string {
	return cacheKeyPrefix + model + ":" + md5
}

// GetResult 缓存未命中时返回 (nil, nil)
func (s *RedisService) GetResult(ctx context.Context, model, md5 string) (*CachedResult, error) {
	data, err := s.client.Get(ctx, CacheKey(model, md5)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var result CachedResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal cached result",
			zap.String("md5", md5), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

func (s *RedisService) SetResult(ctx context.Context, model, md5 string, result *CachedResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, CacheKey(model, md5), data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
