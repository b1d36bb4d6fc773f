package lyrics

import (
	"context"
	"fmt"
	"time"

	"lyricsync/internal/timing"
)

const keyPrefix = "lyricsync:meta:"

// KV RedisSource 需要的最小接口，由 pkg/redis.Client 实现
type KV interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// RedisSource 以 JSON 缓存元数据
type RedisSource struct {
	kv  KV
	ttl time.Duration
}

func NewRedisSource(kv KV, ttl time.Duration) *RedisSource {
	return &RedisSource{kv: kv, ttl: ttl}
}

func (r *RedisSource) Name() string { return "redis" }

func (r *RedisSource) Lookup(ctx context.Context, key string) (*timing.SongMetadata, error) {
	data, err := r.kv.GetBytes(ctx, keyPrefix+key)
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return timing.DecodeMetadata(data, timing.FormatJSON)
}

func (r *RedisSource) Store(ctx context.Context, key string, meta *timing.SongMetadata) error {
	data, err := timing.EncodeMetadata(meta)
	if err != nil {
		return err
	}
	if err := r.kv.SetWithExpiration(ctx, keyPrefix+key, data, r.ttl); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
