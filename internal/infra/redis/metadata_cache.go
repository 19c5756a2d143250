package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/infra/metrics"
)

var _ adapter.Extractor = (*metadataCache)(nil)

// metadataCache is a read-through cache in front of an Extractor. Only
// successful resolutions are cached; redis errors degrade to pass-through.
type metadataCache struct {
	inner  adapter.Extractor
	cache  RedisClient
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewMetadataCache(inner adapter.Extractor, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) adapter.Extractor {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &metadataCache{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func metadataKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "vidscribe:meta:" + hex.EncodeToString(sum[:])
}

func (d *metadataCache) Resolve(ctx context.Context, url string) (*model.SourceInfo, error) {
	key := metadataKey(url)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var info model.SourceInfo
		if json.Unmarshal([]byte(val), &info) == nil {
			metrics.IncCacheRequest("metadata", "hit")
			return &info, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.logger.Warn().Err(err).Str("key", key).Msg("metadata cache read failed")
	}

	metrics.IncCacheRequest("metadata", "miss")
	info, err := d.inner.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	if b, mErr := json.Marshal(info); mErr == nil {
		if sErr := d.cache.Set(ctx, key, b, d.ttl); sErr != nil {
			d.logger.Warn().Err(sErr).Str("key", key).Msg("metadata cache write failed")
		}
	}
	return info, nil
}
