package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain/repository"
	apperrors "github.com/landscape-rescale/internal/pkg/errors"
)

// cacheRepository хранит сериализованные результаты прогонов.
// Промах - (nil, nil); ошибки Redis оборачиваются в ErrCacheError,
// вызывающий решает, идти ли в хранилище.
type cacheRepository struct {
	client redis.Cmdable
	logger *zap.Logger
}

func NewCacheRepository(r *Redis) repository.CacheRepository {
	return NewCacheRepositoryWithClient(r.Client(), r.logger)
}

// NewCacheRepositoryWithClient создает репозиторий поверх готового клиента (тесты, pipeline)
func NewCacheRepositoryWithClient(client redis.Cmdable, logger *zap.Logger) repository.CacheRepository {
	return &cacheRepository{
		client: client,
		logger: logger.With(zap.String("component", "results_cache")),
	}
}

func (r *cacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		r.logger.Debug("Cache miss", zap.String("key", key))
		return nil, nil
	case err != nil:
		return nil, apperrors.Wrap(err, apperrors.ErrCacheError)
	}

	r.logger.Debug("Cache hit", zap.String("key", key), zap.Int("bytes", len(val)))
	return val, nil
}

// Set сохраняет значение; ttl <= 0 означает без срока
func (r *cacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCacheError)
	}

	r.logger.Debug("Cache set", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (r *cacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCacheError)
	}

	r.logger.Debug("Cache deleted", zap.Strings("keys", keys))
	return nil
}
