package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"creditflow/internal/evaluation/metrics"
	evmodels "creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/ports"
	id "creditflow/pkg/domain"
)

const factKeyPrefix = "creditflow:fact:"

// ErrCacheMiss is returned by a Cache when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores encoded facts with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache is the Redis-backed Cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// CachedProvider serves available facts from the cache and stores freshly
// loaded ones. Cache failures fall through to the wrapped provider.
type CachedProvider struct {
	next    ports.FactProvider
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type CacheOption func(*CachedProvider)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(p *CachedProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(p *CachedProvider) { p.metrics = m }
}

// NewCachedProvider wraps next. A non-positive ttl disables caching.
func NewCachedProvider(next ports.FactProvider, cache Cache, ttl time.Duration, opts ...CacheOption) *CachedProvider {
	p := &CachedProvider{next: next, cache: cache, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *CachedProvider) Category() evmodels.FactCategory { return p.next.Category() }

func (p *CachedProvider) Load(ctx context.Context, applicantID id.ApplicantID) (evmodels.Fact, error) {
	if p.cache == nil || p.ttl <= 0 {
		return p.next.Load(ctx, applicantID)
	}
	category := p.next.Category()
	key := factKey(category, applicantID)

	data, err := p.cache.Get(ctx, key)
	switch {
	case err == nil:
		fact, decodeErr := decodeFact(category, data)
		if decodeErr == nil {
			p.metrics.ObserveFactCache(string(category), true)
			return fact, nil
		}
		p.logger.WarnContext(ctx, "discarding corrupt cached fact", "key", key, "error", decodeErr)
	case !errors.Is(err, ErrCacheMiss):
		p.logger.WarnContext(ctx, "fact cache read failed", "key", key, "error", err)
	}
	p.metrics.ObserveFactCache(string(category), false)

	fact, err := p.next.Load(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if fact == nil || !fact.Available() {
		return fact, nil
	}
	encoded, err := json.Marshal(fact)
	if err != nil {
		return fact, nil
	}
	if err := p.cache.Set(ctx, key, encoded, p.ttl); err != nil {
		p.logger.WarnContext(ctx, "fact cache write failed", "key", key, "error", err)
	}
	return fact, nil
}

func factKey(category evmodels.FactCategory, applicantID id.ApplicantID) string {
	return factKeyPrefix + string(category) + ":" + applicantID.String()
}

func decodeFact(category evmodels.FactCategory, data []byte) (evmodels.Fact, error) {
	switch category {
	case evmodels.FactApplicantProfile:
		var f evmodels.ApplicantProfile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return f, nil
	case evmodels.FactCreditBureau:
		var f evmodels.CreditBureau
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return f, nil
	case evmodels.FactBankingHistory:
		var f evmodels.BankingHistory
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown fact category %q", category)
	}
}
