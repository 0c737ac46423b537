// internal/campaigns/cache.go
package campaigns

import (
	"context"
	"sync"
	"time"

	apperrors "marketing-platform/internal/common/errors"
	"marketing-platform/internal/common/logger"
	"marketing-platform/internal/common/metrics"
	"marketing-platform/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Endpoint identifies the campaign read path; it is half of every cache key
// so a future second endpoint cannot collide with this one.
const Endpoint = "/api/public/campaigns"

// InvalidationChannel carries tenant ids whose cached campaign lists must be
// dropped, so every replica hears about admin mutations.
const InvalidationChannel = "campaigns:invalidate"

// Fetcher loads a tenant's full campaign list from the backing store.
type Fetcher interface {
	FetchCampaigns(ctx context.Context, tenantID string) ([]models.Campaign, error)
}

type cacheEntry struct {
	campaigns []models.Campaign
	fetchedAt time.Time
}

// Cache keeps one campaign list per tenant so N widgets reading the same
// tenant cost one fetch per freshness window.
//
// Policy: entries are fresh for the fresh window (no refetch), retained up to
// the retention window, and evicted after it. A read between fresh and
// retention refetches synchronously but falls back to the retained entry when
// the fetch fails. Concurrent misses on one key are collapsed into a single
// in-flight fetch.
type Cache struct {
	fetcher   Fetcher
	fresh     time.Duration
	retention time.Duration
	rdb       *redis.Client // optional, cross-replica invalidation
	logger    logger.Logger
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group
}

// CacheOptions configures a Cache. Now is overridable for tests and defaults
// to time.Now.
type CacheOptions struct {
	Fresh     time.Duration
	Retention time.Duration
	Redis     *redis.Client
	Logger    logger.Logger
	Now       func() time.Time
}

func NewCache(fetcher Fetcher, opts CacheOptions) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Fresh == 0 {
		opts.Fresh = 5 * time.Minute
	}
	if opts.Retention == 0 {
		opts.Retention = 10 * time.Minute
	}
	return &Cache{
		fetcher:   fetcher,
		fresh:     opts.Fresh,
		retention: opts.Retention,
		rdb:       opts.Redis,
		logger:    opts.Logger.WithFields(map[string]interface{}{"component": "campaign-cache"}),
		now:       opts.Now,
		entries:   make(map[string]*cacheEntry),
	}
}

// Key produces the stable cache key for a tenant.
func (c *Cache) Key(tenantID string) string {
	return Endpoint + "|" + tenantID
}

// Get returns the tenant's campaign list, fetching only when the cached entry
// is missing or no longer fresh.
func (c *Cache) Get(ctx context.Context, tenantID string) ([]models.Campaign, error) {
	key := c.Key(tenantID)
	now := c.now()

	c.mu.RLock()
	entry := c.entries[key]
	c.mu.RUnlock()

	if entry != nil {
		age := now.Sub(entry.fetchedAt)
		if age < c.fresh {
			metrics.CampaignCacheHits.WithLabelValues("fresh").Inc()
			return copyCampaigns(entry.campaigns), nil
		}
		if age >= c.retention {
			c.mu.Lock()
			// Recheck under the write lock, another goroutine may have
			// replaced the entry already.
			if cur := c.entries[key]; cur == entry {
				delete(c.entries, key)
			}
			c.mu.Unlock()
			entry = nil
		}
	}

	metrics.CampaignCacheMisses.Inc()

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		list, err := c.fetcher.FetchCampaigns(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = &cacheEntry{campaigns: list, fetchedAt: c.now()}
		c.mu.Unlock()
		return list, nil
	})
	if shared {
		metrics.CampaignFetchDeduplicated.Inc()
	}

	if err != nil {
		if entry != nil {
			// Stale but still retained: serve it rather than fail the read.
			metrics.CampaignCacheHits.WithLabelValues("stale").Inc()
			c.logger.Warn("campaign fetch failed, serving retained entry", map[string]interface{}{
				"tenantId": tenantID,
				"error":    err.Error(),
			})
			return copyCampaigns(entry.campaigns), nil
		}
		return nil, apperrors.NewCacheFetchError(tenantID, err)
	}

	return copyCampaigns(v.([]models.Campaign)), nil
}

// Warm prefetches a tenant's campaigns at application start so the first wave
// of widget reads never races into duplicate fetches.
func (c *Cache) Warm(ctx context.Context, tenantID string) error {
	_, err := c.Get(ctx, tenantID)
	return err
}

// Invalidate drops the tenant's entry and broadcasts the invalidation to
// other replicas. Every admin campaign mutation must call this.
func (c *Cache) Invalidate(ctx context.Context, tenantID string) {
	c.dropLocal(tenantID)
	metrics.CampaignCacheInvalidations.Inc()

	if c.rdb != nil {
		if err := c.rdb.Publish(ctx, InvalidationChannel, tenantID).Err(); err != nil {
			c.logger.Warn("failed to publish cache invalidation", map[string]interface{}{
				"tenantId": tenantID,
				"error":    err.Error(),
			})
		}
	}
}

func (c *Cache) dropLocal(tenantID string) {
	c.mu.Lock()
	delete(c.entries, c.Key(tenantID))
	c.mu.Unlock()
}

// SubscribeInvalidations listens for invalidations published by other
// replicas until ctx is cancelled. No-op without a redis client.
func (c *Cache) SubscribeInvalidations(ctx context.Context) {
	if c.rdb == nil {
		return
	}

	sub := c.rdb.Subscribe(ctx, InvalidationChannel)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.dropLocal(msg.Payload)
				c.logger.Debug("dropped cache entry from broadcast", map[string]interface{}{
					"tenantId": msg.Payload,
				})
			}
		}
	}()
}

// Len reports the number of cached tenants, for health reporting.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func copyCampaigns(in []models.Campaign) []models.Campaign {
	out := make([]models.Campaign, len(in))
	copy(out, in)
	return out
}
