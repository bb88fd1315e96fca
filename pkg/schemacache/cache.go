// Package schemacache caches discovered datasource schemas with a TTL.
// Expired entries are refreshed at most once concurrently per datasource,
// and a stale copy is served when a refresh fails.
package schemacache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

const DefaultTTL = time.Hour

// SchemaFetcher discovers the live schema of a datasource.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context, ds *models.Datasource) (*models.SchemaDescriptor, error)
}

// Cache provides TTL-cached schema descriptors.
type Cache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	ttl     time.Duration
	group   singleflight.Group
	fetcher SchemaFetcher
	logger  *zap.Logger
	now     func() time.Time
}

type entry struct {
	descriptor *models.SchemaDescriptor
	fetchedAt  time.Time
}

// NewCache creates a schema cache. A ttl of zero uses DefaultTTL.
func NewCache(fetcher SchemaFetcher, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[uuid.UUID]*entry),
		ttl:     ttl,
		fetcher: fetcher,
		logger:  logger.Named("schemacache"),
		now:     time.Now,
	}
}

// Get returns the schema for a datasource. A fresh cached entry is served
// without touching the datasource. An expired entry triggers exactly one
// refresh across concurrent callers; if that refresh fails the expired
// entry is served marked Stale. With no usable entry at all the error is
// classified as schema-unavailable.
func (c *Cache) Get(ctx context.Context, ds *models.Datasource) (*models.SchemaDescriptor, error) {
	c.mu.RLock()
	cached, exists := c.entries[ds.ID]
	c.mu.RUnlock()

	if exists && c.now().Sub(cached.fetchedAt) < c.ttl {
		return snapshot(cached.descriptor, false), nil
	}

	// Expired or missing: refresh, collapsing concurrent callers.
	result, err, _ := c.group.Do(ds.ID.String(), func() (any, error) {
		// Another caller may have refreshed while we waited for the flight.
		c.mu.RLock()
		current, ok := c.entries[ds.ID]
		c.mu.RUnlock()
		if ok && c.now().Sub(current.fetchedAt) < c.ttl {
			return current.descriptor, nil
		}
		return c.refresh(ctx, ds)
	})
	if err == nil {
		return snapshot(result.(*models.SchemaDescriptor), false), nil
	}

	if exists {
		c.logger.Warn("schema refresh failed, serving stale copy",
			zap.String("datasourceID", ds.ID.String()),
			zap.Duration("age", c.now().Sub(cached.fetchedAt)),
			zap.Error(err),
		)
		return snapshot(cached.descriptor, true), nil
	}

	return nil, apperrors.New(apperrors.KindSchemaUnavailable, err)
}

// refresh discovers the schema and swaps in a freshly built entry. Readers
// holding the previous descriptor are unaffected.
func (c *Cache) refresh(ctx context.Context, ds *models.Datasource) (*models.SchemaDescriptor, error) {
	descriptor, err := c.fetcher.FetchSchema(ctx, ds)
	if err != nil {
		return nil, err
	}
	descriptor.DatasourceID = ds.ID
	descriptor.FetchedAt = c.now()

	c.mu.Lock()
	c.entries[ds.ID] = &entry{descriptor: descriptor, fetchedAt: descriptor.FetchedAt}
	c.mu.Unlock()

	c.logger.Info("schema refreshed",
		zap.String("datasourceID", ds.ID.String()),
		zap.Int("tables", descriptor.TableCount()),
	)
	return descriptor, nil
}

// Warm fetches schemas for the given datasources concurrently and returns
// once every attempt settles. Failures are logged and skipped. Callers that
// must stay responsive run Warm in a goroutine; a Get arriving before
// warm-up completes joins the in-flight fetch for its datasource.
func (c *Cache) Warm(ctx context.Context, datasources []*models.Datasource) {
	var wg sync.WaitGroup
	for _, ds := range datasources {
		wg.Add(1)
		go func(ds *models.Datasource) {
			defer wg.Done()
			_, err, _ := c.group.Do(ds.ID.String(), func() (any, error) {
				return c.refresh(ctx, ds)
			})
			if err != nil {
				c.logger.Warn("schema warm-up failed",
					zap.String("datasourceID", ds.ID.String()),
					zap.String("name", ds.Name),
					zap.Error(err),
				)
			}
		}(ds)
	}
	wg.Wait()
}

// Invalidate drops the cached entry for a datasource.
func (c *Cache) Invalidate(datasourceID uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, datasourceID)
	c.mu.Unlock()
}

// snapshot returns a per-caller copy of the descriptor with the Stale flag
// set. The table slice is shared and treated as read-only.
func snapshot(d *models.SchemaDescriptor, stale bool) *models.SchemaDescriptor {
	copied := *d
	copied.Stale = stale
	return &copied
}
