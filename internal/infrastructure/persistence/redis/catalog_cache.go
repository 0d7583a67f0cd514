package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/learnora/learnora-progress/internal/domain/catalog"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG CACHE
// ══════════════════════════════════════════════════════════════════════════════

// CatalogCache is a read-through cache in front of a catalog resolver.
// Completion propagation resolves the same parents and child lists over
// and over; catalog rows change rarely, so a short TTL absorbs most of
// that read traffic.
//
// Only successful lookups are cached. Misses and store errors always go
// to the underlying resolver, so an entity added to the catalog becomes
// visible immediately.
type CatalogCache struct {
	resolver catalog.Resolver
	cache    *Cache
	logger   *slog.Logger
}

// NewCatalogCache wraps a resolver with Redis caching.
func NewCatalogCache(resolver catalog.Resolver, cache *Cache, logger *slog.Logger) *CatalogCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogCache{
		resolver: resolver,
		cache:    cache,
		logger:   logger,
	}
}

// ParentOf implements catalog.Resolver.
func (c *CatalogCache) ParentOf(ctx context.Context, childID string, childType shared.EntityType) (string, error) {
	key := CatalogParentKey(childType.String(), childID)

	var parentID string
	err := c.cache.Get(ctx, key, &parentID)
	if err == nil {
		return parentID, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		// Cache trouble must not fail propagation.
		c.logger.Warn("catalog cache read failed",
			"key", key,
			"error", err,
		)
	}

	parentID, err = c.resolver.ParentOf(ctx, childID, childType)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, parentID, TTLCatalogEntry); err != nil {
		c.logger.Warn("catalog cache write failed",
			"key", key,
			"error", err,
		)
	}
	return parentID, nil
}

// ChildrenOf implements catalog.Resolver.
func (c *CatalogCache) ChildrenOf(ctx context.Context, parentID string, parentType shared.EntityType) ([]string, error) {
	key := CatalogChildrenKey(parentType.String(), parentID)

	var children []string
	err := c.cache.Get(ctx, key, &children)
	if err == nil {
		return children, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("catalog cache read failed",
			"key", key,
			"error", err,
		)
	}

	children, err = c.resolver.ChildrenOf(ctx, parentID, parentType)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, children, TTLCatalogEntry); err != nil {
		c.logger.Warn("catalog cache write failed",
			"key", key,
			"error", err,
		)
	}
	return children, nil
}

// Invalidate drops cached lookups for one entity. Callers that mutate
// the catalog use this to keep the cache coherent without waiting for
// the TTL.
func (c *CatalogCache) Invalidate(ctx context.Context, entityID string, entityType shared.EntityType) error {
	return c.cache.Delete(ctx,
		CatalogParentKey(entityType.String(), entityID),
		CatalogChildrenKey(entityType.String(), entityID),
	)
}
