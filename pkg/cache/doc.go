// Package cache stores fetched portal pages in Redis.
//
// A cached page is keyed by the portal endpoint plus the complete query,
// page index included, so two runs with different filters never share an
// entry. Only successful (2xx) responses are cached; failures always go
// back to the network.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	manager, err := cache.NewManager(redisClient, time.Hour)
//	if err != nil {
//		return err
//	}
//
//	key := cache.PageKey{
//		Endpoint: "https://portal.example/CountyOwnedProperties",
//		Query:    filters.Query(3),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the portal, then manager.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - scrape_cache_hits_total - page served from Redis
//   - scrape_cache_misses_total - page not cached or expired
//   - scrape_cache_stored_bytes_total - bytes written to Redis
//   - scrape_cache_errors_total{operation} - Redis failures by operation
package cache
