// Package health provides health checking for the key-rotation service.
//
// A Checker reports the health of one component. PoolChecker reports the
// state of a resilience.KeyPool: healthy while every key is active, degraded
// while some keys are cooling down, and unhealthy once every key is cooling
// down. PingChecker wraps a dependency that can be pinged, such as the Redis
// stats backend.
//
// # Aggregating Health Checks
//
//	agg := health.NewAggregator()
//	agg.Register("keypool", health.NewPoolChecker(pool))
//	agg.Register("stats", health.NewPingChecker("stats", recorder))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
//	r := chi.NewRouter()
//	health.RegisterHandlers(r, agg) // /healthz, /readyz, /health
package health
