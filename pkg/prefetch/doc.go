// Package prefetch warms the response cache by fetching a set of
// targets in parallel through the caching client.
//
// Example usage:
//
//	w := prefetch.NewWarmer(c, prefetch.DefaultConfig())
//	results, err := w.Warm(ctx, []string{
//		"https://api.example.com/widgets/1",
//		"https://api.example.com/widgets/2",
//	})
//
// The warmer:
//   - Spawns a bounded worker pool (default 8 workers)
//   - Issues one GET per distinct target; fresh entries are served from
//     the cache and count as hits
//   - Records a Result per target, including failures
//   - Returns an error only when at least one target failed
package prefetch
