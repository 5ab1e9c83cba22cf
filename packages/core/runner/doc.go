// Package runner executes scenario files against live servers.
//
// Requests run in file order by default, reordered only when @depends
// names an explicit dependency. Captured values and [[NAME]] bindings from
// expected response bodies flow into later requests through the resolver.
// Parallel mode runs independent requests under a bounded worker pool,
// and an optional rate limit throttles request starts. Latency percentiles
// are aggregated across the run.
package runner
