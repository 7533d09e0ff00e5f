// Package reconcile detects and repairs divergence between preference
// providers.
//
// Writes fan out to every provider without a transaction, so providers
// can drift apart: a backend that was down during a write misses keys,
// a racing pair of writes can leave different values behind. This
// package makes that drift visible and optionally repairs it.
//
// # Architecture
//
// The reconcile flow has three steps:
//
//  1. Snapshot: load every provider's full contents concurrently.
//
//  2. Truth: resolve each key across the snapshot with a conflict
//     resolution strategy, producing the desired state.
//
//  3. Plan/Apply: compare each provider against the truth, report
//     missing, stale and extra keys, and optionally write the repairs
//     back.
//
// A TTL-based snapshot cache with stampede protection keeps repeated
// runs cheap when reconcile is exposed as a polled endpoint.
//
// # Usage Example
//
//	plan, executed, err := reconcile.Run(ctx, providers, prefs.StrategyHighestPriority, reconcile.Options{
//	    Confirmed: true,
//	})
//
// Apply refuses to mutate anything unless Options.Confirmed is set and
// Options.DryRun is unset; planning alone never writes.
package reconcile
