// Package prefs implements the preference resolution core: reading
// values from multiple heterogeneous sources, merging them under a
// declared conflict policy, and exposing get/set/delete/list operations
// with optional caching, validation, encryption, and audit logging.
//
// # Architecture
//
// The package is built from three pieces:
//
// 1. Injector: the orchestrator. A get checks the cache, fans out to
// every registered provider, resolves the collected records to one
// winner, caches it, and audits the read. A set validates, optionally
// encrypts, writes to every provider (all sources advance together),
// invalidates the cache, audits, and emits a change event.
//
// 2. ResolveConflict: a pure function mapping same-key records plus a
// strategy (highest/lowest priority, merge, override, error) to one
// winning record. Equal priorities break toward the newest record under
// highest_priority and toward the oldest under lowest_priority.
//
// 3. Cache: a bounded LRU store with lazy TTL expiry, plus a no-op
// variant for when caching is disabled.
//
// Providers, the validator, the encryption service, and the audit
// logger are consumed through narrow interfaces; implementations live
// in the provider/, core/validate, core/crypto, and core/audit
// packages.
//
// # Consistency
//
// Writes fan out to all providers with no rollback or cross-provider
// atomicity: a failing provider leaves earlier providers written, and
// racing writes on one key may leave providers holding different
// values. A lower-priority provider's stored value can therefore
// diverge from what Get returns. The core/reconcile package detects and
// repairs that drift.
//
// # Usage
//
//	injector := prefs.NewInjector(prefs.Config{
//	    Providers: []prefs.Provider{memProv, fileProv},
//	    Strategy:  prefs.StrategyHighestPriority,
//	    CacheEnabled: true,
//	})
//	if err := injector.Initialize(ctx); err != nil { ... }
//	theme, err := injector.Get(ctx, "theme", nil)
package prefs
