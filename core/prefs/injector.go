package prefs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// injectorSource labels audit entries produced by injector writes.
const injectorSource = "injector"

// Config assembles an Injector. Zero-value fields fall back to sane
// defaults: highest-priority strategy, no-op cache, pass-through
// encryption, silent audit and logging.
type Config struct {
	// Providers are fanned out to in insertion order.
	Providers []Provider
	// Strategy picks the conflict resolution policy.
	Strategy Strategy
	// CacheEnabled turns the read cache on.
	CacheEnabled bool
	// CacheTTL is the default entry lifetime when caching is enabled.
	CacheTTL time.Duration
	// CacheMaxEntries bounds the cache when caching is enabled.
	CacheMaxEntries int
	// ValidationEnabled runs the Validator on writes.
	ValidationEnabled bool
	// Validator checks values before they are written.
	Validator Validator
	// Encryption wraps and unwraps string values. Nil means the
	// pass-through NoopEncryption.
	Encryption EncryptionService
	// Audit receives one entry per data operation. Nil disables
	// auditing.
	Audit AuditLogger
	// Logger is used for operational logging. Nil means no logging.
	Logger *zap.Logger
}

// Injector orchestrates reads and writes across all registered
// providers: it fans a get out to every provider, resolves the
// conflicting records to one winner, caches it, and fans writes out to
// every provider so their state advances together. It deliberately
// provides no cross-provider atomicity: two racing Sets on one key may
// leave providers holding different values (see the reconcile package
// for detecting that drift).
type Injector struct {
	mu        sync.RWMutex // guards providers
	providers []Provider

	initMu      sync.Mutex
	initialized bool

	strategy   Strategy
	cache      Cache
	validator  Validator
	validation bool
	crypto     EncryptionService
	audit      AuditLogger
	logger     *zap.Logger
	events     *emitter
	flight     singleflight.Group
}

// NewInjector builds an Injector from cfg.
func NewInjector(cfg Config) *Injector {
	var cache Cache = NoopCache{}
	if cfg.CacheEnabled {
		cache = NewLRUCache(cfg.CacheTTL, cfg.CacheMaxEntries)
	}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyHighestPriority
	}

	var crypto EncryptionService = NoopEncryption{}
	if cfg.Encryption != nil {
		crypto = cfg.Encryption
	}

	var audit AuditLogger = noopAudit{}
	if cfg.Audit != nil {
		audit = cfg.Audit
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	providers := make([]Provider, len(cfg.Providers))
	copy(providers, cfg.Providers)

	return &Injector{
		providers:  providers,
		strategy:   strategy,
		cache:      cache,
		validator:  cfg.Validator,
		validation: cfg.ValidationEnabled,
		crypto:     crypto,
		audit:      audit,
		logger:     logger,
		events:     newEmitter(logger),
	}
}

// Initialize brings up every registered provider concurrently. It is
// idempotent and one-way: a second call is a no-op, and the injector
// only commits to the initialized state once all providers succeed. If
// any provider fails the error propagates and the injector stays
// uninitialized.
func (i *Injector) Initialize(ctx context.Context) error {
	i.initMu.Lock()
	defer i.initMu.Unlock()

	if i.initialized {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range i.snapshotProviders() {
		p := p
		g.Go(func() error {
			if err := p.Initialize(ctx); err != nil {
				return &ProviderInitError{Provider: p.Name(), Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	i.initialized = true
	i.logger.Info("preference injector initialized",
		zap.Int("providers", len(i.snapshotProviders())),
		zap.String("strategy", string(i.strategy)))
	return nil
}

// Initialized reports whether Initialize has completed successfully.
func (i *Injector) Initialized() bool {
	i.initMu.Lock()
	defer i.initMu.Unlock()
	return i.initialized
}

// AddProvider registers an additional provider at runtime. It is
// appended to the fan-out order.
func (i *Injector) AddProvider(p Provider) {
	i.mu.Lock()
	i.providers = append(i.providers, p)
	i.mu.Unlock()
}

// RemoveProvider removes the first provider with the given name,
// reporting whether one was found.
func (i *Injector) RemoveProvider(name string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	for idx, p := range i.providers {
		if p.Name() == name {
			i.providers = append(i.providers[:idx], i.providers[idx+1:]...)
			return true
		}
	}
	return false
}

// Providers returns a snapshot of the registered providers in fan-out
// order.
func (i *Injector) Providers() []Provider {
	return i.snapshotProviders()
}

func (i *Injector) snapshotProviders() []Provider {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Provider, len(i.providers))
	copy(out, i.providers)
	return out
}

// GetOptions tunes a single Get call.
type GetOptions struct {
	// Default is returned instead of a NotFound error when no provider
	// holds the key.
	Default *Value
	// NoCache bypasses the cache for both lookup and store.
	NoCache bool
	// Decrypt unwraps the resolved value when the encryption service
	// recognizes it as ciphertext.
	Decrypt bool
}

// Get resolves the value for key across all providers. The cache is
// consulted first unless disabled for this call; on a miss every
// provider is queried, the collected records are resolved to one winner
// under the configured strategy, the winner is cached, and its value is
// returned.
func (i *Injector) Get(ctx context.Context, key string, opts *GetOptions) (Value, error) {
	if opts == nil {
		opts = &GetOptions{}
	}

	if !opts.NoCache {
		if md, ok := i.cache.Get(key); ok {
			v := md.Value
			i.audit.Log(AuditEntry{
				Timestamp: time.Now(),
				Action:    AuditGet,
				Key:       key,
				NewValue:  &v,
				Source:    "cache",
			})
			return md.Value, nil
		}
	}

	md, found, err := i.resolveKey(ctx, key)
	if err != nil {
		return Value{}, err
	}
	if !found {
		if opts.Default != nil {
			return *opts.Default, nil
		}
		return Value{}, &NotFoundError{Key: key}
	}

	if opts.Decrypt {
		if ct, ok := md.Value.AsString(); ok && i.crypto.IsEncrypted(ct) {
			plaintext, err := i.crypto.Decrypt(ctx, ct)
			if err != nil {
				return Value{}, &EncryptionError{Op: "decrypt", Err: err}
			}
			// Only the value is replaced; the encrypted flag keeps
			// recording what the providers hold.
			md = md.WithValue(String(plaintext))
			i.audit.Log(AuditEntry{
				Timestamp: time.Now(),
				Action:    AuditDecrypt,
				Key:       key,
				Source:    md.Source,
			})
		}
	}

	if !opts.NoCache {
		i.cache.Set(key, md, md.TTL)
	}

	v := md.Value
	i.audit.Log(AuditEntry{
		Timestamp: time.Now(),
		Action:    AuditGet,
		Key:       key,
		NewValue:  &v,
		Source:    md.Source,
	})
	return md.Value, nil
}

// resolveKey fans the lookup out to every provider and resolves the
// collected records. Concurrent misses for the same key are collapsed
// through singleflight so a hot key costs one fan-out.
func (i *Injector) resolveKey(ctx context.Context, key string) (Metadata, bool, error) {
	type resolved struct {
		md    Metadata
		found bool
	}

	// The flight's result is shared with followers, so the fan-out runs
	// on a detached context: the first caller cancelling must not fail
	// everyone collapsed into its flight.
	flightCtx := context.WithoutCancel(ctx)

	res, err, _ := i.flight.Do(key, func() (any, error) {
		records, err := i.collectRecords(flightCtx, key)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return resolved{}, nil
		}
		md, err := ResolveConflict(records, i.strategy)
		if err != nil {
			return nil, err
		}
		return resolved{md: md, found: true}, nil
	})
	if err != nil {
		return Metadata{}, false, err
	}

	r := res.(resolved)
	if !r.found {
		return Metadata{}, false, nil
	}
	// The singleflight result is shared between callers.
	return r.md.Clone(), true, nil
}

func (i *Injector) collectRecords(ctx context.Context, key string) ([]Metadata, error) {
	providers := i.snapshotProviders()
	results := make([]*Metadata, len(providers))

	g, ctx := errgroup.WithContext(ctx)
	for idx, p := range providers {
		idx, p := idx, p
		g.Go(func() error {
			md, ok, err := p.Get(ctx, key)
			if err != nil {
				return &ProviderOpError{Provider: p.Name(), Op: "get", Key: key, Err: err}
			}
			if ok {
				results[idx] = &md
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]Metadata, 0, len(results))
	for _, md := range results {
		if md != nil {
			records = append(records, *md)
		}
	}
	return records, nil
}

// GetTyped resolves key and narrows the value's plain-Go projection to
// T. No validation beyond the type assertion is performed; a shape
// mismatch fails with a Configuration error.
func GetTyped[T any](ctx context.Context, i *Injector, key string, opts *GetOptions) (T, error) {
	var zero T
	v, err := i.Get(ctx, key, opts)
	if err != nil {
		return zero, err
	}
	typed, ok := v.Interface().(T)
	if !ok {
		return zero, &ConfigError{Reason: fmt.Sprintf("preference %s has kind %s, not %T", key, v.Kind(), zero)}
	}
	return typed, nil
}

// GetAll fetches every provider's full record map and folds them into
// one resolved projection, applying the conflict strategy pairwise
// whenever a key appears in more than one provider. The cache is
// neither consulted nor populated.
func (i *Injector) GetAll(ctx context.Context) (map[string]Value, error) {
	acc := make(map[string]Metadata)
	for _, p := range i.snapshotProviders() {
		all, err := p.GetAll(ctx)
		if err != nil {
			return nil, &ProviderOpError{Provider: p.Name(), Op: "getAll", Err: err}
		}
		for key, md := range all {
			existing, ok := acc[key]
			if !ok {
				acc[key] = md
				continue
			}
			winner, err := ResolveConflict([]Metadata{existing, md}, i.strategy)
			if err != nil {
				return nil, err
			}
			acc[key] = winner
		}
	}

	out := make(map[string]Value, len(acc))
	for key, md := range acc {
		out[key] = md.Value
	}
	return out, nil
}

// SetOptions tunes a single Set call.
type SetOptions struct {
	// SkipValidation bypasses the validator for this write.
	SkipValidation bool
	// Encrypt wraps string values through the encryption service before
	// they are persisted.
	Encrypt bool
}

// Set validates, optionally encrypts, and writes value to every
// registered provider, so all sources advance together. The cache entry
// for key is invalidated, the write is audited, and an added/changed
// event is emitted. A failing provider write propagates with no
// rollback of providers already written.
func (i *Injector) Set(ctx context.Context, key string, value Value, opts *SetOptions) error {
	if opts == nil {
		opts = &SetOptions{}
	}

	// Best-effort read of the previous value for audit and events. Any
	// failure here means "no previous value" and is never surfaced.
	var oldValue *Value
	if prev, err := i.Get(ctx, key, &GetOptions{NoCache: true}); err == nil {
		oldValue = &prev
	} else if !IsNotFound(err) {
		i.logger.Debug("old value lookup failed", zap.String("key", key), zap.Error(err))
	}

	if i.validation && i.validator != nil && !opts.SkipValidation {
		result, err := i.validator.Validate(ctx, key, value)
		// The attempt is audited regardless of outcome.
		v := value
		i.audit.Log(AuditEntry{
			Timestamp: time.Now(),
			Action:    AuditValidate,
			Key:       key,
			NewValue:  &v,
			Source:    injectorSource,
		})
		if err != nil {
			return err
		}
		if !result.Valid {
			return &ValidationError{Key: key, Errors: result.Errors}
		}
	}

	if opts.Encrypt {
		if plaintext, ok := value.AsString(); ok {
			ciphertext, err := i.crypto.Encrypt(ctx, plaintext)
			if err != nil {
				return &EncryptionError{Op: "encrypt", Err: err}
			}
			value = String(ciphertext)
			i.audit.Log(AuditEntry{
				Timestamp: time.Now(),
				Action:    AuditEncrypt,
				Key:       key,
				Source:    injectorSource,
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range i.snapshotProviders() {
		p := p
		g.Go(func() error {
			if err := p.Set(gctx, key, value); err != nil {
				return &ProviderOpError{Provider: p.Name(), Op: "set", Key: key, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	i.cache.Delete(key)

	newValue := value
	i.audit.Log(AuditEntry{
		Timestamp: time.Now(),
		Action:    AuditSet,
		Key:       key,
		OldValue:  oldValue,
		NewValue:  &newValue,
		Source:    injectorSource,
	})

	eventType := EventChanged
	if oldValue == nil {
		eventType = EventAdded
	}
	i.events.emit(Event{
		Type:      eventType,
		Key:       key,
		OldValue:  oldValue,
		NewValue:  &newValue,
		Timestamp: time.Now(),
	})
	return nil
}

// Has reports whether any provider holds key, short-circuiting on the
// first that does. The cache is not consulted.
func (i *Injector) Has(ctx context.Context, key string) (bool, error) {
	for _, p := range i.snapshotProviders() {
		ok, err := p.Has(ctx, key)
		if err != nil {
			return false, &ProviderOpError{Provider: p.Name(), Op: "has", Key: key, Err: err}
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes key from every provider, reporting whether any of them
// actually held it. When something was removed the cache entry is
// invalidated, the delete is audited, and a removed event is emitted.
func (i *Injector) Delete(ctx context.Context, key string) (bool, error) {
	var oldValue *Value
	if prev, err := i.Get(ctx, key, &GetOptions{NoCache: true}); err == nil {
		oldValue = &prev
	}

	removed := false
	for _, p := range i.snapshotProviders() {
		ok, err := p.Delete(ctx, key)
		if err != nil {
			return false, &ProviderOpError{Provider: p.Name(), Op: "delete", Key: key, Err: err}
		}
		removed = removed || ok
	}
	if !removed {
		return false, nil
	}

	i.cache.Delete(key)
	i.audit.Log(AuditEntry{
		Timestamp: time.Now(),
		Action:    AuditDelete,
		Key:       key,
		OldValue:  oldValue,
		Source:    injectorSource,
	})
	i.events.emit(Event{
		Type:      EventRemoved,
		Key:       key,
		OldValue:  oldValue,
		Timestamp: time.Now(),
	})
	return true, nil
}

// Clear empties every provider and the cache, audits the wipe under the
// wildcard key, and emits a cleared event.
func (i *Injector) Clear(ctx context.Context) error {
	for _, p := range i.snapshotProviders() {
		if err := p.Clear(ctx); err != nil {
			return &ProviderOpError{Provider: p.Name(), Op: "clear", Err: err}
		}
	}

	i.cache.Clear()
	i.audit.Log(AuditEntry{
		Timestamp: time.Now(),
		Action:    AuditClear,
		Key:       "*",
		Source:    injectorSource,
	})
	i.events.emit(Event{
		Type:      EventCleared,
		Key:       "*",
		Timestamp: time.Now(),
	})
	return nil
}

// On registers a listener for events of the given type and returns a
// subscription ID for Off. Listeners run synchronously in registration
// order; a panicking listener is isolated and logged.
func (i *Injector) On(t EventType, fn Listener) string {
	return i.events.on(t, fn)
}

// Off removes a subscription, reporting whether it existed.
func (i *Injector) Off(t EventType, id string) bool {
	return i.events.off(t, id)
}
