package preferences

import (
	"context"
	"time"

	"prefs-manager/core/audit"
	"prefs-manager/core/prefs"
	"prefs-manager/core/reconcile"

	"go.uber.org/zap"
)

// Service exposes the preference layer to the HTTP handler.
type Service struct {
	injector    *prefs.Injector
	audit       *audit.Logger
	strategy    prefs.Strategy
	snapshotTTL time.Duration
	logger      *zap.Logger
}

// NewService creates a new preference service. The audit logger may be
// nil when auditing is disabled; the audit endpoint then serves an
// empty trail. snapshotTTL bounds how long reconcile runs reuse one
// provider snapshot; zero snapshots fresh on every run.
func NewService(injector *prefs.Injector, auditLog *audit.Logger, strategy prefs.Strategy, snapshotTTL time.Duration, logger *zap.Logger) *Service {
	if strategy == "" {
		strategy = prefs.StrategyHighestPriority
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		injector:    injector,
		audit:       auditLog,
		strategy:    strategy,
		snapshotTTL: snapshotTTL,
		logger:      logger,
	}
}

// Get resolves a single preference.
func (s *Service) Get(ctx context.Context, key string, opts *prefs.GetOptions) (prefs.Value, error) {
	return s.injector.Get(ctx, key, opts)
}

// List resolves every known preference.
func (s *Service) List(ctx context.Context) (map[string]prefs.Value, error) {
	return s.injector.GetAll(ctx)
}

// Set writes a preference through the injector's fan-out.
func (s *Service) Set(ctx context.Context, key string, value prefs.Value, opts *prefs.SetOptions) error {
	return s.injector.Set(ctx, key, value, opts)
}

// Delete removes a preference from every provider.
func (s *Service) Delete(ctx context.Context, key string) (bool, error) {
	return s.injector.Delete(ctx, key)
}

// Clear wipes every provider.
func (s *Service) Clear(ctx context.Context) error {
	return s.injector.Clear(ctx)
}

// Audit returns the buffered audit trail matching the filter.
func (s *Service) Audit(filter audit.Filter) []audit.Entry {
	if s.audit == nil {
		return []audit.Entry{}
	}
	return s.audit.Entries(filter)
}

// Reconcile plans (and optionally applies) repairs for provider drift,
// resolving the desired state under the service's strategy. Repeated
// polls within the snapshot TTL reuse one provider snapshot.
func (s *Service) Reconcile(ctx context.Context, opts reconcile.Options) (*reconcile.Plan, int, error) {
	opts.SnapshotTTL = s.snapshotTTL
	return reconcile.Run(ctx, s.injector.Providers(), s.strategy, opts)
}
